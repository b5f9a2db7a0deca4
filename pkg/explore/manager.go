package explore

import (
	"sync"
	"time"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/layout"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/metrics"
	"github.com/skeinhq/skein/backend/pkg/store"
)

const (
	// DefaultIdleTimeout is how long a session may sit untouched before
	// the janitor closes it.
	DefaultIdleTimeout = 30 * time.Minute

	janitorInterval = time.Minute
)

// Manager owns the live sessions: it creates them, looks them up, closes
// idle ones, and fans data-change notifications out to all of them.
type Manager struct {
	src         store.Source
	graphLimit  int
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	stop     chan struct{}
	stopped  bool
}

// ManagerOption tweaks a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout overrides how long sessions survive without use. Zero
// or negative keeps the default.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithGraphLimit caps the base graph size of every session the manager
// creates.
func WithGraphLimit(limit int) ManagerOption {
	return func(m *Manager) {
		m.graphLimit = limit
	}
}

// NewManager creates a Manager on top of src and starts its janitor.
func NewManager(src store.Source, options ...ManagerOption) *Manager {
	m := &Manager{
		src:         src,
		idleTimeout: DefaultIdleTimeout,
		sessions:    make(map[string]*Session),
		stop:        make(chan struct{}),
	}
	for _, option := range options {
		option(m)
	}

	go m.janitor()
	return m
}

// CreateParams shapes a new session.
type CreateParams struct {
	// Width and Height size the layout viewport. Zero keeps the default.
	Width  float64
	Height float64

	// Filter is the initial type filter, empty means all types.
	Filter common.NodeType

	// Seed fixes the layout sequence, for reproducible exploration.
	Seed int64
}

// Create starts a session and registers it.
func (m *Manager) Create(params CreateParams) (*Session, error) {
	opts := layout.DefaultOptions()
	if params.Width > 0 {
		opts.Width = params.Width
	}
	if params.Height > 0 {
		opts.Height = params.Height
	}

	s, err := New(Config{
		Source:     m.src,
		Engine:     layout.NewEngine(opts),
		Filter:     params.Filter,
		GraphLimit: m.graphLimit,
		Seed:       params.Seed,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logger.Info("[Explore] session created", "session", s.ID(), "filter", string(params.Filter))
	return s, nil
}

// Get returns the session with the given id and marks it active, or nil
// if no such session exists.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()

	if s != nil {
		s.Touch()
	}
	return s
}

// Close removes and closes the session with the given id. It reports
// whether a session was found.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s := m.sessions[id]
	if s != nil {
		delete(m.sessions, id)
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if s == nil {
		return false
	}
	s.Close()
	logger.Info("[Explore] session closed", "session", id)
	return true
}

// RefreshAll tells every session the underlying data changed.
func (m *Manager) RefreshAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Refresh()
	}
	if len(sessions) > 0 {
		logger.Info("[Explore] refreshed sessions after data change", "count", len(sessions))
	}
}

// Stop closes the manager and every remaining session.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stop)
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) janitor() {
	// Sweep at least as often as sessions expire.
	interval := janitorInterval
	if m.idleTimeout < interval {
		interval = m.idleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		logger.Info("[Explore] session evicted after idling", "session", s.ID())
	}
}

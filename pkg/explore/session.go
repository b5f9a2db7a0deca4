// Package explore implements interactive graph exploration sessions: a
// base graph narrowed by a type filter, a single expansion slot around the
// selected entity, name search with highlight, and a freshly computed
// layout after every structural change.
//
// A session serializes all state changes behind one mutex. Fetches run
// concurrently and re-check, under that mutex, whether the state they were
// requested for is still current, late responses for superseded requests
// are dropped. That makes rapid interaction safe: whatever interleaving
// the network produces, the view always reflects the newest request.
package explore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/graph"
	"github.com/skeinhq/skein/backend/pkg/highlight"
	"github.com/skeinhq/skein/backend/pkg/layout"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/metrics"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// DefaultGraphLimit is how many nodes a session asks for per base or
// expansion fetch. Wider than the store's own default, an exploration
// view wants the whole neighborhood on screen.
const DefaultGraphLimit = 300

var (
	// ErrSessionClosed is returned by every event on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrEmptyEntityID is returned when a selection names no entity.
	ErrEmptyEntityID = errors.New("entity id must not be empty")

	// ErrInvalidFilter is returned for a type that cannot filter the
	// base graph.
	ErrInvalidFilter = errors.New("type cannot be used as a filter")
)

// Config assembles a session. Source is required, everything else has
// usable defaults.
type Config struct {
	Source store.Source

	// Engine computes layouts. Nil uses the default viewport tuning.
	Engine *layout.Engine

	// Filter is the initial base graph filter, empty means all types.
	Filter common.NodeType

	// GraphLimit caps base and expansion fetches. Zero uses
	// DefaultGraphLimit.
	GraphLimit int

	// Seed makes the session's layout sequence reproducible. Zero seeds
	// from the clock.
	Seed int64
}

// Session is one exploration in progress. All exported methods are safe
// for concurrent use.
type Session struct {
	id     string
	src    store.Source
	engine *layout.Engine
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	rng *rand.Rand

	filter     common.NodeType
	graphLimit int

	base      common.Graph
	expandID  string
	expansion *common.Graph

	selectedID string
	detail     *store.EntityDetail
	meetings   []store.MeetingRef

	query   string
	matches []store.Match

	notice *Notice

	pendingBase      bool
	pendingDetail    bool
	pendingExpansion bool
	pendingMeetings  bool
	pendingSearch    bool

	merged    common.Graph
	positions map[string]layout.Position
	nodeVis   map[string]layout.NodeVisual
	edgeVis   map[string]layout.EdgeVisual

	version uint64
	view    View
	subs    map[chan View]struct{}
	closed  bool

	lastActive time.Time
}

// New creates a session and starts loading its base graph in the
// background. The returned session already has a view, version 1, with an
// empty graph and the base fetch pending.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, errors.New("session requires a source")
	}
	if cfg.Filter != "" && !cfg.Filter.Filterable() {
		return nil, ErrInvalidFilter
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	engine := cfg.Engine
	if engine == nil {
		engine = layout.NewEngine(layout.DefaultOptions())
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	graphLimit := cfg.GraphLimit
	if graphLimit <= 0 {
		graphLimit = DefaultGraphLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		src:        cfg.Source,
		engine:     engine,
		ctx:        ctx,
		cancel:     cancel,
		rng:        rand.New(rand.NewSource(seed)),
		filter:     cfg.Filter,
		graphLimit: graphLimit,
		subs:       make(map[chan View]struct{}),
		lastActive: time.Now(),
	}

	s.mu.Lock()
	s.pendingBase = true
	go s.fetchBase(s.filter)
	s.rebuildLocked(true)
	s.mu.Unlock()

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Subscribe registers for view updates. The channel is primed with the
// current view and then receives every newer snapshot, coalescing while
// the receiver is slow: a subscriber always gets the newest view next, it
// may just skip intermediate ones. The returned function unsubscribes.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	ch <- s.view
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Touch marks the session as recently used, fending off idle eviction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive reports when the session last saw use.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close cancels all in-flight work and detaches subscribers. Closing
// twice is fine.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = make(map[chan View]struct{})
	s.mu.Unlock()

	s.cancel()
}

// SelectNode makes id the selected entity and the expansion target,
// fetching its detail, meetings, and neighbor graph concurrently.
// Selecting the node that is already expanded collapses the expansion and
// keeps the detail panel. Switching targets frees the single expansion
// slot first, the view never mixes overlays of two different entities.
func (s *Session) SelectNode(id string) (View, error) {
	if id == "" {
		return View{}, ErrEmptyEntityID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	metrics.SessionEventsTotal.WithLabelValues("select").Inc()
	s.lastActive = time.Now()
	s.notice = nil

	if s.expandID == id {
		s.expandID = ""
		s.expansion = nil
		s.pendingExpansion = false
		s.rebuildLocked(true)
		return s.view, nil
	}

	s.selectedID = id
	s.expandID = id
	s.expansion = nil
	s.detail = nil
	s.meetings = nil
	s.pendingDetail = true
	s.pendingExpansion = true
	s.pendingMeetings = true

	go s.fetchDetail(id)
	go s.fetchExpansion(id)
	go s.fetchMeetings(id)

	s.rebuildLocked(true)
	return s.view, nil
}

// ClearSelection drops the selection, the expansion overlay, and any
// notice.
func (s *Session) ClearSelection() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	metrics.SessionEventsTotal.WithLabelValues("clear").Inc()
	s.lastActive = time.Now()

	s.selectedID = ""
	s.expandID = ""
	s.expansion = nil
	s.detail = nil
	s.meetings = nil
	s.notice = nil
	s.pendingDetail = false
	s.pendingExpansion = false
	s.pendingMeetings = false

	s.rebuildLocked(true)
	return s.view, nil
}

// SetTypeFilter narrows the base graph to one node type, or widens it
// back with an empty filter. The current selection and expansion belong
// to the old scope and are cleared, the old base keeps showing until the
// new one arrives.
func (s *Session) SetTypeFilter(filter common.NodeType) (View, error) {
	if filter != "" && !filter.Filterable() {
		return View{}, ErrInvalidFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	metrics.SessionEventsTotal.WithLabelValues("filter").Inc()
	s.lastActive = time.Now()

	s.filter = filter
	s.selectedID = ""
	s.expandID = ""
	s.expansion = nil
	s.detail = nil
	s.meetings = nil
	s.notice = nil
	s.pendingDetail = false
	s.pendingExpansion = false
	s.pendingMeetings = false
	s.pendingBase = true

	go s.fetchBase(filter)

	s.rebuildLocked(true)
	return s.view, nil
}

// SetSearchQuery updates the highlight query. Queries under the minimum
// length deactivate highlighting immediately, longer ones trigger a
// search whose matches apply only if the query is still current when they
// arrive. Previous matches keep highlighting until then.
func (s *Session) SetSearchQuery(query string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	metrics.SessionEventsTotal.WithLabelValues("search").Inc()
	s.lastActive = time.Now()

	s.query = query
	if !highlight.Active(query) {
		s.matches = nil
		s.pendingSearch = false
		s.rebuildLocked(false)
		return s.view, nil
	}

	s.pendingSearch = true
	go s.fetchSearch(query)

	s.rebuildLocked(false)
	return s.view, nil
}

// DismissNotice clears the current notice, if any.
func (s *Session) DismissNotice() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	metrics.SessionEventsTotal.WithLabelValues("dismiss").Inc()
	s.lastActive = time.Now()

	if s.notice != nil {
		s.notice = nil
		s.rebuildLocked(false)
	}
	return s.view, nil
}

// Refresh re-fetches the base graph and, if one is active, the expansion.
// Interaction state survives, called when the underlying data changed.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	metrics.SessionEventsTotal.WithLabelValues("refresh").Inc()

	s.pendingBase = true
	go s.fetchBase(s.filter)

	if s.expandID != "" {
		s.pendingExpansion = true
		go s.fetchExpansion(s.expandID)
	}

	s.rebuildLocked(false)
}

func (s *Session) fetchBase(filter common.NodeType) {
	g, err := s.src.FetchGraph(s.ctx, store.GraphFilter{Type: filter, Limit: s.graphLimit})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.filter != filter {
		metrics.StaleResponsesTotal.Inc()
		return
	}

	s.pendingBase = false
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logger.Warn("[Explore] base graph fetch failed", "session", s.id, "filter", string(filter), "error", err)
		s.notice = &Notice{Kind: NoticeError, Message: "the graph could not be loaded, showing the last known state"}
		s.rebuildLocked(false)
		return
	}

	s.base = graph.Sanitize(g)
	s.rebuildLocked(true)
}

func (s *Session) fetchExpansion(id string) {
	g, err := s.src.FetchGraph(s.ctx, store.GraphFilter{EntityID: id, Limit: s.graphLimit})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.expandID != id {
		metrics.StaleResponsesTotal.Inc()
		return
	}

	s.pendingExpansion = false
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logger.Warn("[Explore] expansion fetch failed", "session", s.id, "entity", id, "error", err)
		s.notice = &Notice{Kind: NoticeError, Message: "the neighborhood could not be loaded"}
		s.rebuildLocked(false)
		return
	}

	sanitized := graph.Sanitize(g)
	s.expansion = &sanitized
	s.rebuildLocked(true)
}

func (s *Session) fetchDetail(id string) {
	detail, err := s.src.FetchEntityDetail(s.ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.selectedID != id {
		metrics.StaleResponsesTotal.Inc()
		return
	}

	s.pendingDetail = false
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logger.Warn("[Explore] detail fetch failed", "session", s.id, "entity", id, "error", err)
		s.notice = &Notice{Kind: NoticeError, Message: "entity details are unavailable right now"}
		s.rebuildLocked(false)
		return
	}

	if detail.Entity == nil {
		s.notice = &Notice{Kind: NoticeNotFound, Message: fmt.Sprintf("entity %q was not found", id)}
	}
	s.detail = &detail
	s.rebuildLocked(false)
}

func (s *Session) fetchMeetings(id string) {
	refs, err := s.src.EntityMeetings(s.ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.selectedID != id {
		metrics.StaleResponsesTotal.Inc()
		return
	}

	s.pendingMeetings = false
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		// The meeting list is a side panel nicety, a failure should not
		// shout over the graph.
		logger.Warn("[Explore] meeting fetch failed", "session", s.id, "entity", id, "error", err)
		s.rebuildLocked(false)
		return
	}

	s.meetings = refs
	s.rebuildLocked(false)
}

func (s *Session) fetchSearch(query string) {
	matches, err := s.src.SearchEntities(s.ctx, query, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.query != query {
		metrics.StaleResponsesTotal.Inc()
		return
	}

	s.pendingSearch = false
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logger.Warn("[Explore] search failed", "session", s.id, "query", query, "error", err)
		s.notice = &Notice{Kind: NoticeError, Message: "search is unavailable right now"}
		s.rebuildLocked(false)
		return
	}

	s.matches = matches
	s.rebuildLocked(false)
}

// rebuildLocked recomputes the view. With relayout the merged graph is
// rebuilt and run through the engine with a fresh seed, otherwise the
// existing geometry is kept and only the overlay state changes. Callers
// hold s.mu.
func (s *Session) rebuildLocked(relayout bool) {
	if relayout {
		s.merged = graph.Merge(s.base, s.expansion)

		start := time.Now()
		positions, err := s.engine.Layout(s.ctx, s.merged, s.rng.Int63())
		if err == nil {
			s.positions = positions
			metrics.LayoutDuration.Observe(time.Since(start).Seconds())
			metrics.LayoutNodes.Observe(float64(len(s.merged.Nodes)))
		} else if s.ctx.Err() == nil {
			logger.Error("[Explore] layout failed", "session", s.id, "error", err)
		}

		s.nodeVis, s.edgeVis = layout.Visuals(s.merged)
	}

	matchIDs := make([]string, len(s.matches))
	for i, m := range s.matches {
		matchIDs[i] = m.ID
	}

	s.version++
	s.view = View{
		SessionID:   s.id,
		Version:     s.version,
		Filter:      string(s.filter),
		SelectedID:  s.selectedID,
		ExpandedID:  s.expandID,
		Query:       s.query,
		Pending:     s.pendingLocked(),
		Graph:       s.merged,
		Positions:   s.positions,
		NodeVisuals: s.nodeVis,
		EdgeVisuals: s.edgeVis,
		Highlight:   highlight.Build(s.query, matchIDs, graph.NodeIDs(s.merged)),
		Matches:     s.matches,
		Detail:      s.detail,
		Meetings:    s.meetings,
		Notice:      s.notice,
	}
	s.publishLocked()
}

func (s *Session) pendingLocked() []string {
	pending := make([]string, 0, 5)
	if s.pendingBase {
		pending = append(pending, "base")
	}
	if s.pendingDetail {
		pending = append(pending, "detail")
	}
	if s.pendingExpansion {
		pending = append(pending, "expansion")
	}
	if s.pendingMeetings {
		pending = append(pending, "meetings")
	}
	if s.pendingSearch {
		pending = append(pending, "search")
	}
	return pending
}

// publishLocked hands the current view to every subscriber without
// blocking: a full channel is drained first so the subscriber's next read
// sees the newest snapshot.
func (s *Session) publishLocked() {
	for ch := range s.subs {
		select {
		case ch <- s.view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.view:
			default:
			}
		}
	}
}

package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/metrics"
)

// DefaultGraphTTL is how long a fetched base graph stays reusable before a
// session asking again goes back to the underlying source.
const DefaultGraphTTL = 30 * time.Second

// SharedSource wraps a Source so that concurrent identical fetches from any
// number of sessions collapse into one underlying call, and recently
// fetched base graphs are served from a short-lived cache.
//
// Invalidate bumps the data generation: cached graphs from older
// generations are ignored, and results of fetches that started before the
// bump are not written back. Graphs handed out may be shared between
// callers and must be treated as immutable.
type SharedSource struct {
	src Source
	ttl time.Duration

	graphGroup    singleflight.Group
	detailGroup   singleflight.Group
	searchGroup   singleflight.Group
	meetingsGroup singleflight.Group

	generation atomic.Uint64

	mu    sync.Mutex
	cache map[string]cachedGraph
}

type cachedGraph struct {
	graph      common.Graph
	generation uint64
	expires    time.Time
}

// NewSharedSource wraps src. A non-positive ttl falls back to
// DefaultGraphTTL.
func NewSharedSource(src Source, ttl time.Duration) *SharedSource {
	if ttl <= 0 {
		ttl = DefaultGraphTTL
	}
	return &SharedSource{
		src:   src,
		ttl:   ttl,
		cache: make(map[string]cachedGraph),
	}
}

// Invalidate marks all cached graphs stale. Called when the underlying
// data changed, typically from the queue listener.
func (s *SharedSource) Invalidate() {
	s.generation.Add(1)
}

// Generation returns the current data generation.
func (s *SharedSource) Generation() uint64 {
	return s.generation.Load()
}

func (s *SharedSource) FetchGraph(ctx context.Context, filter GraphFilter) (common.Graph, error) {
	filter = filter.Normalize()
	key := filter.Key()

	if g, ok := s.cachedGraph(key); ok {
		metrics.GraphCacheHitsTotal.Inc()
		return g, nil
	}

	v, err, shared := s.graphGroup.Do(key, func() (any, error) {
		// Double-check under the flight, an earlier caller may have
		// filled the cache already.
		if g, ok := s.cachedGraph(key); ok {
			return g, nil
		}

		gen := s.generation.Load()
		start := time.Now()
		g, err := s.src.FetchGraph(ctx, filter)
		metrics.SourceFetchDuration.WithLabelValues("graph").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		s.storeGraph(key, g, gen)
		return g, nil
	})
	if shared {
		metrics.SourceDedupedTotal.WithLabelValues("graph").Inc()
	}
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("graph", "error").Inc()
		return common.Graph{}, err
	}
	metrics.SourceFetchesTotal.WithLabelValues("graph", "ok").Inc()

	g, ok := v.(common.Graph)
	if !ok {
		return common.Graph{}, fmt.Errorf("unexpected type from graph flight: got %T", v)
	}
	return g, nil
}

func (s *SharedSource) FetchEntityDetail(ctx context.Context, id string) (EntityDetail, error) {
	v, err, shared := s.detailGroup.Do(id, func() (any, error) {
		start := time.Now()
		defer func() {
			metrics.SourceFetchDuration.WithLabelValues("detail").Observe(time.Since(start).Seconds())
		}()
		return s.src.FetchEntityDetail(ctx, id)
	})
	if shared {
		metrics.SourceDedupedTotal.WithLabelValues("detail").Inc()
	}
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("detail", "error").Inc()
		return EntityDetail{}, err
	}
	metrics.SourceFetchesTotal.WithLabelValues("detail", "ok").Inc()

	d, ok := v.(EntityDetail)
	if !ok {
		return EntityDetail{}, fmt.Errorf("unexpected type from detail flight: got %T", v)
	}
	return d, nil
}

func (s *SharedSource) SearchEntities(ctx context.Context, query string, limit int) ([]Match, error) {
	limit = ClampSearchLimit(limit)
	key := fmt.Sprintf("%d|%s", limit, query)

	v, err, shared := s.searchGroup.Do(key, func() (any, error) {
		start := time.Now()
		defer func() {
			metrics.SourceFetchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
		}()
		return s.src.SearchEntities(ctx, query, limit)
	})
	if shared {
		metrics.SourceDedupedTotal.WithLabelValues("search").Inc()
	}
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("search", "error").Inc()
		return nil, err
	}
	metrics.SourceFetchesTotal.WithLabelValues("search", "ok").Inc()

	m, ok := v.([]Match)
	if !ok {
		return nil, fmt.Errorf("unexpected type from search flight: got %T", v)
	}
	return m, nil
}

func (s *SharedSource) EntityMeetings(ctx context.Context, id string) ([]MeetingRef, error) {
	v, err, shared := s.meetingsGroup.Do(id, func() (any, error) {
		start := time.Now()
		defer func() {
			metrics.SourceFetchDuration.WithLabelValues("meetings").Observe(time.Since(start).Seconds())
		}()
		return s.src.EntityMeetings(ctx, id)
	})
	if shared {
		metrics.SourceDedupedTotal.WithLabelValues("meetings").Inc()
	}
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("meetings", "error").Inc()
		return nil, err
	}
	metrics.SourceFetchesTotal.WithLabelValues("meetings", "ok").Inc()

	m, ok := v.([]MeetingRef)
	if !ok {
		return nil, fmt.Errorf("unexpected type from meetings flight: got %T", v)
	}
	return m, nil
}

func (s *SharedSource) cachedGraph(key string) (common.Graph, bool) {
	gen := s.generation.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return common.Graph{}, false
	}
	if entry.generation != gen || time.Now().After(entry.expires) {
		delete(s.cache, key)
		return common.Graph{}, false
	}
	return entry.graph, true
}

func (s *SharedSource) storeGraph(key string, g common.Graph, gen uint64) {
	// A result fetched before an invalidation must not resurrect the old
	// generation.
	if gen != s.generation.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedGraph{
		graph:      g,
		generation: gen,
		expires:    time.Now().Add(s.ttl),
	}
}

// Package memory provides an in-memory Storage used by tests, the demo
// mode of the server, and dry runs of the seeder. It mirrors the Postgres
// implementation's query semantics so sessions behave identically on
// either.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// Store keeps the whole graph in maps guarded by a single RWMutex. Reads
// return copies, so callers can never observe later writes through a
// previously fetched graph.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]common.Node
	edges    map[string]common.Edge
	meetings map[string]store.MeetingRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]common.Node),
		edges:    make(map[string]common.Edge),
		meetings: make(map[string]store.MeetingRecord),
	}
}

// FetchGraph implements store.Source. Ordering is lexicographic by id,
// which stands in for the stable ordering the database gives.
func (s *Store) FetchGraph(ctx context.Context, filter store.GraphFilter) (common.Graph, error) {
	if err := ctx.Err(); err != nil {
		return common.Graph{}, err
	}
	filter = filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.EntityID != "" {
		return s.expansionLocked(filter.EntityID), nil
	}
	return s.overviewLocked(filter), nil
}

func (s *Store) overviewLocked(filter store.GraphFilter) common.Graph {
	wantType := func(t common.NodeType) bool {
		if filter.Type != "" {
			return t == filter.Type
		}
		return t.Filterable()
	}

	ids := make([]string, 0, len(s.nodes))
	for id, n := range s.nodes {
		if wantType(n.Type) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > filter.Limit {
		ids = ids[:filter.Limit]
	}

	g := common.Graph{Nodes: make([]common.Node, 0, len(ids))}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, s.copyNodeLocked(id))
	}

	edgeIDs := make([]string, 0, len(s.edges))
	for id, e := range s.edges {
		src, okS := s.nodes[e.Source]
		tgt, okT := s.nodes[e.Target]
		if !okS || !okT {
			continue
		}
		// A typed fetch only carries edges inside that type, the
		// unfiltered overview carries everything between known nodes.
		if filter.Type != "" && (src.Type != filter.Type || tgt.Type != filter.Type) {
			continue
		}
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)
	if max := filter.Limit * 3; len(edgeIDs) > max {
		edgeIDs = edgeIDs[:max]
	}
	for _, id := range edgeIDs {
		g.Edges = append(g.Edges, s.copyEdgeLocked(id))
	}
	return g
}

// expansionLocked walks outward from the entity: its direct outgoing edges,
// then the outgoing edges of those targets. Edge endpoints are reported as
// they are, and the row cap bounds the result size.
func (s *Store) expansionLocked(entityID string) common.Graph {
	if _, ok := s.nodes[entityID]; !ok {
		return common.Graph{Nodes: []common.Node{}, Edges: []common.Edge{}}
	}

	outgoing := make(map[string][]string)
	for id, e := range s.edges {
		outgoing[e.Source] = append(outgoing[e.Source], id)
	}
	for _, ids := range outgoing {
		sort.Strings(ids)
	}

	picked := make([]string, 0, store.ExpansionRowLimit)
	seen := make(map[string]bool)

	take := func(edgeID string) bool {
		if seen[edgeID] || len(picked) >= store.ExpansionRowLimit {
			return len(picked) < store.ExpansionRowLimit
		}
		seen[edgeID] = true
		picked = append(picked, edgeID)
		return true
	}

	firstHopTargets := make([]string, 0)
	for _, edgeID := range outgoing[entityID] {
		if !take(edgeID) {
			break
		}
		firstHopTargets = append(firstHopTargets, s.edges[edgeID].Target)
	}
	for _, mid := range firstHopTargets {
		for _, edgeID := range outgoing[mid] {
			if !take(edgeID) {
				break
			}
		}
	}

	g := common.Graph{
		Nodes: []common.Node{s.copyNodeLocked(entityID)},
		Edges: make([]common.Edge, 0, len(picked)),
	}
	included := map[string]bool{entityID: true}
	for _, edgeID := range picked {
		e := s.edges[edgeID]
		for _, end := range []string{e.Source, e.Target} {
			if included[end] {
				continue
			}
			if _, ok := s.nodes[end]; !ok {
				continue
			}
			included[end] = true
			g.Nodes = append(g.Nodes, s.copyNodeLocked(end))
		}
		g.Edges = append(g.Edges, s.copyEdgeLocked(edgeID))
	}
	return g
}

// FetchEntityDetail implements store.Source. An unknown id yields a nil
// entity with empty lists, not an error.
func (s *Store) FetchEntityDetail(ctx context.Context, id string) (store.EntityDetail, error) {
	if err := ctx.Err(); err != nil {
		return store.EntityDetail{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	detail := store.EntityDetail{
		Neighbors: []common.Node{},
		Edges:     []common.Edge{},
	}
	if _, ok := s.nodes[id]; !ok {
		return detail, nil
	}

	entity := s.copyNodeLocked(id)
	detail.Entity = &entity

	edgeIDs := make([]string, 0)
	for edgeID, e := range s.edges {
		if e.Source != id && e.Target != id {
			continue
		}
		other := e.Source
		if other == id {
			other = e.Target
		}
		if _, ok := s.nodes[other]; !ok {
			continue
		}
		edgeIDs = append(edgeIDs, edgeID)
	}
	sort.Strings(edgeIDs)

	seenNeighbor := make(map[string]bool)
	for _, edgeID := range edgeIDs {
		e := s.edges[edgeID]
		detail.Edges = append(detail.Edges, s.copyEdgeLocked(edgeID))

		other := e.Source
		if other == id {
			other = e.Target
		}
		if other == id || seenNeighbor[other] {
			continue
		}
		seenNeighbor[other] = true
		detail.Neighbors = append(detail.Neighbors, s.copyNodeLocked(other))
	}
	return detail, nil
}

// SearchEntities implements store.Source: case-insensitive substring match
// over non-meeting entities, exact matches first, then prefixes, then the
// rest, alphabetically within each band.
func (s *Store) SearchEntities(ctx context.Context, query string, limit int) ([]store.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []store.Match{}, nil
	}
	limit = store.ClampSearchLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		match store.Match
		rank  int
	}
	hits := make([]ranked, 0)
	for _, n := range s.nodes {
		if n.Type == common.NodeTypeMeeting || !n.Type.Filterable() {
			continue
		}
		name := strings.ToLower(n.Label)
		if !strings.Contains(name, query) {
			continue
		}
		rank := 2
		switch {
		case name == query:
			rank = 0
		case strings.HasPrefix(name, query):
			rank = 1
		}
		hits = append(hits, ranked{
			match: store.Match{ID: n.ID, Name: n.Label, Type: n.Type},
			rank:  rank,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		if hits[i].match.Name != hits[j].match.Name {
			return hits[i].match.Name < hits[j].match.Name
		}
		return hits[i].match.ID < hits[j].match.ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]store.Match, len(hits))
	for i, h := range hits {
		out[i] = h.match
	}
	return out, nil
}

// EntityMeetings implements store.Source: meetings reachable over
// ATTENDED, MENTIONED_IN, or DISCUSSED edges, newest first.
func (s *Store) EntityMeetings(ctx context.Context, id string) ([]store.MeetingRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	refs := make([]store.MeetingRef, 0)
	for _, e := range s.edges {
		switch e.Type {
		case common.EdgeTypeAttended, common.EdgeTypeMentionedIn, common.EdgeTypeDiscussed:
		default:
			continue
		}
		if e.Source != id && e.Target != id {
			continue
		}
		other := e.Source
		if other == id {
			other = e.Target
		}
		node, ok := s.nodes[other]
		if !ok || node.Type != common.NodeTypeMeeting || seen[other] {
			continue
		}
		seen[other] = true

		ref := store.MeetingRef{ID: other, Title: node.Label}
		if rec, ok := s.meetings[other]; ok {
			ref.Title = rec.Title
			ref.Snippet = store.Snippet(rec.Summary)
			if !rec.Date.IsZero() {
				d := rec.Date
				ref.Date = &d
			}
		}
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		di, dj := refs[i].Date, refs[j].Date
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.After(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return refs[i].ID < refs[j].ID
	})

	if len(refs) > store.MeetingLimit {
		refs = refs[:store.MeetingLimit]
	}
	return refs, nil
}

// SaveEntities implements store.Writer. Existing entities are updated
// field by field, empty incoming fields never erase stored ones and
// properties merge key-wise.
func (s *Store) SaveEntities(ctx context.Context, nodes []common.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if n.Label == "" {
			n.Label = common.LabelFor(n.Properties, n.ID)
		}

		existing, ok := s.nodes[n.ID]
		if !ok {
			n.Properties = n.Properties.Clone()
			s.nodes[n.ID] = n
			continue
		}

		if n.Label != "" {
			existing.Label = n.Label
		}
		if n.Type != "" {
			existing.Type = n.Type
		}
		if len(n.Properties) > 0 {
			merged := existing.Properties.Clone()
			if merged == nil {
				merged = common.Properties{}
			}
			for k, v := range n.Properties {
				merged[k] = v
			}
			existing.Properties = merged
		}
		s.nodes[n.ID] = existing
	}
	return nil
}

// SaveRelationships implements store.Writer. Re-observed relationships
// gain strength instead of duplicating, edges referencing unknown entities
// are ignored.
func (s *Store) SaveRelationships(ctx context.Context, edges []common.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		if _, ok := s.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := s.nodes[e.Target]; !ok {
			continue
		}
		if e.ID == "" {
			e.ID = common.EdgeID(e.Source, e.Type, e.Target)
		}

		existing, ok := s.edges[e.ID]
		if !ok {
			if e.Strength < 1 {
				e.Strength = 1
			}
			props := e.Properties.Clone()
			if props == nil {
				props = common.Properties{}
			}
			if _, ok := props["first_seen"]; !ok {
				props["first_seen"] = now
			}
			props["last_seen"] = now
			e.Properties = props
			s.edges[e.ID] = e
			continue
		}

		existing.Strength++
		merged := existing.Properties.Clone()
		if merged == nil {
			merged = common.Properties{}
		}
		for k, v := range e.Properties {
			merged[k] = v
		}
		merged["last_seen"] = now
		existing.Properties = merged
		s.edges[e.ID] = existing
	}
	return nil
}

// PutMeeting implements store.Writer: upserts the meeting record and its
// graph node in one step.
func (s *Store) PutMeeting(ctx context.Context, meeting store.MeetingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting.ID == "" {
		return nil
	}

	s.mu.Lock()
	s.meetings[meeting.ID] = meeting
	s.mu.Unlock()

	props := common.Properties{"title": meeting.Title}
	if !meeting.Date.IsZero() {
		props["date"] = meeting.Date.UTC().Format(time.RFC3339)
	}
	return s.SaveEntities(ctx, []common.Node{{
		ID:         meeting.ID,
		Label:      meeting.Title,
		Type:       common.NodeTypeMeeting,
		Properties: props,
	}})
}

func (s *Store) copyNodeLocked(id string) common.Node {
	n := s.nodes[id]
	n.Properties = n.Properties.Clone()
	return n
}

func (s *Store) copyEdgeLocked(id string) common.Edge {
	e := s.edges[id]
	e.Properties = e.Properties.Clone()
	return e
}

package pgx

import (
	"context"
	"fmt"
	"strings"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/store"
)

const entityColumns = "id, label, type, properties"

const edgeColumns = "id, source_id, target_id, type, strength, context, first_seen, last_seen, properties"

const edgeColumnsPrefixed = "r.id, r.source_id, r.target_id, r.type, r.strength, r.context, r.first_seen, r.last_seen, r.properties"

// FetchGraph implements store.Source. Ordering is by id, so the same data
// pages identically on every call.
func (s *GraphDBStorage) FetchGraph(ctx context.Context, filter store.GraphFilter) (common.Graph, error) {
	filter = filter.Normalize()

	if filter.EntityID != "" {
		return s.fetchExpansion(ctx, filter.EntityID)
	}
	return s.fetchOverview(ctx, filter)
}

func (s *GraphDBStorage) fetchOverview(ctx context.Context, filter store.GraphFilter) (common.Graph, error) {
	types := typeList(filter.Type)

	rows, err := s.conn.Query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE type = ANY($1) ORDER BY id LIMIT $2",
		types, filter.Limit,
	)
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to query entities: %w", err)
	}
	nodes, err := collectNodes(rows)
	if err != nil {
		return common.Graph{}, err
	}

	var edgeRows pgxv5.Rows
	if filter.Type != "" {
		edgeRows, err = s.conn.Query(ctx,
			`SELECT `+edgeColumnsPrefixed+`
			 FROM relationships r
			 JOIN entities src ON src.id = r.source_id
			 JOIN entities tgt ON tgt.id = r.target_id
			 WHERE src.type = $1 AND tgt.type = $1
			 ORDER BY r.id LIMIT $2`,
			string(filter.Type), filter.Limit*3,
		)
	} else {
		edgeRows, err = s.conn.Query(ctx,
			"SELECT "+edgeColumns+" FROM relationships ORDER BY id LIMIT $1",
			filter.Limit*3,
		)
	}
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to query relationships: %w", err)
	}
	edges, err := collectEdges(edgeRows)
	if err != nil {
		return common.Graph{}, err
	}

	return common.Graph{Nodes: nodes, Edges: edges}, nil
}

// fetchExpansion walks outward from the entity, one hop and then a second
// hop from the first hop's targets, bounded by the expansion row cap.
func (s *GraphDBStorage) fetchExpansion(ctx context.Context, entityID string) (common.Graph, error) {
	rows, err := s.conn.Query(ctx,
		`WITH first_hop AS (
		     SELECT `+edgeColumns+` FROM relationships
		     WHERE source_id = $1
		     ORDER BY id LIMIT $2
		 ),
		 second_hop AS (
		     SELECT `+edgeColumns+` FROM relationships
		     WHERE source_id IN (SELECT target_id FROM first_hop)
		     ORDER BY id LIMIT $2
		 )
		 SELECT * FROM first_hop
		 UNION
		 SELECT * FROM second_hop
		 ORDER BY id LIMIT $2`,
		entityID, store.ExpansionRowLimit,
	)
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to query expansion: %w", err)
	}
	edges, err := collectEdges(rows)
	if err != nil {
		return common.Graph{}, err
	}

	idSet := map[string]bool{entityID: true}
	ids := []string{entityID}
	for _, e := range edges {
		for _, end := range []string{e.Source, e.Target} {
			if !idSet[end] {
				idSet[end] = true
				ids = append(ids, end)
			}
		}
	}

	nodeRows, err := s.conn.Query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ANY($1) ORDER BY id",
		ids,
	)
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to query expansion entities: %w", err)
	}
	nodes, err := collectNodes(nodeRows)
	if err != nil {
		return common.Graph{}, err
	}

	// An unknown root yields no entity row and therefore an empty graph.
	return common.Graph{Nodes: nodes, Edges: edges}, nil
}

// FetchEntityDetail implements store.Source: the entity plus its direct
// neighborhood in both directions. Unknown ids return a nil entity without
// error.
func (s *GraphDBStorage) FetchEntityDetail(ctx context.Context, id string) (store.EntityDetail, error) {
	detail := store.EntityDetail{
		Neighbors: []common.Node{},
		Edges:     []common.Edge{},
	}

	var (
		label, nodeType string
		rawProps        []byte
	)
	err := s.conn.QueryRow(ctx,
		"SELECT label, type, properties FROM entities WHERE id = $1", id,
	).Scan(&label, &nodeType, &rawProps)
	if err == pgxv5.ErrNoRows {
		return detail, nil
	}
	if err != nil {
		return store.EntityDetail{}, fmt.Errorf("failed to query entity: %w", err)
	}

	props, err := scanProperties(rawProps)
	if err != nil {
		return store.EntityDetail{}, err
	}
	detail.Entity = &common.Node{
		ID:         id,
		Label:      label,
		Type:       common.NodeType(nodeType),
		Properties: props,
	}

	edgeRows, err := s.conn.Query(ctx,
		"SELECT "+edgeColumns+" FROM relationships WHERE source_id = $1 OR target_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return store.EntityDetail{}, fmt.Errorf("failed to query neighborhood: %w", err)
	}
	detail.Edges, err = collectEdges(edgeRows)
	if err != nil {
		return store.EntityDetail{}, err
	}

	neighborSet := map[string]bool{}
	neighborIDs := []string{}
	for _, e := range detail.Edges {
		other := e.Source
		if other == id {
			other = e.Target
		}
		if other == id || neighborSet[other] {
			continue
		}
		neighborSet[other] = true
		neighborIDs = append(neighborIDs, other)
	}
	if len(neighborIDs) > 0 {
		nodeRows, err := s.conn.Query(ctx,
			"SELECT "+entityColumns+" FROM entities WHERE id = ANY($1) ORDER BY id",
			neighborIDs,
		)
		if err != nil {
			return store.EntityDetail{}, fmt.Errorf("failed to query neighbors: %w", err)
		}
		detail.Neighbors, err = collectNodes(nodeRows)
		if err != nil {
			return store.EntityDetail{}, err
		}
	}
	return detail, nil
}

// SearchEntities implements store.Source: case-insensitive substring match
// on labels over the filterable types, exact matches first, then prefix
// matches, then the rest.
func (s *GraphDBStorage) SearchEntities(ctx context.Context, query string, limit int) ([]store.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.Match{}, nil
	}
	limit = store.ClampSearchLimit(limit)

	rows, err := s.conn.Query(ctx,
		`SELECT id, label, type FROM entities
		 WHERE type = ANY($1) AND label ILIKE '%' || $2 || '%'
		 ORDER BY CASE
		     WHEN lower(label) = lower($3) THEN 0
		     WHEN lower(label) LIKE lower($2) || '%' THEN 1
		     ELSE 2
		 END, label, id
		 LIMIT $4`,
		typeList(""), escapeLike(query), query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	matches := []store.Match{}
	for rows.Next() {
		var m store.Match
		var nodeType string
		if err := rows.Scan(&m.ID, &m.Name, &nodeType); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Type = common.NodeType(nodeType)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// EntityMeetings implements store.Source: the meetings linked to an entity
// over attendance, mention, or discussion edges, newest first.
func (s *GraphDBStorage) EntityMeetings(ctx context.Context, id string) ([]store.MeetingRef, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT m.id, m.title, m.date, m.summary
		 FROM meetings m
		 JOIN relationships r
		   ON (r.source_id = $1 AND r.target_id = m.id)
		   OR (r.target_id = $1 AND r.source_id = m.id)
		 WHERE r.type = ANY($2)
		 GROUP BY m.id, m.title, m.date, m.summary
		 ORDER BY m.date DESC NULLS LAST, m.id
		 LIMIT $3`,
		id,
		[]string{
			string(common.EdgeTypeAttended),
			string(common.EdgeTypeMentionedIn),
			string(common.EdgeTypeDiscussed),
		},
		store.MeetingLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	refs := []store.MeetingRef{}
	for rows.Next() {
		var (
			ref     store.MeetingRef
			date    *time.Time
			summary string
		)
		if err := rows.Scan(&ref.ID, &ref.Title, &date, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		ref.Date = date
		ref.Snippet = store.Snippet(summary)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func typeList(only common.NodeType) []string {
	if only != "" {
		return []string{string(only)}
	}
	types := make([]string, len(common.FilterableNodeTypes))
	for i, t := range common.FilterableNodeTypes {
		types[i] = string(t)
	}
	return types
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func collectNodes(rows pgxv5.Rows) ([]common.Node, error) {
	defer rows.Close()

	nodes := []common.Node{}
	for rows.Next() {
		var (
			n        common.Node
			nodeType string
			rawProps []byte
		)
		if err := rows.Scan(&n.ID, &n.Label, &nodeType, &rawProps); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		props, err := scanProperties(rawProps)
		if err != nil {
			return nil, err
		}
		n.Type = common.NodeType(nodeType)
		n.Properties = props
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func collectEdges(rows pgxv5.Rows) ([]common.Edge, error) {
	defer rows.Close()

	edges := []common.Edge{}
	for rows.Next() {
		var (
			id, source, target, edgeType, contextText string
			strength                                  float64
			firstSeen, lastSeen                       time.Time
			rawProps                                  []byte
		)
		if err := rows.Scan(&id, &source, &target, &edgeType, &strength, &contextText, &firstSeen, &lastSeen, &rawProps); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		e, err := edgeFromRow(id, source, target, edgeType, strength, contextText, firstSeen, lastSeen, rawProps)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

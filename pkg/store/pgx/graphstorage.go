// Package pgx implements the graph store on PostgreSQL. Entities and
// relationships live in two flat tables with jsonb property bags, meetings
// in a third keyed by their entity id.
package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skeinhq/skein/backend/pkg/common"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.Storage against PostgreSQL. It is safe
// for concurrent use, all synchronization is the pool's.
type GraphDBStorage struct {
	conn        pgxIConn
	maxParallel int
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithMaxParallel bounds how many upserts a batched write runs at once.
func WithMaxParallel(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// NewGraphDBStorage creates a storage over an existing connection or pool.
func NewGraphDBStorage(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:        conn,
		maxParallel: 8,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// scanProperties decodes a jsonb column into a property map. NULL decodes
// to nil.
func scanProperties(raw []byte) (common.Properties, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var props common.Properties
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return props, nil
}

// edgeFromRow assembles a wire edge from its table columns. The context and
// seen timestamps are columns in the database but plain properties on the
// wire.
func edgeFromRow(
	id, source, target, edgeType string,
	strength float64,
	contextText string,
	firstSeen, lastSeen time.Time,
	rawProps []byte,
) (common.Edge, error) {
	props, err := scanProperties(rawProps)
	if err != nil {
		return common.Edge{}, err
	}
	if props == nil {
		props = common.Properties{}
	}
	if contextText != "" {
		props["context"] = contextText
	}
	props["first_seen"] = firstSeen.UTC().Format(time.RFC3339)
	props["last_seen"] = lastSeen.UTC().Format(time.RFC3339)

	return common.Edge{
		ID:         id,
		Source:     source,
		Target:     target,
		Type:       common.EdgeType(edgeType),
		Strength:   strength,
		Properties: props,
	}, nil
}

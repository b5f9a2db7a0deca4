package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skeinhq/skein/backend/internal/util"
	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// SaveEntities implements store.Writer. Upserts run in parallel, each one
// idempotent on its own: empty incoming fields keep the stored value and
// property bags merge key-wise, so a sparse re-save never erases data.
func (s *GraphDBStorage) SaveEntities(ctx context.Context, nodes []common.Node) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, node := range nodes {
		n := node
		g.Go(func() error {
			if n.ID == "" {
				return nil
			}
			if n.Label == "" {
				n.Label = common.LabelFor(n.Properties, n.ID)
			}
			// Labels come from upstream extraction, Postgres text rejects
			// NUL bytes.
			n.Label = util.SanitizePostgresText(n.Label)
			props, err := json.Marshal(orEmpty(n.Properties))
			if err != nil {
				return fmt.Errorf("failed to encode properties for %s: %w", n.ID, err)
			}

			_, err = s.conn.Exec(gCtx,
				`INSERT INTO entities (id, label, type, properties)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO UPDATE SET
				     label = CASE WHEN EXCLUDED.label = '' THEN entities.label ELSE EXCLUDED.label END,
				     type = CASE WHEN EXCLUDED.type = '' THEN entities.type ELSE EXCLUDED.type END,
				     properties = entities.properties || EXCLUDED.properties,
				     updated_at = now()`,
				n.ID, n.Label, string(n.Type), props,
			)
			if err != nil {
				return fmt.Errorf("failed to save entity %s: %w", n.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SaveRelationships implements store.Writer. A relationship observed again
// gains one strength and a fresh last_seen, edges referencing unknown
// entities are ignored.
func (s *GraphDBStorage) SaveRelationships(ctx context.Context, edges []common.Edge) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, edge := range edges {
		e := edge
		g.Go(func() error {
			if e.Source == "" || e.Target == "" {
				return nil
			}
			if e.ID == "" {
				e.ID = common.EdgeID(e.Source, e.Type, e.Target)
			}

			contextText, props := splitEdgeProperties(e.Properties)
			contextText = util.SanitizePostgresText(contextText)
			rawProps, err := json.Marshal(props)
			if err != nil {
				return fmt.Errorf("failed to encode properties for %s: %w", e.ID, err)
			}
			strength := e.Strength
			if strength < 1 {
				strength = 1
			}

			_, err = s.conn.Exec(gCtx,
				`INSERT INTO relationships (id, source_id, target_id, type, strength, context, properties)
				 SELECT $1, $2, $3, $4, $5::double precision, $6, $7
				 WHERE EXISTS (SELECT 1 FROM entities WHERE id = $2)
				   AND EXISTS (SELECT 1 FROM entities WHERE id = $3)
				 ON CONFLICT (id) DO UPDATE SET
				     strength = relationships.strength + 1,
				     context = CASE WHEN EXCLUDED.context = '' THEN relationships.context ELSE EXCLUDED.context END,
				     last_seen = now(),
				     properties = relationships.properties || EXCLUDED.properties`,
				e.ID, e.Source, e.Target, string(e.Type), strength, contextText, rawProps,
			)
			if err != nil {
				return fmt.Errorf("failed to save relationship %s: %w", e.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// PutMeeting implements store.Writer: the meeting row and its graph entity
// are written in one transaction so a meeting can never exist half.
func (s *GraphDBStorage) PutMeeting(ctx context.Context, meeting store.MeetingRecord) error {
	if meeting.ID == "" {
		return nil
	}
	meeting.Title = util.SanitizePostgresText(meeting.Title)
	meeting.Summary = util.SanitizePostgresText(meeting.Summary)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	props := common.Properties{"title": meeting.Title}
	var date *time.Time
	if !meeting.Date.IsZero() {
		d := meeting.Date.UTC()
		date = &d
		props["date"] = d.Format(time.RFC3339)
	}
	rawProps, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode meeting properties: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO entities (id, label, type, properties)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		     label = EXCLUDED.label,
		     properties = entities.properties || EXCLUDED.properties,
		     updated_at = now()`,
		meeting.ID, meeting.Title, string(common.NodeTypeMeeting), rawProps,
	)
	if err != nil {
		return fmt.Errorf("failed to save meeting entity: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO meetings (id, title, date, summary)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		     title = EXCLUDED.title,
		     date = EXCLUDED.date,
		     summary = EXCLUDED.summary`,
		meeting.ID, meeting.Title, date, meeting.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}

	return tx.Commit(ctx)
}

// splitEdgeProperties pulls the context out of the property bag and drops
// the timestamp keys, which are columns on the relationships table.
func splitEdgeProperties(props common.Properties) (string, common.Properties) {
	out := common.Properties{}
	contextText := ""
	for k, v := range props {
		switch k {
		case "context":
			if s, ok := v.(string); ok {
				contextText = s
			}
		case "first_seen", "last_seen":
		default:
			out[k] = v
		}
	}
	return contextText, out
}

func orEmpty(props common.Properties) common.Properties {
	if props == nil {
		return common.Properties{}
	}
	return props
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skeinhq/skein/backend/pkg/common"
)

// Fetch limits. Requests beyond the maxima are clamped, never rejected, so
// a sloppy client degrades instead of failing.
const (
	DefaultGraphLimit = 100
	MaxGraphLimit     = 500

	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	// ExpansionRowLimit caps how many edge rows a depth-2 neighborhood
	// fetch may produce.
	ExpansionRowLimit = 200

	// MeetingLimit caps how many meetings an entity lists, newest first.
	MeetingLimit = 30

	// SnippetLength is how much of a meeting summary ships with a
	// meeting reference.
	SnippetLength = 200
)

// GraphFilter narrows a graph fetch. At most one of Type and EntityID is
// honored: an EntityID turns the fetch into a depth-2 neighborhood
// expansion around that entity, otherwise Type restricts the overview to a
// single node type. Zero values mean the unfiltered overview.
type GraphFilter struct {
	Type     common.NodeType
	EntityID string
	Limit    int
}

// Normalize clamps the limit into its allowed range.
func (f GraphFilter) Normalize() GraphFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultGraphLimit
	}
	if f.Limit > MaxGraphLimit {
		f.Limit = MaxGraphLimit
	}
	return f
}

// Key returns a stable identity for the filter, used to collapse duplicate
// in-flight fetches and to match async responses to the request that is
// still current.
func (f GraphFilter) Key() string {
	return fmt.Sprintf("graph|%s|%s|%d", f.Type, f.EntityID, f.Limit)
}

// Match is a single search hit.
type Match struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type common.NodeType `json:"type"`
}

// EntityDetail is the depth-1 view around one entity. Entity is nil when
// the id is unknown, with empty neighbor and edge lists; an unknown id is
// not an error.
type EntityDetail struct {
	Entity    *common.Node  `json:"entity"`
	Neighbors []common.Node `json:"neighbors"`
	Edges     []common.Edge `json:"edges"`
}

// MeetingRef points at a meeting an entity took part in or was mentioned
// in. Snippet is the truncated summary for list rendering.
type MeetingRef struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Date    *time.Time `json:"date"`
	Snippet string     `json:"snippet"`
}

// MeetingRecord is the write-side shape of a meeting.
type MeetingRecord struct {
	ID      string
	Title   string
	Date    time.Time
	Summary string
}

// Source provides read access to the graph. Implementations must be safe
// for concurrent use; every method may be called from multiple exploration
// sessions at once.
type Source interface {
	// FetchGraph returns the nodes and edges selected by the filter.
	// Implementations may return edges whose endpoints fall outside the
	// returned node page, callers sanitize.
	FetchGraph(ctx context.Context, filter GraphFilter) (common.Graph, error)

	// FetchEntityDetail returns the entity and its direct neighborhood.
	FetchEntityDetail(ctx context.Context, id string) (EntityDetail, error)

	// SearchEntities matches entities by name, case-insensitively. The
	// limit is clamped to [1, MaxSearchLimit], zero means the default.
	SearchEntities(ctx context.Context, query string, limit int) ([]Match, error)

	// EntityMeetings lists the meetings connected to an entity, newest
	// first.
	EntityMeetings(ctx context.Context, id string) ([]MeetingRef, error)
}

// Writer persists graph observations. Saving a relationship that already
// exists strengthens it instead of duplicating it.
type Writer interface {
	SaveEntities(ctx context.Context, nodes []common.Node) error
	SaveRelationships(ctx context.Context, edges []common.Edge) error
	PutMeeting(ctx context.Context, meeting MeetingRecord) error
}

// Storage is a full read/write store.
type Storage interface {
	Source
	Writer
}

// ClampSearchLimit normalizes a requested search limit.
func ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Snippet shortens a summary to SnippetLength runes for list display.
func Snippet(summary string) string {
	summary = strings.TrimSpace(summary)
	runes := []rune(summary)
	if len(runes) <= SnippetLength {
		return summary
	}
	return string(runes[:SnippetLength]) + "..."
}

package explore

import (
	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/highlight"
	"github.com/skeinhq/skein/backend/pkg/layout"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// NoticeKind classifies a session notice.
type NoticeKind string

const (
	// NoticeError flags a failed fetch. The session keeps its last good
	// state, the notice tells the user why nothing changed.
	NoticeError NoticeKind = "error"

	// NoticeNotFound flags a selection whose entity does not exist.
	NoticeNotFound NoticeKind = "not_found"
)

// Notice is a dismissible, non-fatal message attached to the view.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// View is an immutable snapshot of a session: the merged graph, its
// layout, rendering hints, highlight overlay, and the interaction state
// that produced it. Versions increase with every applied change, so a
// client holding version n can cheaply skip snapshots it has already seen.
//
// The maps in a View are replaced wholesale on change and never mutated, a
// snapshot stays valid forever.
type View struct {
	SessionID string `json:"session_id"`
	Version   uint64 `json:"version"`

	Filter     string   `json:"filter,omitempty"`
	SelectedID string   `json:"selected_id,omitempty"`
	ExpandedID string   `json:"expanded_id,omitempty"`
	Query      string   `json:"query,omitempty"`
	Pending    []string `json:"pending,omitempty"`

	Graph       common.Graph                 `json:"graph"`
	Positions   map[string]layout.Position   `json:"positions"`
	NodeVisuals map[string]layout.NodeVisual `json:"node_visuals"`
	EdgeVisuals map[string]layout.EdgeVisual `json:"edge_visuals"`
	Highlight   map[string]highlight.Flag    `json:"highlight"`

	Matches  []store.Match       `json:"matches,omitempty"`
	Detail   *store.EntityDetail `json:"detail,omitempty"`
	Meetings []store.MeetingRef  `json:"meetings,omitempty"`
	Notice   *Notice             `json:"notice,omitempty"`
}

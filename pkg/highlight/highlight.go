// Package highlight turns a search match set into the per-node emphasis
// overlay a client renders. It is deliberately dumb: matching itself is the
// search provider's job, this package only decides who dims.
package highlight

import (
	"strings"
	"unicode/utf8"
)

// MinQueryLength is the shortest query that activates highlighting.
// Anything shorter behaves like no query at all.
const MinQueryLength = 2

// Flag is the highlight state of a single node.
type Flag struct {
	Dimmed     bool `json:"dimmed"`
	Emphasized bool `json:"emphasized"`
}

// Active reports whether the query is long enough to drive highlighting,
// ignoring surrounding whitespace.
func Active(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) >= MinQueryLength
}

// Build computes the overlay for the given node set. With an inactive
// query every node is plain. With an active query, matched nodes are
// emphasized and everything else is dimmed, so a query matching nothing
// dims the whole graph. Matches outside the node set are ignored.
//
// Build is idempotent: feeding it the same query and sets again yields an
// identical overlay.
func Build(query string, matchIDs []string, nodeIDs []string) map[string]Flag {
	out := make(map[string]Flag, len(nodeIDs))

	if !Active(query) {
		for _, id := range nodeIDs {
			out[id] = Flag{}
		}
		return out
	}

	matched := make(map[string]bool, len(matchIDs))
	for _, id := range matchIDs {
		matched[id] = true
	}

	for _, id := range nodeIDs {
		if matched[id] {
			out[id] = Flag{Emphasized: true}
		} else {
			out[id] = Flag{Dimmed: true}
		}
	}
	return out
}

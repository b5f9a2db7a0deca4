package pgx

import (
	"reflect"
	"testing"
	"time"

	"github.com/skeinhq/skein/backend/pkg/common"
)

func TestSplitEdgeProperties(t *testing.T) {
	contextText, props := splitEdgeProperties(common.Properties{
		"context":    "weekly sync",
		"first_seen": "2025-06-01T00:00:00Z",
		"last_seen":  "2025-07-01T00:00:00Z",
		"note":       "kept",
	})

	if contextText != "weekly sync" {
		t.Fatalf("expected context 'weekly sync', got %q", contextText)
	}
	if !reflect.DeepEqual(props, common.Properties{"note": "kept"}) {
		t.Fatalf("unexpected remaining properties: %+v", props)
	}
}

func TestSplitEdgeProperties_NoContext(t *testing.T) {
	contextText, props := splitEdgeProperties(common.Properties{"note": "kept"})
	if contextText != "" {
		t.Fatalf("expected empty context, got %q", contextText)
	}
	if len(props) != 1 {
		t.Fatalf("expected 1 property, got %d", len(props))
	}
}

func TestSplitEdgeProperties_NonStringContext(t *testing.T) {
	contextText, props := splitEdgeProperties(common.Properties{"context": 42})
	if contextText != "" {
		t.Fatalf("expected empty context for non-string value, got %q", contextText)
	}
	if len(props) != 0 {
		t.Fatalf("expected context key dropped, got %+v", props)
	}
}

func TestEdgeFromRow(t *testing.T) {
	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	e, err := edgeFromRow(
		"a-KNOWS-b", "a", "b", "KNOWS",
		3, "shared project",
		first, last,
		[]byte(`{"note":"kept"}`),
	)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if e.ID != "a-KNOWS-b" || e.Source != "a" || e.Target != "b" {
		t.Fatalf("unexpected edge identity: %+v", e)
	}
	if e.Type != common.EdgeTypeKnows {
		t.Fatalf("expected type KNOWS, got %q", e.Type)
	}
	if e.Strength != 3 {
		t.Fatalf("expected strength 3, got %v", e.Strength)
	}
	if e.Properties["context"] != "shared project" {
		t.Fatalf("expected context in properties, got %+v", e.Properties)
	}
	if e.Properties["first_seen"] != "2025-06-01T10:00:00Z" {
		t.Fatalf("unexpected first_seen: %v", e.Properties["first_seen"])
	}
	if e.Properties["last_seen"] != "2025-07-01T10:00:00Z" {
		t.Fatalf("unexpected last_seen: %v", e.Properties["last_seen"])
	}
	if e.Properties["note"] != "kept" {
		t.Fatalf("expected stored properties preserved, got %+v", e.Properties)
	}
}

func TestEdgeFromRow_NullProperties(t *testing.T) {
	now := time.Now().UTC()
	e, err := edgeFromRow("a-KNOWS-b", "a", "b", "KNOWS", 1, "", now, now, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if e.Properties == nil {
		t.Fatal("expected a property bag even for a NULL column")
	}
	if _, ok := e.Properties["context"]; ok {
		t.Fatalf("expected no context key for empty context, got %+v", e.Properties)
	}
}

func TestScanProperties(t *testing.T) {
	props, err := scanProperties([]byte(`{"name":"Mara","count":2}`))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if props["name"] != "Mara" {
		t.Fatalf("unexpected properties: %+v", props)
	}

	props, err = scanProperties(nil)
	if err != nil {
		t.Fatalf("expected nil error for NULL, got %v", err)
	}
	if props != nil {
		t.Fatalf("expected nil properties for NULL, got %+v", props)
	}

	if _, err := scanProperties([]byte(`{broken`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.input); got != tt.want {
			t.Fatalf("escapeLike(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestTypeList(t *testing.T) {
	got := typeList(common.NodeTypePerson)
	if !reflect.DeepEqual(got, []string{"person"}) {
		t.Fatalf("expected single type, got %v", got)
	}

	all := typeList("")
	if len(all) != len(common.FilterableNodeTypes) {
		t.Fatalf("expected %d types, got %d", len(common.FilterableNodeTypes), len(all))
	}
	for _, tt := range all {
		if common.NodeType(tt) == common.NodeTypeMeeting {
			t.Fatal("meeting must not appear in the filterable type list")
		}
	}
}

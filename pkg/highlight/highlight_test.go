package highlight

import (
	"reflect"
	"testing"
)

func TestActive(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "empty", query: "", want: false},
		{name: "single rune", query: "a", want: false},
		{name: "whitespace only", query: "   ", want: false},
		{name: "single rune padded", query: "  a  ", want: false},
		{name: "two runes", query: "ab", want: true},
		{name: "two multibyte runes", query: "日本", want: true},
		{name: "full word", query: "alice", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Active(tt.query); got != tt.want {
				t.Errorf("Active(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	nodes := []string{"a", "b", "c"}

	tests := []struct {
		name    string
		query   string
		matches []string
		want    map[string]Flag
	}{
		{
			name:    "inactive query leaves all plain",
			query:   "",
			matches: []string{"a"},
			want:    map[string]Flag{"a": {}, "b": {}, "c": {}},
		},
		{
			name:    "short query leaves all plain",
			query:   "x",
			matches: []string{"a"},
			want:    map[string]Flag{"a": {}, "b": {}, "c": {}},
		},
		{
			name:    "match emphasized, rest dimmed",
			query:   "alice",
			matches: []string{"a"},
			want: map[string]Flag{
				"a": {Emphasized: true},
				"b": {Dimmed: true},
				"c": {Dimmed: true},
			},
		},
		{
			name:    "no matches dims everything",
			query:   "zz",
			matches: nil,
			want: map[string]Flag{
				"a": {Dimmed: true},
				"b": {Dimmed: true},
				"c": {Dimmed: true},
			},
		},
		{
			name:    "matches outside node set ignored",
			query:   "alice",
			matches: []string{"a", "ghost"},
			want: map[string]Flag{
				"a": {Emphasized: true},
				"b": {Dimmed: true},
				"c": {Dimmed: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.query, tt.matches, nodes)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildIdempotent(t *testing.T) {
	nodes := []string{"a", "b"}
	first := Build("alice", []string{"a"}, nodes)
	second := Build("alice", []string{"a"}, nodes)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Build() produced different overlays: %v vs %v", first, second)
	}
}

func TestBuildClearRestores(t *testing.T) {
	nodes := []string{"a", "b"}

	dimmed := Build("alice", []string{"a"}, nodes)
	if !dimmed["b"].Dimmed {
		t.Fatalf("expected b dimmed while query active")
	}

	cleared := Build("", nil, nodes)
	for id, f := range cleared {
		if f.Dimmed || f.Emphasized {
			t.Errorf("node %s still flagged after clear: %+v", id, f)
		}
	}
}

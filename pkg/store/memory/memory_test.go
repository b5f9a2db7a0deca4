package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/store"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()

	nodes := []common.Node{
		{ID: "p1", Label: "Ada Lovelace", Type: common.NodeTypePerson},
		{ID: "p2", Label: "Alan Turing", Type: common.NodeTypePerson},
		{ID: "o1", Label: "Bletchley Park", Type: common.NodeTypeOrganization},
		{ID: "t1", Label: "Cryptanalysis", Type: common.NodeTypeTopic},
	}
	if err := s.SaveEntities(ctx, nodes); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}

	edges := []common.Edge{
		{Source: "p1", Target: "p2", Type: common.EdgeTypeKnows},
		{Source: "p2", Target: "o1", Type: common.EdgeTypeWorksAt},
		{Source: "p2", Target: "t1", Type: common.EdgeTypeDiscussed},
	}
	if err := s.SaveRelationships(ctx, edges); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}
	return s
}

func nodeIDs(g common.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestFetchGraphOverview(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	if err := s.PutMeeting(ctx, store.MeetingRecord{ID: "m1", Title: "Standup"}); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}

	g, err := s.FetchGraph(ctx, store.GraphFilter{})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}

	ids := nodeIDs(g)
	if contains(ids, "m1") {
		t.Errorf("overview included meeting node %v", ids)
	}
	for _, want := range []string{"p1", "p2", "o1", "t1"} {
		if !contains(ids, want) {
			t.Errorf("overview missing node %s, got %v", want, ids)
		}
	}
	if len(g.Edges) != 3 {
		t.Errorf("overview has %d edges, want 3", len(g.Edges))
	}
}

func TestFetchGraphTypeFilter(t *testing.T) {
	s := seedStore(t)

	g, err := s.FetchGraph(context.Background(), store.GraphFilter{Type: common.NodeTypePerson})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}

	ids := nodeIDs(g)
	if len(ids) != 2 || !contains(ids, "p1") || !contains(ids, "p2") {
		t.Errorf("person filter returned %v, want [p1 p2]", ids)
	}
	// Only the intra-type KNOWS edge survives a typed fetch.
	if len(g.Edges) != 1 || g.Edges[0].Type != common.EdgeTypeKnows {
		t.Errorf("person filter edges = %+v, want single KNOWS edge", g.Edges)
	}
}

func TestFetchGraphLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	nodes := make([]common.Node, 20)
	for i := range nodes {
		nodes[i] = common.Node{
			ID:    fmt.Sprintf("p%02d", i),
			Label: fmt.Sprintf("Person %02d", i),
			Type:  common.NodeTypePerson,
		}
	}
	if err := s.SaveEntities(ctx, nodes); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}

	g, err := s.FetchGraph(ctx, store.GraphFilter{Limit: 5})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}
	if len(g.Nodes) != 5 {
		t.Errorf("limited fetch returned %d nodes, want 5", len(g.Nodes))
	}
}

func TestFetchGraphExpansion(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	// p1 -> p2 is the first hop, p2 -> o1 and p2 -> t1 the second. The
	// incoming edge x -> p1 must not be part of an outward expansion.
	if err := s.SaveEntities(ctx, []common.Node{
		{ID: "x1", Label: "External", Type: common.NodeTypePerson},
	}); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}
	if err := s.SaveRelationships(ctx, []common.Edge{
		{Source: "x1", Target: "p1", Type: common.EdgeTypeKnows},
	}); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}

	g, err := s.FetchGraph(ctx, store.GraphFilter{EntityID: "p1"})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}

	ids := nodeIDs(g)
	for _, want := range []string{"p1", "p2", "o1", "t1"} {
		if !contains(ids, want) {
			t.Errorf("expansion missing %s, got %v", want, ids)
		}
	}
	if contains(ids, "x1") {
		t.Errorf("expansion followed an incoming edge, got %v", ids)
	}
	if len(g.Edges) != 3 {
		t.Errorf("expansion has %d edges, want 3", len(g.Edges))
	}
}

func TestFetchGraphExpansionUnknownEntity(t *testing.T) {
	s := seedStore(t)

	g, err := s.FetchGraph(context.Background(), store.GraphFilter{EntityID: "nope"})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("unknown entity expansion = %+v, want empty graph", g)
	}
}

func TestFetchGraphExpansionRowCap(t *testing.T) {
	s := New()
	ctx := context.Background()

	nodes := []common.Node{{ID: "hub", Label: "Hub", Type: common.NodeTypePerson}}
	edges := make([]common.Edge, 0, store.ExpansionRowLimit+50)
	for i := 0; i < store.ExpansionRowLimit+50; i++ {
		id := fmt.Sprintf("n%03d", i)
		nodes = append(nodes, common.Node{ID: id, Label: id, Type: common.NodeTypeTopic})
		edges = append(edges, common.Edge{Source: "hub", Target: id, Type: common.EdgeTypeRelatesTo})
	}
	if err := s.SaveEntities(ctx, nodes); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}
	if err := s.SaveRelationships(ctx, edges); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}

	g, err := s.FetchGraph(ctx, store.GraphFilter{EntityID: "hub"})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}
	if len(g.Edges) != store.ExpansionRowLimit {
		t.Errorf("expansion returned %d edges, want cap %d", len(g.Edges), store.ExpansionRowLimit)
	}
}

func TestFetchEntityDetail(t *testing.T) {
	s := seedStore(t)

	detail, err := s.FetchEntityDetail(context.Background(), "p2")
	if err != nil {
		t.Fatalf("FetchEntityDetail() error = %v", err)
	}

	if detail.Entity == nil || detail.Entity.ID != "p2" {
		t.Fatalf("detail entity = %+v, want p2", detail.Entity)
	}
	// Both directions count as neighbors.
	if len(detail.Neighbors) != 3 {
		t.Errorf("detail has %d neighbors, want 3", len(detail.Neighbors))
	}
	if len(detail.Edges) != 3 {
		t.Errorf("detail has %d edges, want 3", len(detail.Edges))
	}
}

func TestFetchEntityDetailUnknown(t *testing.T) {
	s := seedStore(t)

	detail, err := s.FetchEntityDetail(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("FetchEntityDetail() error = %v", err)
	}
	if detail.Entity != nil {
		t.Errorf("unknown id produced entity %+v, want nil", detail.Entity)
	}
	if len(detail.Neighbors) != 0 || len(detail.Edges) != 0 {
		t.Errorf("unknown id produced non-empty neighborhood: %+v", detail)
	}
}

func TestSearchEntities(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.SaveEntities(ctx, []common.Node{
		{ID: "1", Label: "Ada", Type: common.NodeTypePerson},
		{ID: "2", Label: "Ada Lovelace", Type: common.NodeTypePerson},
		{ID: "3", Label: "Ramada", Type: common.NodeTypeOrganization},
		{ID: "4", Label: "Bob", Type: common.NodeTypePerson},
	}); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}
	if err := s.PutMeeting(ctx, store.MeetingRecord{ID: "m", Title: "Ada sync"}); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}

	got, err := s.SearchEntities(ctx, "ADA", 0)
	if err != nil {
		t.Fatalf("SearchEntities() error = %v", err)
	}

	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("SearchEntities() returned %d matches, want %d: %+v", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("match[%d] = %s, want %s (exact, prefix, substring order)", i, got[i].ID, id)
		}
	}
}

func TestSearchEntitiesLimitAndEmpty(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	if got, err := s.SearchEntities(ctx, "   ", 10); err != nil || len(got) != 0 {
		t.Errorf("blank query = (%v, %v), want empty result", got, err)
	}

	got, err := s.SearchEntities(ctx, "a", 1)
	if err != nil {
		t.Fatalf("SearchEntities() error = %v", err)
	}
	if len(got) > 1 {
		t.Errorf("limit 1 returned %d matches", len(got))
	}
}

func TestEntityMeetings(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	older := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC)
	longSummary := strings.Repeat("notes ", 60)

	if err := s.PutMeeting(ctx, store.MeetingRecord{ID: "m1", Title: "Kickoff", Date: older, Summary: "short"}); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}
	if err := s.PutMeeting(ctx, store.MeetingRecord{ID: "m2", Title: "Review", Date: newer, Summary: longSummary}); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}
	if err := s.SaveRelationships(ctx, []common.Edge{
		{Source: "p1", Target: "m1", Type: common.EdgeTypeAttended},
		{Source: "p1", Target: "m2", Type: common.EdgeTypeAttended},
		{Source: "p1", Target: "m2", Type: common.EdgeTypeKnows},
	}); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}

	refs, err := s.EntityMeetings(ctx, "p1")
	if err != nil {
		t.Fatalf("EntityMeetings() error = %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("EntityMeetings() returned %d refs, want 2: %+v", len(refs), refs)
	}
	if refs[0].ID != "m2" || refs[1].ID != "m1" {
		t.Errorf("meetings not newest first: %s, %s", refs[0].ID, refs[1].ID)
	}
	if len([]rune(refs[0].Snippet)) != store.SnippetLength+3 {
		t.Errorf("long summary snippet length = %d, want %d plus ellipsis", len([]rune(refs[0].Snippet)), store.SnippetLength)
	}
	if !strings.HasSuffix(refs[0].Snippet, "...") {
		t.Errorf("long summary snippet not truncated: %q", refs[0].Snippet)
	}
	if refs[1].Snippet != "short" {
		t.Errorf("short summary snippet = %q, want unchanged", refs[1].Snippet)
	}
}

func TestSaveEntitiesMerge(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveEntities(ctx, []common.Node{{
		ID:         "p1",
		Label:      "Ada",
		Type:       common.NodeTypePerson,
		Properties: common.Properties{"role": "engineer", "weight": 2.0},
	}}); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}

	// Sparse re-save must not erase what is already known.
	if err := s.SaveEntities(ctx, []common.Node{{
		ID:         "p1",
		Properties: common.Properties{"weight": 5.0},
	}}); err != nil {
		t.Fatalf("SaveEntities() error = %v", err)
	}

	detail, err := s.FetchEntityDetail(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchEntityDetail() error = %v", err)
	}
	if detail.Entity.Label != "Ada" {
		t.Errorf("label = %q, want Ada preserved", detail.Entity.Label)
	}
	if detail.Entity.Type != common.NodeTypePerson {
		t.Errorf("type = %q, want person preserved", detail.Entity.Type)
	}
	if v, _ := detail.Entity.Properties.Number("weight"); v != 5 {
		t.Errorf("weight = %v, want updated to 5", v)
	}
	if v, _ := detail.Entity.Properties.String("role"); v != "engineer" {
		t.Errorf("role = %q, want preserved", v)
	}
}

func TestSaveRelationshipsStrengthen(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	again := []common.Edge{{Source: "p1", Target: "p2", Type: common.EdgeTypeKnows}}
	if err := s.SaveRelationships(ctx, again); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}

	detail, err := s.FetchEntityDetail(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchEntityDetail() error = %v", err)
	}

	var knows *common.Edge
	for i := range detail.Edges {
		if detail.Edges[i].Type == common.EdgeTypeKnows {
			knows = &detail.Edges[i]
		}
	}
	if knows == nil {
		t.Fatalf("KNOWS edge missing from detail")
	}
	if knows.Strength != 2 {
		t.Errorf("strength after re-observation = %v, want 2", knows.Strength)
	}
	if _, ok := knows.Properties["first_seen"]; !ok {
		t.Errorf("first_seen not recorded: %+v", knows.Properties)
	}
}

func TestSaveRelationshipsUnknownEndpointIgnored(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	if err := s.SaveRelationships(ctx, []common.Edge{
		{Source: "p1", Target: "ghost", Type: common.EdgeTypeKnows},
	}); err != nil {
		t.Fatalf("SaveRelationships() error = %v", err)
	}

	g, err := s.FetchGraph(ctx, store.GraphFilter{})
	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}
	for _, e := range g.Edges {
		if e.Target == "ghost" {
			t.Errorf("edge to unknown entity was stored: %+v", e)
		}
	}
}

func TestPutMeetingCreatesNode(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.PutMeeting(ctx, store.MeetingRecord{
		ID:    "m1",
		Title: "Planning",
		Date:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("PutMeeting() error = %v", err)
	}

	detail, err := s.FetchEntityDetail(ctx, "m1")
	if err != nil {
		t.Fatalf("FetchEntityDetail() error = %v", err)
	}
	if detail.Entity == nil || detail.Entity.Type != common.NodeTypeMeeting {
		t.Fatalf("meeting node = %+v, want meeting type", detail.Entity)
	}
	if detail.Entity.Label != "Planning" {
		t.Errorf("meeting label = %q, want Planning", detail.Entity.Label)
	}
}

package layout

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/skeinhq/skein/backend/pkg/common"
)

func testGraph(nodes int, edges [][2]int) common.Graph {
	g := common.Graph{}
	ids := make([]string, nodes)
	for i := 0; i < nodes; i++ {
		ids[i] = string(rune('a' + i))
		g.Nodes = append(g.Nodes, common.Node{ID: ids[i], Label: ids[i], Type: common.NodeTypePerson})
	}
	for _, e := range edges {
		src, tgt := ids[e[0]], ids[e[1]]
		g.Edges = append(g.Edges, common.Edge{
			ID:       common.EdgeID(src, common.EdgeTypeKnows, tgt),
			Source:   src,
			Target:   tgt,
			Type:     common.EdgeTypeKnows,
			Strength: 1,
		})
	}
	return g
}

func distance(a, b Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestLayoutDeterministicPerSeed(t *testing.T) {
	engine := NewEngine(DefaultOptions())
	g := testGraph(8, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}})

	first, err := engine.Layout(context.Background(), g, 42)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	second, err := engine.Layout(context.Background(), g, 42)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed produced different layouts")
	}

	other, err := engine.Layout(context.Background(), g, 43)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if reflect.DeepEqual(first, other) {
		t.Errorf("different seeds produced identical layouts")
	}
}

func TestLayoutEmptyGraph(t *testing.T) {
	engine := NewEngine(DefaultOptions())

	got, err := engine.Layout(context.Background(), common.Graph{}, 1)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Layout() of empty graph = %v, want empty map", got)
	}
}

func TestLayoutSingleNodeCentered(t *testing.T) {
	opts := DefaultOptions()
	engine := NewEngine(opts)
	g := testGraph(1, nil)

	got, err := engine.Layout(context.Background(), g, 7)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}

	want := Position{X: opts.Width / 2, Y: opts.Height / 2}
	if got["a"] != want {
		t.Errorf("single node at %v, want %v", got["a"], want)
	}
}

func TestLayoutZeroEdgesScatter(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 800
	opts.Height = 600
	engine := NewEngine(opts)
	g := testGraph(6, nil)

	got, err := engine.Layout(context.Background(), g, 11)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("Layout() returned %d positions, want 6", len(got))
	}

	for id, p := range got {
		if p.X < opts.Padding || p.X > opts.Width-opts.Padding ||
			p.Y < opts.Padding || p.Y > opts.Height-opts.Padding {
			t.Errorf("node %s at %v outside padded viewport", id, p)
		}
	}

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if d := distance(got[ids[i]], got[ids[j]]); d < 2*MinNodeRadius {
				t.Errorf("nodes %s and %s overlap, distance %.2f", ids[i], ids[j], d)
			}
		}
	}
}

func TestLayoutEdgePullsNodesTogether(t *testing.T) {
	engine := NewEngine(DefaultOptions())

	linked := testGraph(2, [][2]int{{0, 1}})
	loose := testGraph(2, nil)

	// Same seed means identical starting scatter, so the spring is the
	// only difference between the two runs.
	withEdge, err := engine.Layout(context.Background(), linked, 5)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	withoutEdge, err := engine.Layout(context.Background(), loose, 5)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}

	dLinked := distance(withEdge["a"], withEdge["b"])
	dLoose := distance(withoutEdge["a"], withoutEdge["b"])
	if dLinked >= dLoose {
		t.Errorf("linked distance %.2f not smaller than unlinked %.2f", dLinked, dLoose)
	}
}

func TestLayoutAllPositionsFinite(t *testing.T) {
	engine := NewEngine(DefaultOptions())
	g := testGraph(12, [][2]int{
		{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5},
		{5, 6}, {6, 7}, {8, 9}, {10, 11}, {0, 11},
	})

	got, err := engine.Layout(context.Background(), g, 99)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	for id, p := range got {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			t.Errorf("node %s has non-finite position %v", id, p)
		}
	}
}

func TestLayoutCancelled(t *testing.T) {
	engine := NewEngine(DefaultOptions())
	g := testGraph(5, [][2]int{{0, 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Layout(ctx, g, 3); err != context.Canceled {
		t.Errorf("Layout() error = %v, want context.Canceled", err)
	}
}

func TestNewEngineFillsDefaults(t *testing.T) {
	engine := NewEngine(Options{Width: 640})
	opts := engine.Options()

	if opts.Width != 640 {
		t.Errorf("Width = %v, want 640", opts.Width)
	}
	if opts.Ticks != DefaultOptions().Ticks {
		t.Errorf("Ticks = %v, want default %v", opts.Ticks, DefaultOptions().Ticks)
	}
	if opts.Friction <= 0 || opts.Friction >= 1 {
		t.Errorf("Friction = %v, want damping in (0, 1)", opts.Friction)
	}
}

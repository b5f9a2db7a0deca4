// Package layout computes 2D positions for graph nodes with a fixed-tick
// force simulation: pairwise repulsion, spring attraction along edges,
// centering on the viewport, and collision separation by node radius.
//
// A run is a single synchronous pass. Given the same graph, options, and
// seed it produces identical positions, which is what makes layout behavior
// testable at all. Randomness enters only through the seed, used for the
// initial scatter and for breaking exact position ties.
package layout

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/graph"
)

// Position is a node's computed viewport coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options tunes the simulation. The zero value is not usable, call
// DefaultOptions and override what you need.
type Options struct {
	// Width and Height of the viewport the layout targets.
	Width  float64
	Height float64

	// Padding keeps nodes away from the viewport borders.
	Padding float64

	// Ticks is the fixed number of simulation steps per run.
	Ticks int

	// LinkDistance is the base rest length of an edge spring. LinkSpread
	// stretches it for well-connected endpoints so hubs keep room around
	// them.
	LinkDistance float64
	LinkSpread   float64

	// LinkStrength scales the spring force, Repulsion the pairwise push
	// between all nodes, CenterStrength the pull of the layout centroid
	// toward the viewport center.
	LinkStrength   float64
	Repulsion      float64
	CenterStrength float64

	// CollidePadding is added to the sum of two node radii before they
	// count as overlapping.
	CollidePadding float64

	// Friction damps velocities between ticks.
	Friction float64
}

// DefaultOptions returns the standard tuning for a 1280x800 viewport.
func DefaultOptions() Options {
	return Options{
		Width:          1280,
		Height:         800,
		Padding:        40,
		Ticks:          180,
		LinkDistance:   80,
		LinkSpread:     0.25,
		LinkStrength:   0.3,
		Repulsion:      180,
		CenterStrength: 1,
		CollidePadding: 3,
		Friction:       0.6,
	}
}

// Engine runs force layouts with a fixed set of options.
type Engine struct {
	opts Options
}

// NewEngine validates and captures the options. Zeroed fields fall back to
// their defaults so partially filled options behave sanely.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Padding < 0 {
		opts.Padding = def.Padding
	}
	if opts.Ticks <= 0 {
		opts.Ticks = def.Ticks
	}
	if opts.LinkDistance <= 0 {
		opts.LinkDistance = def.LinkDistance
	}
	if opts.LinkSpread < 0 {
		opts.LinkSpread = def.LinkSpread
	}
	if opts.LinkStrength <= 0 {
		opts.LinkStrength = def.LinkStrength
	}
	if opts.Repulsion <= 0 {
		opts.Repulsion = def.Repulsion
	}
	if opts.CenterStrength <= 0 {
		opts.CenterStrength = def.CenterStrength
	}
	if opts.CollidePadding < 0 {
		opts.CollidePadding = def.CollidePadding
	}
	if opts.Friction <= 0 || opts.Friction >= 1 {
		opts.Friction = def.Friction
	}
	return &Engine{opts: opts}
}

// Options returns the engine's effective tuning.
func (e *Engine) Options() Options {
	return e.opts
}

type spring struct {
	source int
	target int
	rest   float64
}

// Layout computes positions for every node in g. The seed fully determines
// the result for a given graph and option set. Cancelling the context
// aborts between ticks and returns the context error.
func (e *Engine) Layout(ctx context.Context, g common.Graph, seed int64) (map[string]Position, error) {
	n := len(g.Nodes)
	out := make(map[string]Position, n)
	if n == 0 {
		return out, nil
	}

	opts := e.opts
	center := r2.Vec{X: opts.Width / 2, Y: opts.Height / 2}

	if n == 1 {
		out[g.Nodes[0].ID] = Position{X: center.X, Y: center.Y}
		return out, nil
	}

	rng := rand.New(rand.NewSource(seed))

	index := make(map[string]int, n)
	pos := make([]r2.Vec, n)
	vel := make([]r2.Vec, n)
	radius := make([]float64, n)

	degrees := graph.Degrees(g)
	for i, node := range g.Nodes {
		index[node.ID] = i
		pos[i] = r2.Vec{
			X: opts.Padding + rng.Float64()*(opts.Width-2*opts.Padding),
			Y: opts.Padding + rng.Float64()*(opts.Height-2*opts.Padding),
		}
		radius[i] = NodeRadius(node, degrees[node.ID])
	}

	springs := make([]spring, 0, len(g.Edges))
	for _, edge := range g.Edges {
		s, okS := index[edge.Source]
		t, okT := index[edge.Target]
		if !okS || !okT || s == t {
			continue
		}
		deg := degrees[edge.Source]
		if degrees[edge.Target] > deg {
			deg = degrees[edge.Target]
		}
		rest := opts.LinkDistance * (1 + opts.LinkSpread*math.Log1p(float64(deg-1)))
		springs = append(springs, spring{source: s, target: t, rest: rest})
	}

	for tick := 0; tick < opts.Ticks; tick++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		alpha := 1 - float64(tick)/float64(opts.Ticks)

		// Repulsion between every pair, inverse to distance.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				delta := pos[i].Sub(pos[j])
				dist := r2.Norm(delta)
				if dist < 1e-6 {
					delta = r2.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5}
					dist = r2.Norm(delta)
				}
				push := delta.Scale(opts.Repulsion * alpha / (dist * dist))
				vel[i] = vel[i].Add(push)
				vel[j] = vel[j].Sub(push)
			}
		}

		// Spring attraction toward each edge's rest length.
		for _, sp := range springs {
			delta := pos[sp.target].Sub(pos[sp.source])
			dist := r2.Norm(delta)
			if dist < 1e-6 {
				continue
			}
			stretch := (dist - sp.rest) / dist * opts.LinkStrength * alpha
			pull := delta.Scale(stretch / 2)
			vel[sp.source] = vel[sp.source].Add(pull)
			vel[sp.target] = vel[sp.target].Sub(pull)
		}

		// Integrate with friction, keep inside the padded viewport.
		for i := 0; i < n; i++ {
			vel[i] = vel[i].Scale(opts.Friction)
			pos[i] = pos[i].Add(vel[i])
			pos[i] = clampVec(pos[i], opts)
		}

		// Recenter the centroid on the viewport center.
		centroid := r2.Vec{}
		for i := 0; i < n; i++ {
			centroid = centroid.Add(pos[i])
		}
		centroid = centroid.Scale(1 / float64(n))
		shift := center.Sub(centroid).Scale(opts.CenterStrength)
		for i := 0; i < n; i++ {
			pos[i] = clampVec(pos[i].Add(shift), opts)
		}

		// Separate overlapping nodes by their radii.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				minDist := radius[i] + radius[j] + opts.CollidePadding
				delta := pos[i].Sub(pos[j])
				dist := r2.Norm(delta)
				if dist >= minDist {
					continue
				}
				if dist < 1e-6 {
					delta = r2.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5}
					dist = r2.Norm(delta)
				}
				push := delta.Scale((minDist - dist) / dist / 2)
				pos[i] = clampVec(pos[i].Add(push), opts)
				pos[j] = clampVec(pos[j].Sub(push), opts)
			}
		}
	}

	for i, node := range g.Nodes {
		p := pos[i]
		if !finite(p.X) || !finite(p.Y) {
			p = center
		}
		out[node.ID] = Position{X: p.X, Y: p.Y}
	}
	return out, nil
}

func clampVec(v r2.Vec, opts Options) r2.Vec {
	return r2.Vec{
		X: clamp(v.X, opts.Padding, opts.Width-opts.Padding),
		Y: clamp(v.Y, opts.Padding, opts.Height-opts.Padding),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package spatial

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// DefaultTolerance absorbs floating point noise between vertices that are
// meant to coincide on shared borders.
const DefaultTolerance = 1e-9

// Option configures BuildGraph.
type Option func(*buildOptions)

type buildOptions struct {
	tolerance float64
}

// WithTolerance sets the distance under which two boundaries are treated as
// touching. Negative values are ignored.
func WithTolerance(eps float64) Option {
	return func(o *buildOptions) {
		if eps >= 0 {
			o.tolerance = eps
		}
	}
}

// centre indexes a record by the centre of its bounding box.
type centre struct {
	idx int
	p   orb.Point
}

func (c centre) Point() orb.Point { return c.p }

// BuildGraph validates the records and returns their queen-contiguity graph:
// two regions are adjacent when their boundaries share at least one point.
// Every record becomes a node, including records with no neighbours.
func BuildGraph(records []Record, opts ...Option) (*Graph, error) {
	o := buildOptions{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}

	if err := Validate(records, o.tolerance); err != nil {
		return nil, err
	}

	g := NewGraph()
	bounds := make([]orb.Bound, len(records))
	extent := records[0].Bound()
	var halfW, halfH float64
	for i, rec := range records {
		g.AddNode(rec.ID)
		b := rec.Bound()
		bounds[i] = b
		extent = extent.Union(b)
		halfW = math.Max(halfW, (b.Max[0]-b.Min[0])/2)
		halfH = math.Max(halfH, (b.Max[1]-b.Min[1])/2)
	}

	// A pair whose bounds intersect has its centres no further apart than
	// the sum of their half extents, so padding each query by the largest
	// half extent finds every candidate.
	qt := quadtree.New(padBound(extent, 1, 1))
	for i, b := range bounds {
		if err := qt.Add(centre{idx: i, p: b.Center()}); err != nil {
			return nil, fmt.Errorf("index region %q: %w", records[i].ID, err)
		}
	}

	var buf []orb.Pointer
	for i, rec := range records {
		query := padBound(bounds[i], halfW+o.tolerance, halfH+o.tolerance)
		buf = qt.InBound(buf[:0], query)
		for _, ptr := range buf {
			j := ptr.(centre).idx
			if j <= i {
				continue
			}
			if !padBound(bounds[i], o.tolerance, o.tolerance).Intersects(bounds[j]) {
				continue
			}
			if boundariesTouch(rec.Geometry, records[j].Geometry, o.tolerance) {
				if err := g.AddEdge(rec.ID, records[j].ID); err != nil {
					return nil, err
				}
			}
		}
	}

	slog.Debug("contiguity graph built", "regions", g.Len(), "edges", g.EdgeCount())
	return g, nil
}

package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// side returns the signed distance of c from the line through a and b.
// For a degenerate base (a == b) it returns the distance from a to c.
func side(a, b, c orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(c[0]-a[0], c[1]-a[1])
	}
	return (dx*(c[1]-a[1]) - dy*(c[0]-a[0])) / length
}

// withinBox reports whether c lies inside the box spanned by a and b,
// padded by eps.
func withinBox(a, b, c orb.Point, eps float64) bool {
	return c[0] >= math.Min(a[0], b[0])-eps && c[0] <= math.Max(a[0], b[0])+eps &&
		c[1] >= math.Min(a[1], b[1])-eps && c[1] <= math.Max(a[1], b[1])+eps
}

func straddles(d1, d2, eps float64) bool {
	return (d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)
}

// segmentsTouch reports whether segments p1p2 and q1q2 share at least one
// point, within tolerance eps. Touching endpoints and collinear overlap count.
func segmentsTouch(p1, p2, q1, q2 orb.Point, eps float64) bool {
	if math.Max(p1[0], p2[0])+eps < math.Min(q1[0], q2[0]) ||
		math.Max(q1[0], q2[0])+eps < math.Min(p1[0], p2[0]) ||
		math.Max(p1[1], p2[1])+eps < math.Min(q1[1], q2[1]) ||
		math.Max(q1[1], q2[1])+eps < math.Min(p1[1], p2[1]) {
		return false
	}

	d1 := side(q1, q2, p1)
	d2 := side(q1, q2, p2)
	d3 := side(p1, p2, q1)
	d4 := side(p1, p2, q2)

	if straddles(d1, d2, eps) && straddles(d3, d4, eps) {
		return true
	}

	switch {
	case math.Abs(d1) <= eps && withinBox(q1, q2, p1, eps):
		return true
	case math.Abs(d2) <= eps && withinBox(q1, q2, p2, eps):
		return true
	case math.Abs(d3) <= eps && withinBox(p1, p2, q1, eps):
		return true
	case math.Abs(d4) <= eps && withinBox(p1, p2, q2, eps):
		return true
	}
	return false
}

// ringsTouch reports whether the boundaries of two rings share a point.
func ringsTouch(a, b orb.Ring, eps float64) bool {
	if !padBound(a.Bound(), eps, eps).Intersects(b.Bound()) {
		return false
	}
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsTouch(a[i], a[i+1], b[j], b[j+1], eps) {
				return true
			}
		}
	}
	return false
}

// boundariesTouch is the queen contiguity predicate: true when any ring of
// a shares a boundary point with any ring of b.
func boundariesTouch(a, b orb.MultiPolygon, eps float64) bool {
	for _, pa := range a {
		for _, ra := range pa {
			for _, pb := range b {
				for _, rb := range pb {
					if ringsTouch(ra, rb, eps) {
						return true
					}
				}
			}
		}
	}
	return false
}

func padBound(b orb.Bound, dx, dy float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dx, b.Min[1] - dy},
		Max: orb.Point{b.Max[0] + dx, b.Max[1] + dy},
	}
}

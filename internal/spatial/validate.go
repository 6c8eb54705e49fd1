package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Validate checks every record for a usable identifier and geometry.
// The first problem found is returned as a *GeometryError; an empty slice
// yields an *EmptyInputError.
func Validate(records []Record, eps float64) error {
	if len(records) == 0 {
		return &EmptyInputError{Stage: "input"}
	}

	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return &GeometryError{Reason: fmt.Sprintf("record %d has an empty id", i)}
		}
		if _, dup := seen[rec.ID]; dup {
			return &GeometryError{ID: rec.ID, Reason: "duplicate id"}
		}
		seen[rec.ID] = struct{}{}

		if err := validateGeometry(rec, eps); err != nil {
			return err
		}
	}
	return nil
}

func validateGeometry(rec Record, eps float64) error {
	if len(rec.Geometry) == 0 {
		return &GeometryError{ID: rec.ID, Reason: "empty geometry"}
	}
	for pi, poly := range rec.Geometry {
		if len(poly) == 0 {
			return &GeometryError{ID: rec.ID, Reason: fmt.Sprintf("polygon %d has no rings", pi)}
		}
		for ri, ring := range poly {
			if reason := ringProblem(ring, eps); reason != "" {
				return &GeometryError{ID: rec.ID, Reason: fmt.Sprintf("polygon %d ring %d: %s", pi, ri, reason)}
			}
		}
	}
	return nil
}

// ringProblem returns a description of what is wrong with the ring, or ""
// when the ring is usable.
func ringProblem(ring orb.Ring, eps float64) string {
	if len(ring) < 4 {
		return fmt.Sprintf("%d points, need at least 4", len(ring))
	}
	for _, p := range ring {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return "non-finite coordinate"
		}
	}
	if !ring.Closed() {
		return "ring is not closed"
	}
	if math.Abs(planar.Area(ring)) == 0 {
		return "zero area"
	}
	if selfIntersects(dedupe(ring), eps) {
		return "self-intersecting"
	}
	return ""
}

// dedupe drops consecutive repeated points.
func dedupe(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring))
	for i, p := range ring {
		if i > 0 && p.Equal(ring[i-1]) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// selfIntersects reports whether two non-adjacent edges of a closed ring
// share a point.
func selfIntersects(ring orb.Ring, eps float64) bool {
	n := len(ring) - 1 // number of edges
	if n < 3 {
		return true
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last edges share the closing vertex
			}
			if segmentsTouch(ring[i], ring[i+1], ring[j], ring[j+1], eps) {
				return true
			}
		}
	}
	return false
}

package world

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// HexCoord is a position on the synthetic hex grid in axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// ID returns the region identifier used for this cell.
func (h HexCoord) ID() string {
	return fmt.Sprintf("hex_%d_%d", h.Q, h.R)
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// Center returns the planar centre of a pointy-top hex with the given
// circumradius.
func (h HexCoord) Center(size float64) orb.Point {
	x := size * math.Sqrt(3) * (float64(h.Q) + float64(h.R)/2)
	y := size * 1.5 * float64(h.R)
	return orb.Point{x, y}
}

// Polygon returns the closed hexagon outline of the cell, counter-clockwise.
// Corners are rounded so neighbouring cells share vertices exactly.
func (h HexCoord) Polygon(size float64) orb.Polygon {
	c := h.Center(size)
	ring := make(orb.Ring, 0, 7)
	for i := 0; i < 6; i++ {
		angle := math.Pi / 180 * float64(60*i-30)
		ring = append(ring, orb.Point{
			round(c[0] + size*math.Cos(angle)),
			round(c[1] + size*math.Sin(angle)),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

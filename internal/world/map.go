package world

import (
	"fmt"
	"sort"

	"github.com/talgya/geo-schelling/internal/spatial"
)

// Hex is a single cell of the synthetic map.
type Hex struct {
	Coord     HexCoord `json:"coord"`
	Elevation float64  `json:"elevation"` // 0.0 (sea floor) to 1.0 (peak)
	Land      bool     `json:"land"`
}

// Map holds a generated hex grid.
type Map struct {
	Hexes  map[HexCoord]*Hex `json:"-"` // All hexes keyed by coordinate
	Radius int               `json:"radius"`
	Seed   int64             `json:"seed"` // Noise seed the map was generated from
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Hexes:  make(map[HexCoord]*Hex),
		Radius: radius,
	}
}

// Set places a hex at the given coordinate.
func (m *Map) Set(hex *Hex) {
	m.Hexes[hex.Coord] = hex
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= m.Radius
}

// HexCount returns the total number of hexes in the map.
func (m *Map) HexCount() int {
	return len(m.Hexes)
}

// LandCount returns the number of land hexes.
func (m *Map) LandCount() int {
	n := 0
	for _, h := range m.Hexes {
		if h.Land {
			n++
		}
	}
	return n
}

// Records converts every land hex into a region record with a hexagon of
// the given circumradius. Output is ordered by (r, q) so runs are repeatable.
func (m *Map) Records(size float64) []spatial.Record {
	coords := make([]HexCoord, 0, len(m.Hexes))
	for c, h := range m.Hexes {
		if h.Land {
			coords = append(coords, c)
		}
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].R != coords[j].R {
			return coords[i].R < coords[j].R
		}
		return coords[i].Q < coords[j].Q
	})

	out := make([]spatial.Record, 0, len(coords))
	for _, c := range coords {
		rec, _ := spatial.NewRecord(c.ID(), c.Polygon(size))
		out = append(out, rec)
	}
	return out
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, seed=%d, hexes=%d, land=%d)", m.Radius, m.Seed, m.HexCount(), m.LandCount())
}

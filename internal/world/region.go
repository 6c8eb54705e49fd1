// Package world provides the simulation space: regions backed by real
// polygons, their neighbour links, and a synthetic hex map generator.
package world

import (
	"fmt"

	"github.com/paulmach/orb"
)

// RegionType is the occupancy state of a region.
type RegionType uint8

const (
	Unoccupied RegionType = iota // No agent lives here
	Majority                     // Occupied by the majority group
	Minority                     // Occupied by the minority group
)

// String returns the lower-case name used in exports and the API.
func (t RegionType) String() string {
	switch t {
	case Unoccupied:
		return "unoccupied"
	case Majority:
		return "majority"
	case Minority:
		return "minority"
	default:
		return fmt.Sprintf("RegionType(%d)", uint8(t))
	}
}

// Occupied reports whether an agent lives in a region of this type.
func (t RegionType) Occupied() bool {
	return t == Majority || t == Minority
}

// ParseRegionType is the inverse of RegionType.String.
func ParseRegionType(s string) (RegionType, error) {
	switch s {
	case "unoccupied":
		return Unoccupied, nil
	case "majority":
		return Majority, nil
	case "minority":
		return Minority, nil
	}
	return Unoccupied, fmt.Errorf("unknown region type %q", s)
}

// Region is one simulation cell. ID and Geometry are fixed at construction;
// Type is the only state the simulation changes.
type Region struct {
	ID       string           `json:"id"`
	Geometry orb.MultiPolygon `json:"-"`
	Type     RegionType       `json:"type"`
}

func (r *Region) String() string {
	return fmt.Sprintf("Region(%s, %s)", r.ID, r.Type)
}

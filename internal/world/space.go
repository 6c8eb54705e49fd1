package world

import (
	"fmt"

	"github.com/talgya/geo-schelling/internal/spatial"
)

// Space owns every Region of a run and answers neighbour queries.
// Regions are handed out by pointer; there is exactly one copy of each.
type Space struct {
	regions   []*Region
	index     map[string]int
	neighbors [][]*Region
}

// TypeCounts is a census of region types.
type TypeCounts struct {
	Unoccupied int `json:"unoccupied"`
	Majority   int `json:"majority"`
	Minority   int `json:"minority"`
}

// Occupied returns Majority + Minority.
func (c TypeCounts) Occupied() int {
	return c.Majority + c.Minority
}

// NewSpace creates one Unoccupied region per record. Every record must be a
// node of g; neighbour links are g restricted to the records.
func NewSpace(records []spatial.Record, g *spatial.Graph) (*Space, error) {
	if len(records) == 0 {
		return nil, &spatial.EmptyInputError{Stage: "space"}
	}

	s := &Space{
		regions:   make([]*Region, len(records)),
		index:     make(map[string]int, len(records)),
		neighbors: make([][]*Region, len(records)),
	}
	for i, rec := range records {
		if !g.HasNode(rec.ID) {
			return nil, fmt.Errorf("region %q missing from adjacency graph", rec.ID)
		}
		if _, dup := s.index[rec.ID]; dup {
			return nil, &spatial.GeometryError{ID: rec.ID, Reason: "duplicate id"}
		}
		s.regions[i] = &Region{ID: rec.ID, Geometry: rec.Geometry, Type: Unoccupied}
		s.index[rec.ID] = i
	}

	// Graph neighbour lists are sorted by ID, so these are too.
	for i, r := range s.regions {
		for _, nid := range g.Neighbors(r.ID) {
			if j, ok := s.index[nid]; ok {
				s.neighbors[i] = append(s.neighbors[i], s.regions[j])
			}
		}
	}
	return s, nil
}

// Len returns the number of regions.
func (s *Space) Len() int {
	return len(s.regions)
}

// Regions returns the shared region handles in construction order.
func (s *Space) Regions() []*Region {
	out := make([]*Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// Region looks up a region by ID.
func (s *Space) Region(id string) (*Region, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.regions[i], true
}

// Neighbors returns the regions adjacent to r, sorted by ID. An isolated or
// foreign region has no neighbours.
func (s *Space) Neighbors(r *Region) []*Region {
	i, ok := s.index[r.ID]
	if !ok || s.regions[i] != r {
		return []*Region{}
	}
	out := make([]*Region, len(s.neighbors[i]))
	copy(out, s.neighbors[i])
	return out
}

// Unoccupied returns the regions that are currently empty. It is computed
// from live state on every call.
func (s *Space) Unoccupied() []*Region {
	var out []*Region
	for _, r := range s.regions {
		if r.Type == Unoccupied {
			out = append(out, r)
		}
	}
	return out
}

// Occupied returns the regions that currently hold an agent.
func (s *Space) Occupied() []*Region {
	var out []*Region
	for _, r := range s.regions {
		if r.Type.Occupied() {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies the current region types.
func (s *Space) Counts() TypeCounts {
	var c TypeCounts
	for _, r := range s.regions {
		switch r.Type {
		case Majority:
			c.Majority++
		case Minority:
			c.Minority++
		default:
			c.Unoccupied++
		}
	}
	return c
}

// String returns a summary of the space.
func (s *Space) String() string {
	c := s.Counts()
	return fmt.Sprintf("Space(regions=%d, majority=%d, minority=%d, unoccupied=%d)",
		s.Len(), c.Majority, c.Minority, c.Unoccupied)
}

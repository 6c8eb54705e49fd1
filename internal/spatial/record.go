// Package spatial derives the queen-contiguity graph of a set of region
// polygons and reduces it to its largest connected component.
package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Record is one input polygon with its stable identifier.
type Record struct {
	ID       string
	Geometry orb.MultiPolygon
}

// Bound returns the bounding box of the record geometry.
func (r Record) Bound() orb.Bound {
	return r.Geometry.Bound()
}

// NewRecord normalises a Polygon or MultiPolygon into a Record.
// Any other geometry type is rejected with a GeometryError.
func NewRecord(id string, g orb.Geometry) (Record, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return Record{ID: id, Geometry: orb.MultiPolygon{geom}}, nil
	case orb.MultiPolygon:
		return Record{ID: id, Geometry: geom}, nil
	case nil:
		return Record{}, &GeometryError{ID: id, Reason: "missing geometry"}
	default:
		return Record{}, &GeometryError{ID: id, Reason: fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType())}
	}
}

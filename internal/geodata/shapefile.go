package geodata

import (
	"fmt"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/talgya/geo-schelling/internal/spatial"
)

// LoadShapefile reads polygon shapes from an ESRI shapefile. The region ID
// comes from the idField attribute when set, else from the shape index.
func LoadShapefile(path, idField string) ([]spatial.Record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	col := -1
	if idField != "" {
		for k, f := range reader.Fields() {
			if strings.EqualFold(f.String(), idField) {
				col = k
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("%s: no attribute named %q", filepath.Base(path), idField)
		}
	}

	var records []spatial.Record
	for reader.Next() {
		n, shape := reader.Shape()

		id := fmt.Sprintf("%d", n)
		if col >= 0 {
			id = strings.TrimSpace(reader.ReadAttribute(n, col))
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, &spatial.GeometryError{ID: id, Reason: fmt.Sprintf("unsupported shape type %T", shape)}
		}
		records = append(records, spatial.Record{ID: id, Geometry: polygonToOrb(poly)})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return records, nil
}

// polygonToOrb splits shapefile parts into polygons. Shapefiles store outer
// rings clockwise and holes counter-clockwise; the result uses the GeoJSON
// convention (outer counter-clockwise).
func polygonToOrb(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		if start < 0 || start >= end || end > len(p.Points) {
			// Keep the broken part so validation reports it.
			mp = append(mp, orb.Polygon{orb.Ring{}})
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			ring.Reverse()
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		if ring.Orientation() == orb.CW {
			ring.Reverse()
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}

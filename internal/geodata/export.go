package geodata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/talgya/geo-schelling/internal/world"
)

// Supported coordinate reference systems for input geometry.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// NormalizeCRS upper-cases and validates a CRS name. An empty name means WGS84.
func NormalizeCRS(crs string) (string, error) {
	switch c := strings.ToUpper(strings.TrimSpace(crs)); c {
	case "", CRSWGS84, "WGS84":
		return CRSWGS84, nil
	case CRSWebMercator, "EPSG:900913":
		return CRSWebMercator, nil
	default:
		return "", fmt.Errorf("unsupported crs %q (supported: %s, %s)", crs, CRSWGS84, CRSWebMercator)
	}
}

// ToWGS84 returns a copy of g reprojected from crs to longitude/latitude.
// The input geometry is never modified.
func ToWGS84(g orb.Geometry, crs string) (orb.Geometry, error) {
	c, err := NormalizeCRS(crs)
	if err != nil {
		return nil, err
	}
	clone := orb.Clone(g)
	if c == CRSWebMercator {
		return project.Geometry(clone, project.Mercator.ToWGS84), nil
	}
	return clone, nil
}

// GeoJSONExporter writes every region's id, final type and WGS84 geometry.
type GeoJSONExporter struct {
	Path      string
	SourceCRS string
}

// Export implements engine.Exporter.
func (e *GeoJSONExporter) Export(ctx context.Context, space *world.Space) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range space.Regions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := ToWGS84(r.Geometry, e.SourceCRS)
		if err != nil {
			return err
		}
		f := geojson.NewFeature(g)
		f.ID = r.ID
		f.Properties["id"] = r.ID
		f.Properties["type"] = r.Type.String()
		fc.Append(f)
	}

	if err := writeCollection(e.Path, fc); err != nil {
		return err
	}
	slog.Info("final state exported", "format", "geojson", "path", e.Path, "regions", space.Len())
	return nil
}

// Package geodata loads region polygons from geographic files and writes the
// final simulation state back out as GeoJSON.
package geodata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/talgya/geo-schelling/internal/spatial"
)

// LoadGeoJSON reads a FeatureCollection file. See ReadGeoJSON.
func LoadGeoJSON(path, idField string) ([]spatial.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geojson: %w", err)
	}
	defer f.Close()

	records, err := ReadGeoJSON(f, idField)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// ReadGeoJSON decodes a FeatureCollection into records, keeping feature
// order. The region ID is taken from the idField property when set, else
// from the feature id, else from the feature index. Features that are not
// polygons are rejected rather than skipped.
func ReadGeoJSON(r io.Reader, idField string) ([]spatial.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}

	records := make([]spatial.Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, err := featureID(f, idField, i)
		if err != nil {
			return nil, err
		}
		rec, err := spatial.NewRecord(id, f.Geometry)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func featureID(f *geojson.Feature, idField string, i int) (string, error) {
	if idField != "" {
		v, ok := f.Properties[idField]
		if !ok || v == nil {
			return "", &spatial.GeometryError{Reason: fmt.Sprintf("feature %d has no %q property", i, idField)}
		}
		return strings.TrimSpace(fmt.Sprint(v)), nil
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID), nil
	}
	return fmt.Sprintf("%d", i), nil
}

// WriteRecords writes records as a FeatureCollection with an "id" property,
// as used for generated maps.
func WriteRecords(path string, records []spatial.Record) error {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		f := geojson.NewFeature(rec.Geometry)
		f.ID = rec.ID
		f.Properties["id"] = rec.ID
		fc.Append(f)
	}
	return writeCollection(path, fc)
}

func writeCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

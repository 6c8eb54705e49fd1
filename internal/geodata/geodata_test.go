package geodata_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/geo-schelling/internal/geodata"
	"github.com/talgya/geo-schelling/internal/spatial"
	"github.com/talgya/geo-schelling/internal/world"
)

const twoRegions = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "f1", "properties": {"NUTS_ID": "DE1"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"NUTS_ID": "DE2"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[1,0],[2,0],[2,1],[1,1],[1,0]]]]}}
  ]
}`

func TestReadGeoJSON_IDField(t *testing.T) {
	records, err := geodata.ReadGeoJSON(strings.NewReader(twoRegions), "NUTS_ID")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DE1", records[0].ID)
	assert.Equal(t, "DE2", records[1].ID)
	assert.Len(t, records[1].Geometry, 1)

	g, err := spatial.BuildGraph(records)
	require.NoError(t, err)
	assert.True(t, g.HasEdge("DE1", "DE2"))
}

func TestReadGeoJSON_IDFallbacks(t *testing.T) {
	records, err := geodata.ReadGeoJSON(strings.NewReader(twoRegions), "")
	require.NoError(t, err)
	assert.Equal(t, "f1", records[0].ID)
	assert.Equal(t, "1", records[1].ID)
}

func TestReadGeoJSON_MissingIDProperty(t *testing.T) {
	_, err := geodata.ReadGeoJSON(strings.NewReader(twoRegions), "NAME")
	var gerr *spatial.GeometryError
	assert.True(t, errors.As(err, &gerr))
}

func TestReadGeoJSON_RejectsNonPolygon(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"p","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}]}`
	_, err := geodata.ReadGeoJSON(strings.NewReader(doc), "")
	var gerr *spatial.GeometryError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "p", gerr.ID)
}

func TestReadGeoJSON_Malformed(t *testing.T) {
	_, err := geodata.ReadGeoJSON(strings.NewReader("{not json"), "")
	assert.Error(t, err)
}

func TestToWGS84(t *testing.T) {
	g, err := geodata.ToWGS84(orb.Point{20037508.342789244, 0}, geodata.CRSWebMercator)
	require.NoError(t, err)
	p := g.(orb.Point)
	assert.InDelta(t, 180, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)

	src := orb.Point{5, 6}
	g, err = geodata.ToWGS84(src, "epsg:4326")
	require.NoError(t, err)
	assert.Equal(t, src, g)

	_, err = geodata.ToWGS84(src, "EPSG:27700")
	assert.Error(t, err)
}

func TestToWGS84_DoesNotMutateInput(t *testing.T) {
	ring := orb.Ring{{1e6, 1e6}, {2e6, 1e6}, {2e6, 2e6}, {1e6, 1e6}}
	poly := orb.Polygon{ring}
	_, err := geodata.ToWGS84(poly, geodata.CRSWebMercator)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1e6, 1e6}, poly[0][0])
}

func TestGeoJSONExporter(t *testing.T) {
	records, err := geodata.ReadGeoJSON(strings.NewReader(twoRegions), "NUTS_ID")
	require.NoError(t, err)
	g, err := spatial.BuildGraph(records)
	require.NoError(t, err)
	space, err := world.NewSpace(records, g)
	require.NoError(t, err)
	r, _ := space.Region("DE2")
	r.Type = world.Minority

	path := filepath.Join(t.TempDir(), "out", "agents.geojson")
	exp := &geodata.GeoJSONExporter{Path: path}
	require.NoError(t, exp.Export(context.Background(), space))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "DE1", fc.Features[0].Properties["id"])
	assert.Equal(t, "unoccupied", fc.Features[0].Properties["type"])
	assert.Equal(t, "minority", fc.Features[1].Properties["type"])
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	m := world.Generate(world.SmallTestConfig())
	records := m.Records(1)
	path := filepath.Join(t.TempDir(), "map.geojson")
	require.NoError(t, geodata.WriteRecords(path, records))

	back, err := geodata.LoadGeoJSON(path, "id")
	require.NoError(t, err)
	require.Len(t, back, len(records))
	for i := range records {
		assert.Equal(t, records[i].ID, back[i].ID)
	}
}

func TestLoadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("CODE", 10)}))

	// Outer rings clockwise, as shapefiles store them.
	squares := [][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}},
		{{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 0}, {X: 1, Y: 0}},
	}
	for i, pts := range squares {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{pts}))
		n := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(n), 0, []string{"AA", "BB"}[i]))
	}
	w.Close()

	records, err := geodata.LoadShapefile(path, "CODE")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AA", records[0].ID)
	assert.Equal(t, orb.CCW, records[0].Geometry[0][0].Orientation())

	g, err := spatial.BuildGraph(records)
	require.NoError(t, err)
	assert.True(t, g.HasEdge("AA", "BB"))

	_, err = geodata.LoadShapefile(path, "MISSING")
	assert.Error(t, err)
}

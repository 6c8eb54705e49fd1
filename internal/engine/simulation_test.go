package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/geo-schelling/internal/engine"
	"github.com/talgya/geo-schelling/internal/spatial"
	"github.com/talgya/geo-schelling/internal/world"
)

// box returns a unit square far enough from the others that only the
// explicit graph decides adjacency.
func box(id string, i int) spatial.Record {
	x := float64(i * 10)
	ring := orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}
	return spatial.Record{ID: id, Geometry: orb.MultiPolygon{{ring}}}
}

// spaceFromEdges builds a Space over ids with the given undirected edges.
func spaceFromEdges(t *testing.T, ids []string, edges [][2]string) *world.Space {
	t.Helper()
	g := spatial.NewGraph()
	var records []spatial.Record
	for i, id := range ids {
		g.AddNode(id)
		records = append(records, box(id, i))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	s, err := world.NewSpace(records, g)
	require.NoError(t, err)
	return s
}

func setTypes(t *testing.T, s *world.Space, types map[string]world.RegionType) {
	t.Helper()
	for id, typ := range types {
		r, ok := s.Region(id)
		require.True(t, ok, id)
		r.Type = typ
	}
}

func typeOf(t *testing.T, s *world.Space, id string) world.RegionType {
	t.Helper()
	r, ok := s.Region(id)
	require.True(t, ok, id)
	return r.Type
}

func hexSpace(t *testing.T, radius int) *world.Space {
	t.Helper()
	m := world.Generate(world.GenConfig{Radius: radius, Seed: 9, SeaLevel: 0})
	records := m.Records(1)
	g, err := spatial.BuildGraph(records)
	require.NoError(t, err)
	s, err := world.NewSpace(records, g)
	require.NoError(t, err)
	return s
}

type countingExporter struct {
	calls int
	seen  *world.Space
	err   error
}

func (c *countingExporter) Export(_ context.Context, s *world.Space) error {
	c.calls++
	c.seen = s
	return c.err
}

func TestStep_FourCycleScenario(t *testing.T) {
	s := spaceFromEdges(t, []string{"A", "B", "C", "D"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "A"}})

	// Every processing order gives the same outcome here, so try several seeds.
	for seed := int64(1); seed <= 5; seed++ {
		setTypes(t, s, map[string]world.RegionType{
			"A": world.Majority, "B": world.Minority, "C": world.Unoccupied, "D": world.Majority,
		})
		sim, err := engine.NewSimulation(s, engine.Config{Seed: seed, Density: 0.5}, nil)
		require.NoError(t, err)

		rec, err := sim.Step(context.Background())
		require.NoError(t, err)

		assert.Equal(t, world.Unoccupied, typeOf(t, s, "B"))
		assert.Equal(t, world.Minority, typeOf(t, s, "C"))
		assert.Equal(t, world.Majority, typeOf(t, s, "A"))
		assert.Equal(t, world.Majority, typeOf(t, s, "D"))
		assert.Equal(t, 2, rec.Happy)
		assert.Equal(t, 3, rec.Occupied)
		assert.Equal(t, 1, rec.Moves)
		assert.True(t, sim.Running())
	}
}

func TestStep_VacatedRegionReusedWithinStep(t *testing.T) {
	// m1 and m2 are minority regions each wedged between happy majority
	// triangles; v is the only vacancy and touches nothing.
	ids := []string{"m1", "a1", "a2", "a3", "m2", "b1", "b2", "b3", "v"}
	edges := [][2]string{
		{"m1", "a1"}, {"m1", "a2"}, {"a1", "a2"}, {"a1", "a3"}, {"a2", "a3"},
		{"m2", "b1"}, {"m2", "b2"}, {"b1", "b2"}, {"b1", "b3"}, {"b2", "b3"},
	}
	s := spaceFromEdges(t, ids, edges)

	for seed := int64(1); seed <= 8; seed++ {
		types := map[string]world.RegionType{"m1": world.Minority, "m2": world.Minority, "v": world.Unoccupied}
		for _, id := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
			types[id] = world.Majority
		}
		setTypes(t, s, types)

		sim, err := engine.NewSimulation(s, engine.Config{Seed: seed, Density: 0.5}, nil)
		require.NoError(t, err)
		rec, err := sim.Step(context.Background())
		require.NoError(t, err)

		// The first mover takes v; the second can only take the slot the
		// first just left. A third move would mean that slot was revisited.
		assert.Equal(t, world.Minority, typeOf(t, s, "v"), "seed %d", seed)
		first, second := typeOf(t, s, "m1"), typeOf(t, s, "m2")
		assert.ElementsMatch(t, []world.RegionType{world.Minority, world.Unoccupied}, []world.RegionType{first, second}, "seed %d", seed)

		assert.Equal(t, 2, rec.Moves)
		assert.Equal(t, 8, rec.Occupied)
		assert.Equal(t, 6, rec.Happy)
		assert.Equal(t, rec.Occupied, rec.Happy+rec.Moves)
		assert.Equal(t, world.TypeCounts{Unoccupied: 1, Majority: 6, Minority: 2}, s.Counts())
		assert.True(t, sim.Running())
	}
}

func TestStep_SingleOccupiedConvergesImmediately(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	setTypes(t, s, map[string]world.RegionType{"b": world.Minority})

	sim, err := engine.NewSimulation(s, engine.Config{Seed: 1}, nil)
	require.NoError(t, err)
	rec, err := sim.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Happy)
	assert.Equal(t, 1, rec.Occupied)
	assert.False(t, sim.Running())
	assert.False(t, rec.Running)
}

func TestStep_ZeroDensityConvergesVacuously(t *testing.T) {
	s := hexSpace(t, 2)
	sim, err := engine.NewSimulation(s, engine.Config{Density: 0, MinorityFraction: 0.5, Seed: 3}, nil)
	require.NoError(t, err)
	sim.Populate()
	assert.Equal(t, 0, s.Counts().Occupied())

	rec, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Happy)
	assert.Equal(t, 0, rec.Occupied)
	assert.False(t, sim.Running())
}

func TestStep_IsolatedRegionNeverMoves(t *testing.T) {
	s := spaceFromEdges(t, []string{"x", "a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}})
	setTypes(t, s, map[string]world.RegionType{
		"x": world.Minority, "a": world.Majority, "b": world.Minority,
	})

	sim, err := engine.NewSimulation(s, engine.Config{Seed: 11}, nil)
	require.NoError(t, err)
	for i := 0; i < 20 && sim.Running(); i++ {
		_, err := sim.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, world.Minority, typeOf(t, s, "x"))
	}
}

func TestStep_NoVacancy(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	setTypes(t, s, map[string]world.RegionType{
		"a": world.Majority, "b": world.Minority, "c": world.Majority,
	})

	sim, err := engine.NewSimulation(s, engine.Config{Seed: 5, Density: 1}, nil)
	require.NoError(t, err)
	_, err = sim.Step(context.Background())

	var nv *engine.NoVacancyError
	require.True(t, errors.As(err, &nv), "got %v", err)
	assert.Contains(t, []string{"a", "b", "c"}, nv.RegionID)
	assert.Equal(t, 3, nv.Occupied)
	assert.Equal(t, 1, nv.Step)
}

func TestStep_ConservesOccupancy(t *testing.T) {
	s := hexSpace(t, 6)
	sim, err := engine.NewSimulation(s, engine.Config{Density: 0.6, MinorityFraction: 0.3, Seed: 21}, nil)
	require.NoError(t, err)
	sim.Populate()
	start := s.Counts()

	for i := 0; i < 50 && sim.Running(); i++ {
		_, err := sim.Step(context.Background())
		require.NoError(t, err)
		c := s.Counts()
		assert.Equal(t, start.Majority, c.Majority)
		assert.Equal(t, start.Minority, c.Minority)
		assert.Equal(t, start.Unoccupied, c.Unoccupied)
	}
}

func TestStep_Reproducible(t *testing.T) {
	run := func() ([]engine.StepRecord, map[string]world.RegionType) {
		s := hexSpace(t, 5)
		sim, err := engine.NewSimulation(s, engine.Config{Density: 0.7, MinorityFraction: 0.4, Seed: 99}, nil)
		require.NoError(t, err)
		sim.Populate()
		for i := 0; i < 100 && sim.Running(); i++ {
			_, err := sim.Step(context.Background())
			require.NoError(t, err)
		}
		final := make(map[string]world.RegionType)
		for _, r := range s.Regions() {
			final[r.ID] = r.Type
		}
		return sim.History(), final
	}

	h1, f1 := run()
	h2, f2 := run()
	assert.Equal(t, h1, h2)
	assert.Equal(t, f1, f2)
}

func TestStep_ConvergenceMeansAllHappy(t *testing.T) {
	s := hexSpace(t, 5)
	sim, err := engine.NewSimulation(s, engine.Config{Density: 0.5, MinorityFraction: 0.3, Seed: 4}, nil)
	require.NoError(t, err)
	sim.Populate()
	for i := 0; i < 500 && sim.Running(); i++ {
		_, err := sim.Step(context.Background())
		require.NoError(t, err)
	}

	for _, rec := range sim.History() {
		if rec.Running {
			assert.Less(t, rec.Happy, rec.Occupied)
			assert.Positive(t, rec.Moves)
		} else {
			assert.Equal(t, rec.Occupied, rec.Happy)
			assert.Zero(t, rec.Moves)
		}
	}
}

func TestStep_RunningLatches(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	setTypes(t, s, map[string]world.RegionType{"a": world.Majority})

	sim, err := engine.NewSimulation(s, engine.Config{Seed: 1}, nil)
	require.NoError(t, err)
	_, err = sim.Step(context.Background())
	require.NoError(t, err)
	require.False(t, sim.Running())

	// Even if state changes afterwards, the flag never resets.
	setTypes(t, s, map[string]world.RegionType{"a": world.Majority, "b": world.Minority})
	_, err = sim.Step(context.Background())
	require.Error(t, err)
	assert.False(t, sim.Running())
}

func TestStep_ExportsExactlyOnce(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	setTypes(t, s, map[string]world.RegionType{"a": world.Majority})

	exp := &countingExporter{}
	sim, err := engine.NewSimulation(s, engine.Config{Seed: 1, ExportOnConvergence: true}, exp)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := sim.Step(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, exp.calls)
	assert.Same(t, s, exp.seen)
	assert.True(t, sim.Exported())
}

func TestStep_ExportDisabled(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	exp := &countingExporter{}
	sim, err := engine.NewSimulation(s, engine.Config{Seed: 1}, exp)
	require.NoError(t, err)

	_, err = sim.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, sim.Running())
	assert.Zero(t, exp.calls)
}

func TestStep_ExportErrorSurfaces(t *testing.T) {
	s := spaceFromEdges(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	boom := errors.New("disk full")
	sim, err := engine.NewSimulation(s, engine.Config{Seed: 1, ExportOnConvergence: true},
		engine.MultiExporter{&countingExporter{}, &countingExporter{err: boom}})
	require.NoError(t, err)

	_, err = sim.Step(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPopulate_Reproducible(t *testing.T) {
	assign := func(seed int64) []world.RegionType {
		s := hexSpace(t, 4)
		sim, err := engine.NewSimulation(s, engine.Config{Density: 0.6, MinorityFraction: 0.2, Seed: seed}, nil)
		require.NoError(t, err)
		sim.Populate()
		var out []world.RegionType
		for _, r := range s.Regions() {
			out = append(out, r.Type)
		}
		return out
	}
	assert.Equal(t, assign(7), assign(7))
	assert.NotEqual(t, assign(7), assign(8))
}

func TestPopulate_Extremes(t *testing.T) {
	s := hexSpace(t, 3)
	sim, err := engine.NewSimulation(s, engine.Config{Density: 1, MinorityFraction: 0, Seed: 2}, nil)
	require.NoError(t, err)
	sim.Populate()
	assert.Equal(t, world.TypeCounts{Majority: s.Len()}, s.Counts())

	sim, err = engine.NewSimulation(s, engine.Config{Density: 1, MinorityFraction: 1, Seed: 2}, nil)
	require.NoError(t, err)
	sim.Populate()
	assert.Equal(t, world.TypeCounts{Minority: s.Len()}, s.Counts())
}

func TestNewSimulation_Validation(t *testing.T) {
	s := hexSpace(t, 1)
	_, err := engine.NewSimulation(s, engine.Config{Density: 1.5}, nil)
	assert.Error(t, err)
	_, err = engine.NewSimulation(s, engine.Config{MinorityFraction: -0.1}, nil)
	assert.Error(t, err)
	_, err = engine.NewSimulation(nil, engine.Config{}, nil)
	var empty *spatial.EmptyInputError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "space", empty.Stage)

	sim, err := engine.NewSimulation(s, engine.Config{}, nil)
	require.NoError(t, err)
	assert.NotZero(t, sim.Seed())
}

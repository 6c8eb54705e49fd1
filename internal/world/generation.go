// Synthetic map generation using layered simplex noise.
// Land cells become regions; the sea splits them into islands of varying size.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/geo-schelling/internal/entropy"
)

// GenConfig holds synthetic map parameters.
type GenConfig struct {
	Radius   int     // Hex grid radius
	Seed     int64   // Noise seed (0 = draw one; Map.Seed reports it)
	SeaLevel float64 // Elevation threshold below which a hex is sea (0.0–1.0)
}

// DefaultGenConfig returns the default island. The seed is fixed so that the
// default input is the same map on every run.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:   12,
		Seed:     1,
		SeaLevel: 0.35,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:   4,
		Seed:     42,
		SeaLevel: 0.30,
	}
}

// Generate creates a hex map whose land mask comes from fractal noise with
// an edge falloff, so the coast is ragged and small islands break off.
// A SeaLevel of 0 or less makes every hex land.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.Seed()
	}
	elevNoise := opensimplex.NewNormalized(seed)

	m := NewMap(cfg.Radius)
	m.Seed = seed
	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Hex axial → cartesian for noise sampling.
			p := coord.Center(1)
			elev := octaveNoise(elevNoise, p[0], p[1], 4, 0.12, 0.5)

			// Continental shaping: lower elevation towards the rim.
			dist := float64(Distance(coord, HexCoord{})) / float64(max(cfg.Radius, 1))
			falloff := 1.0 - math.Pow(dist, 3)
			if falloff < 0 {
				falloff = 0
			}
			elev *= falloff

			m.Set(&Hex{
				Coord:     coord,
				Elevation: elev,
				Land:      cfg.SeaLevel <= 0 || elev >= cfg.SeaLevel,
			})
		}
	}
	return m
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

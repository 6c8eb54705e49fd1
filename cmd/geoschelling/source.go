package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/geo-schelling/internal/config"
	"github.com/talgya/geo-schelling/internal/entropy"
	"github.com/talgya/geo-schelling/internal/geodata"
	"github.com/talgya/geo-schelling/internal/spatial"
	"github.com/talgya/geo-schelling/internal/world"
)

// loadRecords reads region geometry from the configured source.
func loadRecords(cfg *config.Config) ([]spatial.Record, error) {
	switch cfg.Input.Format {
	case config.FormatGeoJSON:
		return geodata.LoadGeoJSON(cfg.Input.Path, cfg.Input.IDField)
	case config.FormatShapefile:
		return geodata.LoadShapefile(cfg.Input.Path, cfg.Input.IDField)
	case config.FormatSynthetic:
		// Resolve a random seed up front so the run log can rebuild the map.
		if cfg.Synthetic.Seed == 0 {
			cfg.Synthetic.Seed = entropy.Seed()
		}
		m := world.Generate(world.GenConfig{
			Radius:   cfg.Synthetic.Radius,
			Seed:     cfg.Synthetic.Seed,
			SeaLevel: cfg.Synthetic.SeaLevel,
		})
		slog.Info("hex map generated", "seed", m.Seed, "hexes", m.HexCount(), "land", m.LandCount())
		return m.Records(cfg.Synthetic.HexSize), nil
	}
	return nil, fmt.Errorf("invalid input format: %s", cfg.Input.Format)
}

// buildSpace turns raw records into the simulation space: contiguity graph,
// then the largest connected component.
func buildSpace(cfg *config.Config, records []spatial.Record) (*world.Space, error) {
	g, err := spatial.BuildGraph(records, spatial.WithTolerance(cfg.Input.Tolerance))
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	slog.Info("contiguity graph built",
		"regions", humanize.Comma(int64(g.Len())),
		"edges", humanize.Comma(int64(g.EdgeCount())),
	)

	kept, sub, err := spatial.Reduce(records, g)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	return world.NewSpace(kept, sub)
}

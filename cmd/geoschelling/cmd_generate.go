package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/geo-schelling/internal/geodata"
	"github.com/talgya/geo-schelling/internal/world"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <out.geojson>",
		Short: "Write a synthetic hex map as GeoJSON",
		Long: `Generate builds a noise-shaped island of hexagonal regions and writes
it as a GeoJSON feature collection with an "id" property per region. The
output can be fed back to "run" with --id-field id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("radius") {
				cfg.Synthetic.Radius, _ = f.GetInt("radius")
			}
			if f.Changed("hex-size") {
				cfg.Synthetic.HexSize, _ = f.GetFloat64("hex-size")
			}
			if f.Changed("sea-level") {
				cfg.Synthetic.SeaLevel, _ = f.GetFloat64("sea-level")
			}
			if f.Changed("seed") {
				cfg.Synthetic.Seed, _ = f.GetInt64("seed")
			}
			if cfg.Synthetic.Radius < 1 || cfg.Synthetic.HexSize <= 0 {
				return fmt.Errorf("radius must be at least 1 and hex size positive")
			}

			m := world.Generate(world.GenConfig{
				Radius:   cfg.Synthetic.Radius,
				Seed:     cfg.Synthetic.Seed,
				SeaLevel: cfg.Synthetic.SeaLevel,
			})
			records := m.Records(cfg.Synthetic.HexSize)
			if err := geodata.WriteRecords(args[0], records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s land regions of %s hexes to %s\n",
				humanize.Comma(int64(len(records))), humanize.Comma(int64(m.HexCount())), args[0])
			return nil
		},
	}

	cmd.Flags().Int("radius", 0, "Map radius in hexes")
	cmd.Flags().Float64("hex-size", 0, "Hex circumradius in map units")
	cmd.Flags().Float64("sea-level", 0, "Elevation below which hexes are sea (0 = all land)")
	cmd.Flags().Int64("seed", 0, "Terrain noise seed")
	return cmd
}

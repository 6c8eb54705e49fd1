package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/geo-schelling/internal/api"
	"github.com/talgya/geo-schelling/internal/config"
	"github.com/talgya/geo-schelling/internal/engine"
	"github.com/talgya/geo-schelling/internal/geodata"
	"github.com/talgya/geo-schelling/internal/persistence"
	"github.com/talgya/geo-schelling/internal/render"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run the simulation until it converges",
		Long: `Run loads regions, builds the contiguity graph, keeps the largest
connected component, populates it and steps the Schelling rule until every
occupied region is happy, the step limit is hit, or the process is
interrupted. Final state is exported once on convergence.

An input path overrides input.path; its format is taken from --format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := run(ctx, cfg)
			if err != nil {
				return err
			}
			status := "stopped"
			if res.Converged {
				status = "converged"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s after %s steps, %s happy\n",
				status, humanize.Comma(int64(res.Steps)), humanize.Comma(int64(res.Happy)))
			return nil
		},
	}

	cmd.Flags().Float64("density", 0, "Probability a region starts occupied")
	cmd.Flags().Float64("minority", 0, "Probability an occupied region starts as minority")
	cmd.Flags().Int64("seed", 0, "Random seed (0 = random)")
	cmd.Flags().Int("max-steps", 0, "Stop after this many steps (0 = no limit)")
	cmd.Flags().Duration("interval", 0, "Minimum wall time per step")
	cmd.Flags().String("format", "", "Input format: geojson, shapefile, synthetic")
	cmd.Flags().String("id-field", "", "Attribute holding region ids")
	cmd.Flags().String("crs", "", "Input CRS: EPSG:4326 or EPSG:3857")
	cmd.Flags().String("geojson", "", "Write final state as GeoJSON to this path")
	cmd.Flags().String("png", "", "Render final state as PNG to this path")
	cmd.Flags().String("db", "", "Record the run in this SQLite database")
	cmd.Flags().Int("port", 0, "Serve the status API on this port (0 = off)")
	cmd.Flags().Bool("no-export", false, "Skip exporting the final state")
	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("density", func() (e error) { cfg.Simulation.Density, e = f.GetFloat64("density"); return })
	set("minority", func() (e error) { cfg.Simulation.MinorityFraction, e = f.GetFloat64("minority"); return })
	set("seed", func() (e error) { cfg.Simulation.Seed, e = f.GetInt64("seed"); return })
	set("max-steps", func() (e error) { cfg.Simulation.MaxSteps, e = f.GetInt("max-steps"); return })
	set("interval", func() (e error) { cfg.Simulation.Interval, e = f.GetDuration("interval"); return })
	set("format", func() (e error) { cfg.Input.Format, e = f.GetString("format"); return })
	set("id-field", func() (e error) { cfg.Input.IDField, e = f.GetString("id-field"); return })
	set("crs", func() (e error) { cfg.Input.CRS, e = f.GetString("crs"); return })
	set("geojson", func() (e error) { cfg.Output.GeoJSON, e = f.GetString("geojson"); return })
	set("png", func() (e error) { cfg.Output.PNG, e = f.GetString("png"); return })
	set("db", func() (e error) { cfg.Output.DB, e = f.GetString("db"); return })
	set("port", func() (e error) { cfg.API.Port, e = f.GetInt("port"); return })
	set("no-export", func() error {
		skip, e := f.GetBool("no-export")
		cfg.Simulation.ExportOnConvergence = !skip
		return e
	})
	if err != nil {
		return err
	}

	if len(args) == 1 {
		cfg.Input.Path = args[0]
		if !f.Changed("format") {
			cfg.Input.Format = config.FormatGeoJSON
		}
	}
	return nil
}

// run wires the loaded space, exporters, run log and API around one engine run.
func run(ctx context.Context, cfg *config.Config) (engine.Result, error) {
	if _, err := geodata.NormalizeCRS(cfg.Input.CRS); err != nil {
		return engine.Result{}, err
	}
	records, err := loadRecords(cfg)
	if err != nil {
		return engine.Result{}, err
	}
	space, err := buildSpace(cfg, records)
	if err != nil {
		return engine.Result{}, err
	}

	sim, err := engine.NewSimulation(space, engine.Config{
		Density:             cfg.Simulation.Density,
		MinorityFraction:    cfg.Simulation.MinorityFraction,
		Seed:                cfg.Simulation.Seed,
		ExportOnConvergence: cfg.Simulation.ExportOnConvergence,
	}, nil)
	if err != nil {
		return engine.Result{}, err
	}
	sim.Populate()

	eng := engine.NewEngine(sim)
	eng.MaxSteps = cfg.Simulation.MaxSteps
	eng.Interval = cfg.Simulation.Interval

	var exporters engine.MultiExporter
	if cfg.Output.GeoJSON != "" {
		exporters = append(exporters, &geodata.GeoJSONExporter{Path: cfg.Output.GeoJSON, SourceCRS: cfg.Input.CRS})
	}
	if cfg.Output.PNG != "" {
		exporters = append(exporters, &render.PNGExporter{
			Path:    cfg.Output.PNG,
			Size:    cfg.Output.PNGSize,
			Palette: render.DefaultPalette(),
		})
	}

	var db *persistence.DB
	var runLog *persistence.RunLog
	if cfg.Output.DB != "" {
		db, err = persistence.Open(cfg.Output.DB)
		if err != nil {
			return engine.Result{}, err
		}
		defer db.Close()
		if runLog, err = db.StartRun(sim); err != nil {
			return engine.Result{}, err
		}
		if err := db.SaveMeta("last_input", describeInput(cfg)); err != nil {
			slog.Warn("save meta failed", "error", err)
		}
		exporters = append(exporters, runLog)
		eng.OnStep(runLog.RecordStep)
	}
	if len(exporters) > 0 {
		sim.Exporter = exporters
	}

	if cfg.API.Port > 0 {
		srv := api.NewServer(sim, cfg.API.Port)
		srv.DB = db
		eng.OnStep(srv.Observe(sim))
		srv.Start(ctx)
	}

	res, err := eng.Run(ctx)
	if runLog != nil {
		if ferr := runLog.Finish(res); ferr != nil {
			slog.Warn("finish run log failed", "run_id", runLog.ID, "error", ferr)
		}
	}
	if errors.Is(err, context.Canceled) {
		slog.Info("run interrupted", "step", res.Steps)
		return res, nil
	}
	return res, err
}

func describeInput(cfg *config.Config) string {
	if cfg.Input.Format == config.FormatSynthetic {
		return fmt.Sprintf("synthetic radius=%d seed=%d", cfg.Synthetic.Radius, cfg.Synthetic.Seed)
	}
	return fmt.Sprintf("%s %s", cfg.Input.Format, cfg.Input.Path)
}

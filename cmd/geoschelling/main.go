// Command geoschelling runs the Schelling segregation model over a map of
// contiguous regions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/geo-schelling/internal/config"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geoschelling",
		Short: "Schelling segregation on geographic regions",
		Long: `geoschelling builds a queen-contiguity graph from polygon regions,
keeps the largest connected component, and runs the Schelling relocation
rule on it until every agent is happy.

Regions come from GeoJSON, an ESRI shapefile, or a generated hex map.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(),
		newGenerateCmd(),
		newInspectCmd(),
	)
	return rootCmd
}

// loadConfig reads the --config file and environment, applies the
// --log-level flag, and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// Package config loads run settings from YAML files and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/geo-schelling/internal/world"
)

// Config contains every run setting.
type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Input      InputConfig      `json:"input" yaml:"input"`
	Synthetic  SyntheticConfig  `json:"synthetic" yaml:"synthetic"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	API        APIConfig        `json:"api" yaml:"api"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// SimulationConfig holds the model parameters and loop settings.
type SimulationConfig struct {
	Density          float64 `json:"density" yaml:"density"`
	MinorityFraction float64 `json:"minority_fraction" yaml:"minority_fraction"`

	// Seed for population and step shuffles. 0 picks a random seed, which is logged.
	Seed int64 `json:"seed" yaml:"seed"`

	// MaxSteps stops a run that has not converged. 0 means no limit.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// Interval is the minimum wall time per step, for watching a run live.
	Interval time.Duration `json:"interval" yaml:"interval"`

	ExportOnConvergence bool `json:"export_on_convergence" yaml:"export_on_convergence"`
}

// Input formats.
const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
	FormatSynthetic = "synthetic"
)

// InputConfig says where region geometry comes from.
type InputConfig struct {
	Path   string `json:"path" yaml:"path"`
	Format string `json:"format" yaml:"format"`

	// IDField names the attribute holding region ids. Empty falls back to
	// the feature id, then the feature index.
	IDField string `json:"id_field" yaml:"id_field"`

	// CRS of the input coordinates: EPSG:4326 or EPSG:3857.
	CRS string `json:"crs" yaml:"crs"`

	// Tolerance for boundary contact, in input units.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// SyntheticConfig shapes the generated hex map used when no input file is given.
type SyntheticConfig struct {
	Radius   int     `json:"radius" yaml:"radius"`
	HexSize  float64 `json:"hex_size" yaml:"hex_size"`
	SeaLevel float64 `json:"sea_level" yaml:"sea_level"`
	Seed     int64   `json:"seed" yaml:"seed"` // 0 draws a seed, which is logged
}

// OutputConfig lists the exporters to run at convergence. Empty paths disable them.
type OutputConfig struct {
	GeoJSON string `json:"geojson" yaml:"geojson"`
	PNG     string `json:"png" yaml:"png"`
	PNGSize int    `json:"png_size" yaml:"png_size"`
	DB      string `json:"db" yaml:"db"`
}

// APIConfig configures the status server. Port 0 disables it.
type APIConfig struct {
	Port int `json:"port" yaml:"port"`
}

// LoggingConfig sets log verbosity: debug, info, warn or error.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults. The synthetic map is
// world.DefaultGenConfig with unit hexes.
func Default() *Config {
	gen := world.DefaultGenConfig()
	return &Config{
		Simulation: SimulationConfig{
			Density:             0.8,
			MinorityFraction:    0.3,
			ExportOnConvergence: true,
		},
		Input: InputConfig{
			Format:    FormatSynthetic,
			CRS:       "EPSG:4326",
			Tolerance: 1e-9,
		},
		Synthetic: SyntheticConfig{
			Radius:   gen.Radius,
			HexSize:  1,
			SeaLevel: gen.SeaLevel,
			Seed:     gen.Seed,
		},
		Output: OutputConfig{
			PNGSize: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a config from defaults, then path if non-empty, then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields
// missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Input.Path = os.ExpandEnv(cfg.Input.Path)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Density < 0 || s.Density > 1 {
		return fmt.Errorf("density must be between 0 and 1, got %v", s.Density)
	}
	if s.MinorityFraction < 0 || s.MinorityFraction > 1 {
		return fmt.Errorf("minority_fraction must be between 0 and 1, got %v", s.MinorityFraction)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", s.MaxSteps)
	}
	if s.Interval < 0 {
		return fmt.Errorf("interval must be non-negative, got %v", s.Interval)
	}

	switch c.Input.Format {
	case FormatGeoJSON, FormatShapefile:
		if c.Input.Path == "" {
			return fmt.Errorf("input.path is required for format %s", c.Input.Format)
		}
	case FormatSynthetic:
		if c.Synthetic.Radius < 1 {
			return fmt.Errorf("synthetic.radius must be at least 1, got %d", c.Synthetic.Radius)
		}
		if c.Synthetic.HexSize <= 0 {
			return fmt.Errorf("synthetic.hex_size must be positive, got %v", c.Synthetic.HexSize)
		}
	default:
		return fmt.Errorf("invalid input format: %s (valid: geojson, shapefile, synthetic)", c.Input.Format)
	}
	if c.Input.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %v", c.Input.Tolerance)
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEOSCHELLING_DENSITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Density = f
		}
	}
	if v := os.Getenv("GEOSCHELLING_MINORITY_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.MinorityFraction = f
		}
	}
	if v := os.Getenv("GEOSCHELLING_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.Seed = n
		}
	}
	if v := os.Getenv("GEOSCHELLING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GEOSCHELLING_DB"); v != "" {
		cfg.Output.DB = v
	}
}

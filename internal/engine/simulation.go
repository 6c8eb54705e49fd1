// Simulation runs the Schelling relocation rule over a world.Space.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/geo-schelling/internal/entropy"
	"github.com/talgya/geo-schelling/internal/spatial"
	"github.com/talgya/geo-schelling/internal/world"
)

// Config holds the model parameters.
type Config struct {
	Density             float64 // Probability a region starts occupied
	MinorityFraction    float64 // Probability an occupied region starts as minority
	Seed                int64   // Random seed (0 = random)
	ExportOnConvergence bool    // Hand the final space to the exporter once converged
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.Density < 0 || c.Density > 1 {
		return fmt.Errorf("density must be between 0 and 1, got %v", c.Density)
	}
	if c.MinorityFraction < 0 || c.MinorityFraction > 1 {
		return fmt.Errorf("minority_fraction must be between 0 and 1, got %v", c.MinorityFraction)
	}
	return nil
}

// Exporter receives the final space once the simulation converges.
type Exporter interface {
	Export(ctx context.Context, space *world.Space) error
}

// MultiExporter fans the final space out to several exporters. Every
// exporter runs; their errors are joined.
type MultiExporter []Exporter

// Export implements Exporter.
func (m MultiExporter) Export(ctx context.Context, space *world.Space) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, space); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StepRecord is one entry of the per-step time series.
type StepRecord struct {
	Step     int  `json:"step"`
	Happy    int  `json:"happy"`
	Occupied int  `json:"occupied"`
	Moves    int  `json:"moves"`
	Running  bool `json:"running"`
}

// Simulation holds the model state. It is not safe for concurrent use; the
// goroutine that calls Step is the only writer of region types.
type Simulation struct {
	Space    *world.Space
	Exporter Exporter

	cfg  Config
	seed int64
	rng  *rand.Rand

	step     int
	happy    int
	running  bool
	exported bool
	history  []StepRecord
}

// NewSimulation creates a simulation over space. Regions keep whatever type
// they already have until Populate is called.
func NewSimulation(space *world.Space, cfg Config, exp Exporter) (*Simulation, error) {
	if space == nil || space.Len() == 0 {
		return nil, &spatial.EmptyInputError{Stage: "space"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.Seed()
	}
	return &Simulation{
		Space:    space,
		Exporter: exp,
		cfg:      cfg,
		seed:     seed,
		rng:      rand.New(rand.NewSource(seed)),
		running:  true,
	}, nil
}

// Populate assigns every region independently: occupied with probability
// Density, and then Minority with probability MinorityFraction.
func (s *Simulation) Populate() {
	for _, r := range s.Space.Regions() {
		r.Type = world.Unoccupied
		if s.rng.Float64() < s.cfg.Density {
			if s.rng.Float64() < s.cfg.MinorityFraction {
				r.Type = world.Minority
			} else {
				r.Type = world.Majority
			}
		}
	}

	c := s.Space.Counts()
	slog.Info("regions populated",
		"regions", s.Space.Len(),
		"majority", c.Majority,
		"minority", c.Minority,
		"unoccupied", c.Unoccupied,
		"seed", s.seed,
	)
}

// Step visits every region that is occupied at the start of the step once,
// in a freshly shuffled order. An unhappy region (fewer similar than
// different occupied neighbours) moves to a random region that is empty at
// that moment, which may be a region vacated earlier in the same step.
func (s *Simulation) Step(ctx context.Context) (StepRecord, error) {
	s.step++
	s.happy = 0

	order := s.Space.Occupied()
	s.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	moves := 0
	// r is still occupied: movers only land on regions empty at their turn.
	for _, r := range order {
		similar, different := s.tally(r)
		if similar >= different {
			s.happy++
			continue
		}

		empties := s.Space.Unoccupied()
		if len(empties) == 0 {
			return StepRecord{}, &NoVacancyError{RegionID: r.ID, Step: s.step, Occupied: len(order)}
		}
		dest := empties[s.rng.Intn(len(empties))]
		dest.Type = r.Type
		r.Type = world.Unoccupied
		moves++
	}

	// Moves relocate agents, so the occupied count is the same as at step start.
	if s.happy == len(order) {
		s.running = false
	}

	rec := StepRecord{
		Step:     s.step,
		Happy:    s.happy,
		Occupied: len(order),
		Moves:    moves,
		Running:  s.running,
	}
	s.history = append(s.history, rec)
	slog.Debug("step complete", "step", rec.Step, "happy", rec.Happy, "occupied", rec.Occupied, "moves", rec.Moves)

	if !s.running && s.cfg.ExportOnConvergence && !s.exported {
		s.exported = true
		if s.Exporter != nil {
			if err := s.Exporter.Export(ctx, s.Space); err != nil {
				return rec, fmt.Errorf("export at step %d: %w", s.step, err)
			}
		}
	}
	return rec, nil
}

// tally counts occupied neighbours of r by whether they share r's type.
func (s *Simulation) tally(r *world.Region) (similar, different int) {
	for _, n := range s.Space.Neighbors(r) {
		switch {
		case !n.Type.Occupied():
		case n.Type == r.Type:
			similar++
		default:
			different++
		}
	}
	return similar, different
}

// Running reports whether the simulation has yet to converge. Once false it
// stays false.
func (s *Simulation) Running() bool {
	return s.running
}

// Happy returns the happy count of the most recent step.
func (s *Simulation) Happy() int {
	return s.happy
}

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int {
	return s.step
}

// Seed returns the seed actually used, including a randomly chosen one.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// Config returns the model parameters.
func (s *Simulation) Config() Config {
	return s.cfg
}

// Exported reports whether the exporter has been invoked.
func (s *Simulation) Exported() bool {
	return s.exported
}

// History returns a copy of the per-step time series.
func (s *Simulation) History() []StepRecord {
	out := make([]StepRecord, len(s.history))
	copy(out, s.history)
	return out
}

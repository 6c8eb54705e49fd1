// Package engine provides the Schelling step rule and the loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StepHook observes each completed step. Returning an error stops the run.
type StepHook func(ctx context.Context, rec StepRecord) error

// Result summarises a finished run.
type Result struct {
	Steps     int  `json:"steps"`
	Converged bool `json:"converged"`
	Happy     int  `json:"happy"`
}

// Engine drives a Simulation forward one step at a time.
type Engine struct {
	Sim      *Simulation
	MaxSteps int           // 0 = run until convergence
	Interval time.Duration // Minimum wall time per step (0 = as fast as possible)

	// Hooks run in order after every step.
	Hooks []StepHook
}

// NewEngine creates an engine with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{Sim: sim}
}

// OnStep registers a hook.
func (e *Engine) OnStep(h StepHook) {
	e.Hooks = append(e.Hooks, h)
}

// Run steps the simulation until it converges, MaxSteps is reached, or ctx
// is cancelled. Cancellation is only observed between steps; a step that
// has started always completes.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	slog.Info("simulation engine started",
		"regions", e.Sim.Space.Len(),
		"max_steps", e.MaxSteps,
		"interval", e.Interval,
	)

	steps := 0
	for e.Sim.Running() {
		if e.MaxSteps > 0 && steps >= e.MaxSteps {
			slog.Warn("step limit reached before convergence", "steps", steps)
			break
		}
		if err := ctx.Err(); err != nil {
			return e.result(), err
		}

		start := time.Now()
		rec, err := e.Sim.Step(ctx)
		if err != nil {
			return e.result(), err
		}
		steps++

		for _, h := range e.Hooks {
			if err := h(ctx, rec); err != nil {
				return e.result(), fmt.Errorf("step hook at step %d: %w", rec.Step, err)
			}
		}

		// Sleep for the remainder of the interval.
		if elapsed := time.Since(start); e.Interval > elapsed && e.Sim.Running() {
			select {
			case <-ctx.Done():
				return e.result(), ctx.Err()
			case <-time.After(e.Interval - elapsed):
			}
		}
	}

	res := e.result()
	if res.Converged {
		slog.Info("simulation converged", "steps", res.Steps, "happy", res.Happy)
	}
	slog.Info("simulation engine stopped", "step", res.Steps)
	return res, nil
}

func (e *Engine) result() Result {
	return Result{
		Steps:     e.Sim.StepCount(),
		Converged: !e.Sim.Running(),
		Happy:     e.Sim.Happy(),
	}
}

// Package producer synthesizes telemetry against the platform: exposure evaluations,
// guarded-rollout event streams and fixed-size experiment batches.
//
// Every producer follows the same per-interaction shape: draw a synthetic context,
// evaluate one flag, pick a probability table from the variation and walk it through
// the funnel evaluator, emitting the reached metric events. A failure inside one
// interaction abandons that interaction only.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TimurManjosov/togglegen/internal/funnel"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/rs/zerolog"
)

// InteractionError marks a failure confined to one synthetic interaction: an
// evaluation or tracking call that failed. Producers log it and move on.
type InteractionError struct {
	Op         string // "evaluate", "classify" or "track"
	ContextKey string
	Err        error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Op, e.ContextKey, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// interactionErr wraps err unless it means the client is gone, which no later
// interaction can recover from.
func interactionErr(op string, c synth.Context, err error) error {
	if err == nil || errors.Is(err, platform.ErrClosed) {
		return err
	}
	return &InteractionError{Op: op, ContextKey: c.Key, Err: err}
}

// Deps are the collaborators every producer needs.
type Deps struct {
	Client  platform.Client
	Gen     *synth.Generator
	Log     zerolog.Logger
	Metrics *telemetry.Metrics
}

// ArmStats counts what one variation arm produced.
type ArmStats struct {
	Interactions int                `json:"interactions" yaml:"interactions"`
	Events       map[string]int     `json:"events" yaml:"events"`
	Sums         map[string]float64 `json:"sums" yaml:"sums"`
}

// Rate is the share of the arm's interactions that emitted metric.
func (a *ArmStats) Rate(metric string) float64 {
	if a == nil || a.Interactions == 0 {
		return 0
	}
	return float64(a.Events[metric]) / float64(a.Interactions)
}

// Mean is the average value of metric's numeric events.
func (a *ArmStats) Mean(metric string) float64 {
	if a == nil || a.Events[metric] == 0 {
		return 0
	}
	return a.Sums[metric] / float64(a.Events[metric])
}

// Tally groups ArmStats by arm name. It belongs to one producer goroutine.
type Tally map[string]*ArmStats

func (t Tally) arm(name string) *ArmStats {
	a, ok := t[name]
	if !ok {
		a = &ArmStats{Events: make(map[string]int), Sums: make(map[string]float64)}
		t[name] = a
	}
	return a
}

// emitter tracks reached funnel steps for c and tallies them on arm.
func emitter(client platform.Client, c synth.Context, arm *ArmStats) funnel.Emit {
	return func(metric string, value *float64) error {
		var err error
		if value == nil {
			err = client.TrackEvent(metric, c)
		} else {
			err = client.TrackMetric(metric, c, *value)
		}
		if err != nil {
			return interactionErr("track", c, err)
		}
		arm.Events[metric]++
		if value != nil {
			arm.Sums[metric] += *value
		}
		return nil
	}
}

// walk runs every funnel of an arm for one interaction.
func walk(d Deps, c synth.Context, arm *ArmStats, funnels []funnel.Funnel) error {
	emit := emitter(d.Client, c, arm)
	for _, f := range funnels {
		if _, err := f.Walk(d.Gen.Rand(), emit); err != nil {
			return err
		}
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d Deps) countInteraction(producer string, err error) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.Interactions.WithLabelValues(producer).Inc()
	if err != nil {
		d.Metrics.InteractionErrors.WithLabelValues(producer).Inc()
	}
}

func (d Deps) countOutcome(producer string, o Outcome) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.Outcomes.WithLabelValues(producer, string(o)).Inc()
}

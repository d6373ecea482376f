// Package funnel evaluates ordered, probability-gated event sequences.
//
// A Funnel is a list of steps; each step's Probability is conditional on every
// earlier step having been reached. Walking a funnel draws one Bernoulli per step,
// emits the steps that were reached in order and stops at the first failed draw,
// which models drop-off between stages.
package funnel

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Range is a uniform value distribution over [Min, Max).
type Range struct {
	Min     float64
	Max     float64
	Integer bool // truncate the sample towards zero
}

// Sample draws one value.
func (r Range) Sample(rng *rand.Rand) float64 {
	v := r.Min + rng.Float64()*(r.Max-r.Min)
	if r.Integer {
		return math.Trunc(v)
	}
	return v
}

// Around returns the range centre±jitter.
func Around(centre, jitter float64, integer bool) *Range {
	return &Range{Min: centre - jitter, Max: centre + jitter, Integer: integer}
}

// Step is one stage. A step with a Value is a numeric event; without one it is an
// occurrence event.
type Step struct {
	Metric      string
	Probability float64
	Value       *Range
}

// Always returns an unconditional occurrence step.
func Always(metric string) Step { return Step{Metric: metric, Probability: 1} }

// Maybe returns an occurrence step reached with probability p.
func Maybe(metric string, p float64) Step { return Step{Metric: metric, Probability: p} }

// Measure returns an unconditional numeric step.
func Measure(metric string, r *Range) Step { return Step{Metric: metric, Probability: 1, Value: r} }

// Emit receives each reached step. value is nil for occurrence events.
type Emit func(metric string, value *float64) error

// Funnel is an ordered list of dependent steps.
type Funnel []Step

// Walk draws through the funnel and emits every reached step in order. It returns the
// number of steps reached. An emit error stops the walk and is returned wrapped.
func (f Funnel) Walk(rng *rand.Rand, emit Emit) (int, error) {
	reached := 0
	for _, s := range f {
		if s.Probability < 1 && rng.Float64() >= s.Probability {
			break
		}
		var value *float64
		if s.Value != nil {
			v := s.Value.Sample(rng)
			value = &v
		}
		if err := emit(s.Metric, value); err != nil {
			return reached, fmt.Errorf("emit %s: %w", s.Metric, err)
		}
		reached++
	}
	return reached, nil
}

// Independent walks every step as its own single-step funnel, so one failed draw
// does not suppress the others.
func Independent(rng *rand.Rand, steps []Step, emit Emit) (int, error) {
	total := 0
	for _, s := range steps {
		n, err := Funnel{s}.Walk(rng, emit)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

package producer

import (
	"context"
	"errors"
	"time"

	"github.com/TimurManjosov/togglegen/internal/config"
	"github.com/TimurManjosov/togglegen/internal/funnel"
	"github.com/TimurManjosov/togglegen/internal/rollout"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/time/rate"
)

// Outcome is the terminal state of a producer.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // rollout concluded remotely, or batch finished
	OutcomeAborted   Outcome = "aborted"   // rollout never became active, or client unusable
	OutcomeCancelled Outcome = "cancelled" // context cancelled (process shutdown)
)

// Arm names of a guarded rollout.
const (
	ArmTreatment = "treatment"
	ArmControl   = "control"
)

// PerformanceProfile is the simulated health of one variation. Rates are percentages.
type PerformanceProfile struct {
	ErrorRate        float64
	SuccessRate      float64
	LatencyMs        float64
	LatencyJitter    float64
	Throughput       float64
	ThroughputJitter float64
}

// MetricKeys names the metrics a guarded scenario emits; empty keys are skipped.
type MetricKeys struct {
	SuccessRate string
	ErrorRate   string
	Latency     string
	Throughput  string
}

// Steps turns the profile into independent emission steps: occurrence events for
// success and error with the profile's rates, numeric events for latency and
// throughput with uniform jitter.
func (p PerformanceProfile) Steps(keys MetricKeys) []funnel.Step {
	var steps []funnel.Step
	if keys.SuccessRate != "" {
		steps = append(steps, funnel.Maybe(keys.SuccessRate, p.SuccessRate/100))
	}
	if keys.ErrorRate != "" {
		steps = append(steps, funnel.Maybe(keys.ErrorRate, p.ErrorRate/100))
	}
	if keys.Latency != "" {
		steps = append(steps, funnel.Measure(keys.Latency, funnel.Around(p.LatencyMs, p.LatencyJitter, true)))
	}
	if keys.Throughput != "" {
		steps = append(steps, funnel.Measure(keys.Throughput, funnel.Around(p.Throughput, p.ThroughputJitter, true)))
	}
	return steps
}

// Scenario is one guarded release: the flag, the profile served to each variation
// and whether reaching the treatment announces a rollback.
type Scenario struct {
	Name                string
	FlagKey             string
	Treatment           PerformanceProfile // served when the flag evaluates true
	Control             PerformanceProfile
	Metrics             MetricKeys
	RollbackOnTreatment bool
}

// PaymentsScenario is the successful release: the new payment system is faster and
// fails less than the legacy one.
func PaymentsScenario(k config.Keys) Scenario {
	return Scenario{
		Name:      "payments",
		FlagKey:   k.PaymentsFlag,
		Treatment: PerformanceProfile{ErrorRate: 0.1, SuccessRate: 99.9, LatencyMs: 80, LatencyJitter: 5},
		Control:   PerformanceProfile{ErrorRate: 1.5, SuccessRate: 98.5, LatencyMs: 200, LatencyJitter: 5},
		Metrics: MetricKeys{
			SuccessRate: k.PaymentSuccessRate,
			ErrorRate:   k.PaymentErrorRate,
			Latency:     k.PaymentLatency,
		},
	}
}

// DatabaseScenario is the failed release: the new database is catastrophically worse,
// which drives the platform to roll it back.
func DatabaseScenario(k config.Keys) Scenario {
	return Scenario{
		Name:      "database",
		FlagKey:   k.DatabaseFlag,
		Treatment: PerformanceProfile{ErrorRate: 25, LatencyMs: 3500, LatencyJitter: 50, Throughput: 30, ThroughputJitter: 5},
		Control:   PerformanceProfile{ErrorRate: 0.2, LatencyMs: 80, LatencyJitter: 5, Throughput: 600, ThroughputJitter: 10},
		Metrics: MetricKeys{
			ErrorRate:  k.DatabaseErrorRate,
			Latency:    k.DatabaseLatency,
			Throughput: k.DatabaseThroughput,
		},
		RollbackOnTreatment: true,
	}
}

// GuardedOptions holds the pacing of a guarded-rollout producer.
type GuardedOptions struct {
	PollInterval time.Duration // wait between readiness polls
	PollAttempts int           // readiness polls before aborting
	CheckEvery   int           // interactions between status re-checks
	FlushEvery   int           // interactions between flushes
	FlushPause   time.Duration // pause after each flush
	Delay        time.Duration // minimum spacing between interactions
}

// GuardedOptionsFromConfig reads the pacing from cfg.
func GuardedOptionsFromConfig(cfg *config.Config) GuardedOptions {
	return GuardedOptions{
		PollInterval: cfg.RolloutPollInterval,
		PollAttempts: cfg.RolloutPollAttempts,
		CheckEvery:   cfg.RolloutCheckEvery,
		FlushEvery:   cfg.RolloutFlushEvery,
		FlushPause:   cfg.RolloutFlushPause,
		Delay:        cfg.InteractionDelay,
	}
}

// Report summarizes a producer run.
type Report struct {
	Producer        string  `json:"producer" yaml:"producer"`
	Outcome         Outcome `json:"outcome" yaml:"outcome"`
	Interactions    int     `json:"interactions" yaml:"interactions"` // interactions that completed
	Errors          int     `json:"errors" yaml:"errors"`             // interactions abandoned
	Flushes         int     `json:"flushes" yaml:"flushes"`
	RollbackNotices int     `json:"rollbackNotices" yaml:"rollbackNotices"`
	Arms            Tally   `json:"arms" yaml:"arms"`
}

// GuardedRollout streams interactions against a flag under a measured rollout until
// the platform concludes the rollout.
//
// States: awaiting rollout → running → completed, or awaiting rollout → aborted.
type GuardedRollout struct {
	Scenario Scenario
	Checker  rollout.StatusChecker
	Opts     GuardedOptions
	Deps
}

// Run blocks until the producer reaches a terminal state. Only errors that no later
// interaction could recover from are returned; the outcome is in the report.
func (g *GuardedRollout) Run(ctx context.Context) (Report, error) {
	s := g.Scenario
	log := g.Log.With().Str("producer", s.Name).Str("flag", s.FlagKey).Logger()
	report := Report{Producer: s.Name, Arms: make(Tally)}

	finish := func(o Outcome) {
		report.Outcome = o
		g.countOutcome(s.Name, o)
	}

	if !g.Client.Initialized() {
		log.Error().Msg("platform client is not initialized")
		finish(OutcomeAborted)
		return report, nil
	}

	log.Info().Msg("waiting for measured rollout to become active")
	if err := rollout.AwaitActive(ctx, g.Checker, s.FlagKey, g.Opts.PollInterval, g.Opts.PollAttempts, log); err != nil {
		if errors.Is(err, rollout.ErrRolloutNotReady) {
			log.Error().Int("attempts", g.Opts.PollAttempts).Msg("rollout failed to become active, exiting")
			finish(OutcomeAborted)
			return report, nil
		}
		finish(OutcomeCancelled)
		return report, nil
	}
	log.Info().Msg("rollout is active, generating events")

	pace := rate.NewLimiter(rate.Inf, 1)
	if g.Opts.Delay > 0 {
		pace = rate.NewLimiter(rate.Every(g.Opts.Delay), 1)
	}

	rollbackAnnounced := false
	sinceCheck, sinceFlush := 0, 0
	for {
		if ctx.Err() != nil {
			finish(OutcomeCancelled)
			return report, nil
		}
		if sinceCheck >= g.Opts.CheckEvery {
			if !g.Checker.IsActive(ctx, s.FlagKey) {
				log.Info().Int("users", report.Interactions).Msg("measured rollout is over")
				break
			}
			sinceCheck = 0
		}

		treatment, err := g.interact(&report)
		sinceCheck++
		g.countInteraction(s.Name, err)
		if treatment && s.RollbackOnTreatment && !rollbackAnnounced {
			rollbackAnnounced = true
			report.RollbackNotices++
			log.Warn().Int("user", report.Interactions+report.Errors+1).Msg("rollback triggered - high error rate detected")
		}
		if err != nil {
			var ie *InteractionError
			if !errors.As(err, &ie) {
				finish(OutcomeAborted)
				return report, err
			}
			report.Errors++
			log.Error().Err(err).Msg("error generating metrics")
		} else {
			report.Interactions++
			sinceFlush++
		}

		if sinceFlush >= g.Opts.FlushEvery {
			g.Client.Flush()
			report.Flushes++
			sinceFlush = 0
			log.Info().Int("users", report.Interactions).Msg("flushed events")
			if sleep(ctx, g.Opts.FlushPause) != nil {
				continue
			}
		}
		_ = pace.Wait(ctx)
	}

	g.Client.Flush()
	report.Flushes++
	finish(OutcomeCompleted)
	log.Info().Int("users", report.Interactions).Int("errors", report.Errors).Msg("generator finished")
	return report, nil
}

// interact runs one synthetic interaction and reports whether it hit the treatment.
func (g *GuardedRollout) interact(report *Report) (bool, error) {
	c := g.Gen.Next()
	v, err := g.Client.Variation(g.Scenario.FlagKey, c, ldvalue.Bool(false))
	if err != nil {
		return false, interactionErr("evaluate", c, err)
	}

	treatment := v.BoolValue()
	profile, armName := g.Scenario.Control, ArmControl
	if treatment {
		profile, armName = g.Scenario.Treatment, ArmTreatment
	}
	arm := report.Arms.arm(armName)
	arm.Interactions++

	steps := profile.Steps(g.Scenario.Metrics)
	_, err = funnel.Independent(g.Gen.Rand(), steps, emitter(g.Client, c, arm))
	return treatment, err
}

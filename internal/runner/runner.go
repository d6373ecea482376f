// Package runner orchestrates a telemetry run: exposure evaluations, the two guarded
// rollouts side by side, then the experiments one after another.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/config"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/TimurManjosov/togglegen/internal/rollout"
	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"
)

// ErrNoSDKKey means telemetry generation was skipped because no SDK key is configured.
var ErrNoSDKKey = errors.New("LD_SDK_KEY not set, skipping results generation")

// Generator streams; each producer draws from its own so runs with a fixed seed
// are reproducible regardless of goroutine scheduling.
const (
	streamExposure uint64 = iota
	streamPayments
	streamDatabase
	streamExperiments
)

// Runner owns the platform client for the duration of a run.
type Runner struct {
	cfg     *config.Config
	keys    config.Keys
	client  platform.Client
	lister  producer.FlagLister
	checker rollout.StatusChecker
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// Summary collects every producer report of a run.
type Summary struct {
	Exposure    producer.ExposureReport
	Rollouts    []producer.Report
	Experiments []producer.Report
}

// New assembles a Runner. metrics may be nil.
func New(cfg *config.Config, keys config.Keys, c platform.Client, lister producer.FlagLister, checker rollout.StatusChecker, metrics *telemetry.Metrics, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		keys:    keys,
		client:  c,
		lister:  lister,
		checker: rollout.Observe(checker, metrics),
		metrics: metrics,
		log:     log.With().Str("component", "runner").Logger(),
	}
}

// FromConfig connects to the platform. A missing SDK key returns ErrNoSDKKey; a
// missing project or API key returns a config.ValidationError.
func FromConfig(cfg *config.Config, keys config.Keys, metrics *telemetry.Metrics, log zerolog.Logger) (*Runner, error) {
	if cfg.SDKKey == "" {
		return nil, ErrNoSDKKey
	}
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}

	api := client.NewClient(cfg.APIURL, cfg.APIKey, cfg.ProjectKey, cfg.HTTPTimeout)
	ld, err := platform.NewLaunchDarkly(cfg.SDKKey, platform.LaunchDarklyOptions{
		EventsCapacity: cfg.EventsCapacity,
		InitTimeout:    cfg.SDKInitTimeout,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize platform client: %w", err)
	}
	return New(cfg, keys, ld, api, rollout.NewProber(api, cfg.Environment, log), metrics, log), nil
}

// WithRecording copies every tracked event into sink as well.
func (r *Runner) WithRecording(sink platform.Sink) *Runner {
	r.client = platform.Recording(r.client, sink)
	return r
}

// Run executes the whole run. The client is flushed and closed on every exit path,
// including a panic in a producer.
func (r *Runner) Run(ctx context.Context) (sum Summary, err error) {
	defer func() {
		r.client.Flush()
		if cerr := r.client.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close platform client: %w", cerr)
		}
	}()

	if !r.client.Initialized() {
		return sum, platform.ErrNotInitialized
	}

	r.log.Info().Msg("step 1: generating flag evaluations")
	sum.Exposure = r.Exposure(ctx)

	r.log.Info().Msg("step 2: generating guarded rollout results")
	sum.Rollouts, err = r.Rollouts(ctx)
	if err != nil {
		return sum, err
	}
	r.log.Info().Msg("all guarded rollout generators have completed")

	r.log.Info().Msg("step 3: generating experiment results")
	for _, e := range producer.Experiments(r.keys, r.cfg) {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		report, err := r.Experiment(ctx, e)
		sum.Experiments = append(sum.Experiments, report)
		if err != nil {
			return sum, err
		}
	}

	r.log.Info().Msg("all results generation completed")
	return sum, ctx.Err()
}

// Exposure evaluates every tagged flag without touching the guarded rollouts.
func (r *Runner) Exposure(ctx context.Context) producer.ExposureReport {
	c := platform.Instrument(r.client, r.metrics, "exposure")
	gen := synth.NewGenerator(r.cfg.RandSeed, streamExposure)
	return producer.EvaluateExposure(ctx, r.lister, c, gen, r.cfg.ExposureTag, r.cfg.ExposureEvaluations, r.log)
}

// Rollouts runs both guarded producers concurrently and waits for both. One
// producer aborting never stops the other.
func (r *Runner) Rollouts(ctx context.Context) ([]producer.Report, error) {
	scenarios := []struct {
		s      producer.Scenario
		stream uint64
	}{
		{producer.PaymentsScenario(r.keys), streamPayments},
		{producer.DatabaseScenario(r.keys), streamDatabase},
	}

	reports := make([]producer.Report, len(scenarios))
	var g errgroup.Group
	for i, sc := range scenarios {
		g.Go(func() error {
			gr := &producer.GuardedRollout{
				Scenario: sc.s,
				Checker:  r.checker,
				Opts:     producer.GuardedOptionsFromConfig(r.cfg),
				Deps:     r.deps(sc.s.Name, sc.stream),
			}
			return supervise(sc.s.Name, func() (err error) {
				reports[i], err = gr.Run(ctx)
				return err
			})
		})
	}
	r.log.Info().Msg("guarded rollout generators are running until measured rollouts complete")
	err := g.Wait()
	return reports, err
}

// Experiment runs one experiment producer.
func (r *Runner) Experiment(ctx context.Context, e *producer.Experiment) (report producer.Report, err error) {
	stream := streamExperiments + e.Stream
	err = supervise(e.Name, func() (err error) {
		report, err = e.Run(ctx, r.deps(e.Name, stream))
		return err
	})
	return report, err
}

// supervise runs one producer and converts a panic into an error, so the caller's
// cleanup still runs and the other producer is not torn down with it.
func supervise(name string, run func() error) error {
	var pc panics.Catcher
	var err error
	pc.Try(func() { err = run() })
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("producer %s panicked: %w", name, r.AsError())
	}
	if err != nil {
		return fmt.Errorf("producer %s: %w", name, err)
	}
	return nil
}

// ExperimentByName returns one of the configured experiments.
func (r *Runner) ExperimentByName(name string) (*producer.Experiment, bool) {
	for _, e := range producer.Experiments(r.keys, r.cfg) {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Close flushes and releases the client. Run does this itself; commands that call
// single steps must call Close.
func (r *Runner) Close() error {
	r.client.Flush()
	return r.client.Close()
}

func (r *Runner) deps(name string, stream uint64) producer.Deps {
	return producer.Deps{
		Client:  platform.Instrument(r.client, r.metrics, name),
		Gen:     synth.NewGenerator(r.cfg.RandSeed, stream),
		Log:     r.log,
		Metrics: r.metrics,
	}
}

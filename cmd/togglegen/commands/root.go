package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TimurManjosov/togglegen/internal/cli"
	"github.com/TimurManjosov/togglegen/internal/config"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/runner"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	format   string
	dryRun   bool
	seed     uint64
	logLevel string

	// Set by the root pre-run
	cfg    *config.Config
	keys   = config.DefaultKeys()
	logger zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "togglegen",
	Short: "Synthetic telemetry generator for a feature-flag demo project",
	Long: `Togglegen simulates users exercising the flags of a provisioned demo project and
sends the resulting evaluations and metric events to the platform.

It drives two guarded rollouts until the platform concludes them (one is promoted,
one is rolled back) and three experiments with predetermined outcomes.

Examples:
  togglegen generate
  togglegen generate --dry-run --record run.db --seed 42
  togglegen experiment search
  togglegen status paymentsSystemsUpgrade
  togglegen flags --tag togglestore --format yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if cmd.Flags().Changed("seed") {
			c.RandSeed = seed
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if _, err := cli.ParseFormat(format); err != nil {
			return err
		}
		cfg = c
		logger = telemetry.NewLogger(c.LogLevel, c.LogFormat, os.Stderr)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Use the in-process offline platform instead of the SDK")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Random seed (0 draws a fresh one); overrides RAND_SEED")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level; overrides LOG_LEVEL")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// errSkipped means the command logged why it did nothing and should exit cleanly.
var errSkipped = errors.New("skipped")

// newRunner builds a runner against the live platform or, with --dry-run, the offline
// one. Missing API credentials are returned as errors; a missing SDK key or a client
// that fails to initialize is logged and reported as errSkipped.
func newRunner(metrics *telemetry.Metrics, sink platform.Sink) (*runner.Runner, error) {
	if dryRun {
		r, _, err := runner.NewDryRun(cfg, keys, sink, metrics, logger)
		return r, err
	}

	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	r, err := runner.FromConfig(cfg, keys, metrics, logger)
	switch {
	case errors.Is(err, runner.ErrNoSDKKey):
		logger.Error().Msg(err.Error())
		return nil, errSkipped
	case errors.Is(err, platform.ErrNotInitialized):
		logger.Error().Err(err).Msg("failed to initialize platform client")
		return nil, errSkipped
	case err != nil:
		return nil, err
	}
	if sink != nil {
		r = r.WithRecording(sink)
	}
	return r, nil
}

package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/TimurManjosov/togglegen/internal/cli"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/TimurManjosov/togglegen/internal/telemetry"
	"github.com/spf13/cobra"
)

var recordPath string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate all results: exposure, guarded rollouts, experiments",
	Long: `Generate evaluates every flag tagged for the project, runs the payments and
database guarded rollouts side by side until the platform concludes both, then runs
the search, store promo and AI config experiments one after another.

Examples:
  togglegen generate
  togglegen generate --dry-run --record run.db
  togglegen generate --seed 42 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		m := telemetry.NewMetrics()
		if cfg.MetricsAddr != "" {
			srv := serveMetrics(cfg.MetricsAddr, m)
			defer func() {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutCtx)
			}()
		}

		var sink *platform.SQLiteSink
		if recordPath != "" {
			var err error
			if sink, err = platform.OpenSQLiteSink(recordPath); err != nil {
				return err
			}
			defer sink.Close()
		}

		r, err := newRunner(m, sinkOrNil(sink))
		if errors.Is(err, errSkipped) {
			return nil
		}
		if err != nil {
			return err
		}

		sum, err := r.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("results generation stopped")
		}

		out := cmd.OutOrStdout()
		reports := append(append([]producer.Report{}, sum.Rollouts...), sum.Experiments...)
		if err := cli.PrintReports(out, reports, cli.OutputFormat(format)); err != nil {
			return err
		}
		if sink != nil {
			metrics, err := sink.Summary()
			if err != nil {
				return err
			}
			return cli.PrintMetrics(out, metrics, cli.OutputFormat(format))
		}
		return nil
	},
}

// sinkOrNil keeps a nil *SQLiteSink from becoming a non-nil Sink interface.
func sinkOrNil(s *platform.SQLiteSink) platform.Sink {
	if s == nil {
		return nil
	}
	return s
}

func serveMetrics(addr string, m *telemetry.Metrics) *http.Server {
	srv := &http.Server{
		Addr:        addr,
		Handler:     telemetry.Router(m),
		ReadTimeout: 3 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&recordPath, "record", "", "Record every tracked event in a SQLite database at this path")
}

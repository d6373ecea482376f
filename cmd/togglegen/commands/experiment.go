package commands

import (
	"errors"
	"fmt"

	"github.com/TimurManjosov/togglegen/internal/cli"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/spf13/cobra"
)

// experimentAliases maps command arguments to experiment names.
var experimentAliases = map[string]string{
	"search": "search-algorithm",
	"promo":  "store-promo-banner",
	"ai":     "ai-config",
}

var experimentCmd = &cobra.Command{
	Use:       "experiment <search|promo|ai>",
	Short:     "Run one experiment producer",
	ValidArgs: []string{"search", "promo", "ai"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Experiment runs a single experiment batch of EXPERIMENT_INTERACTIONS users.

  search  search algorithm, featured-list wins
  promo   store promo banner, no clear winner
  ai      AI config models, no clear winner

Examples:
  togglegen experiment search
  togglegen experiment ai --dry-run --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		r, err := newRunner(nil, nil)
		if errors.Is(err, errSkipped) {
			return nil
		}
		if err != nil {
			return err
		}
		defer r.Close()

		e, ok := r.ExperimentByName(experimentAliases[args[0]])
		if !ok {
			return fmt.Errorf("unknown experiment: %s", args[0])
		}
		report, err := r.Experiment(ctx, e)
		if err != nil {
			logger.Error().Err(err).Str("experiment", e.Name).Msg("experiment stopped")
		}
		return cli.PrintReports(cmd.OutOrStdout(), []producer.Report{report}, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(experimentCmd)
}

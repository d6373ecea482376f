package commands

import (
	"fmt"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/rollout"
	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status <flagKey>",
	Short: "Show whether a flag has an active measured rollout",
	Long: `Status fetches the flag from the REST API and reports whether its default rule in
LD_ENVIRONMENT currently carries a measured rollout. With --wait it polls like the
guarded-rollout producers do before they start.

Examples:
  togglegen status paymentsSystemsUpgrade
  togglegen status databaseUpgrade --wait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := cfg.RequireAPI(); err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		api := client.NewClient(cfg.APIURL, cfg.APIKey, cfg.ProjectKey, cfg.HTTPTimeout)
		prober := rollout.NewProber(api, cfg.Environment, logger)

		var active bool
		if statusWait {
			active = rollout.AwaitActive(ctx, prober, key, cfg.RolloutPollInterval, cfg.RolloutPollAttempts, logger) == nil
		} else {
			active = prober.IsActive(ctx, key)
		}

		state := "inactive"
		if active {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: measured rollout %s in %s\n", key, state, cfg.Environment)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "Poll until the rollout is active or the attempts run out")
}

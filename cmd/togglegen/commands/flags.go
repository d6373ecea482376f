package commands

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/togglegen/internal/cli"
	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/TimurManjosov/togglegen/internal/runner"
	"github.com/spf13/cobra"
)

var flagsTag string

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List the project's flags",
	Long: `List the project's flags with their state in LD_ENVIRONMENT.

Examples:
  togglegen flags
  togglegen flags --tag togglestore --format yaml
  togglegen flags --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var lister producer.FlagLister
		if dryRun {
			o, err := platform.NewOffline("flags", nil, runner.DefaultOfflineFlags(keys, cfg.ExposureTag)...)
			if err != nil {
				return err
			}
			lister = o
		} else {
			if err := cfg.RequireAPI(); err != nil {
				return err
			}
			lister = client.NewClient(cfg.APIURL, cfg.APIKey, cfg.ProjectKey, cfg.HTTPTimeout)
		}

		flags, err := lister.ListFlags(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}

		if flagsTag != "" {
			var tagged []client.Flag
			for _, f := range flags {
				if f.HasTag(flagsTag) {
					tagged = append(tagged, f)
				}
			}
			flags = tagged
		}

		if len(flags) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flags found")
			return nil
		}
		return cli.PrintFlags(cmd.OutOrStdout(), flags, cfg.Environment, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(flagsCmd)

	flagsCmd.Flags().StringVar(&flagsTag, "tag", "", "Show only flags carrying this tag")
}

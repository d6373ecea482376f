package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var exposureCmd = &cobra.Command{
	Use:   "exposure",
	Short: "Evaluate every tagged flag to generate exposure events",
	Long: `Exposure evaluates each flag carrying EXPOSURE_TAG against EXPOSURE_EVALUATIONS
fresh synthetic users. Flags are only read, never changed.

Examples:
  togglegen exposure
  togglegen exposure --dry-run`,
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

		report := r.Exposure(ctx)
		if len(report.Flags) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flags found")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d flags: %d evaluations, %d errors\n",
			len(report.Flags), report.Attempts, report.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exposureCmd)
}

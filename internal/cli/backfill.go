package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackfillCmd(withBackend backendRunner) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "backfill-xp",
		Short: "Score runs that were stored without XP",
		Long: `backfill-xp recomputes the XP fields of runs with zero XP, using the
streak day each run has in the current history and the current scoring
settings. With --all every run is rescored. Affected users are reconciled.`,
		Args: cobra.NoArgs,
		RunE: withBackend(func(cmd *cobra.Command, b *backend) error {
			report, err := b.runs.BackfillXP(cmd.Context(), all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d runs across %d users, %d failed\n",
				report.RunsUpdated, report.UsersProcessed, report.Failures)
			if report.Failures > 0 {
				return fmt.Errorf("backfill failed for %d users", report.Failures)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "rescore every run, not only runs without XP")
	return cmd
}

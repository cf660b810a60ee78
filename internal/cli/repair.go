package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRepairCmd(withBackend backendRunner) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Recompute cached totals from the run history",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(cmd *cobra.Command, b *backend) error {
			out := cmd.OutOrStdout()

			if userFlag != "" {
				userID, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("invalid --user %q: %w", userFlag, err)
				}
				agg, err := b.reconciler.ReconcileUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d XP, %.3f km, level %d, streak %d (longest %d)\n",
					userID, agg.TotalXP, agg.TotalDistance, agg.CurrentLevel, agg.CurrentStreak, agg.LongestStreak)
				return nil
			}

			report, err := b.reconciler.ReconcileAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Checked %d users: %d changed, %d unchanged, %d failed\n",
				report.Checked, report.Changed, report.Unchanged, len(report.Failures))
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  %s: %s\n", f.UserID, f.Error)
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d users could not be repaired", len(report.Failures))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "repair a single user by id")
	return cmd
}

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCmd(withBackend backendRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report users whose stored totals disagree with their runs",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(cmd *cobra.Command, b *backend) error {
			found, err := b.reconciler.Audit(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No discrepancies found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tSTORED XP\tCOMPUTED XP\tSTORED KM\tCOMPUTED KM\tSTORED LEVEL\tCOMPUTED LEVEL")
			for _, d := range found {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\t%.3f\t%d\t%d\n",
					d.UserID,
					d.StoredXP, d.ComputedXP,
					d.StoredDistance, d.ComputedDistance,
					d.StoredLevel, d.ComputedLevel,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d users out of sync. Run 'runquestctl repair' to fix them.\n", len(found))
			return nil
		}),
	}
}

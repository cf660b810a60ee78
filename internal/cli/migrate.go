package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(withBackend backendRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed default scoring settings",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(cmd *cobra.Command, b *backend) error {
			if err := b.migrate(cmd.Context()); err != nil {
				return err
			}
			if err := b.settings.SeedDefaults(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied and scoring settings seeded.")
			return nil
		}),
	}
}

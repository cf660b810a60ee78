// Package cli implements the runquestctl maintenance commands using Cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/store"
	"runQuestAPI/services"
)

// backend is what the commands operate on.
type backend struct {
	reconciler *services.Reconciler
	runs       *services.RunService
	settings   *services.SettingsService
	migrate    func(ctx context.Context) error
}

type opener func(ctx context.Context) (*backend, func(), error)

func openDatabase(ctx context.Context) (*backend, func(), error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is not set")
	}

	defaults, err := config.LoadScoringDefaults(cfg.ScoringDefaultsFile)
	if err != nil {
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	db := store.New(pool)
	settings := services.NewSettingsService(db, defaults)
	reconciler := services.NewReconciler(db, defaults.Levels)
	runs := services.NewRunService(db, settings, reconciler)
	runs.SetLocation(cfg.StreakLocation)

	return &backend{
		reconciler: reconciler,
		runs:       runs,
		settings:   settings,
		migrate:    db.Migrate,
	}, pool.Close, nil
}

func newRootCmd(open opener) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "runquestctl",
		Short: "RunQuest maintenance tool",
		Long: `runquestctl audits and repairs the cached user totals, rescores runs
and applies the database schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "abort the command after this long")

	// withBackend opens the database for the duration of one command.
	withBackend := func(run func(cmd *cobra.Command, b *backend) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			cmd.SetContext(ctx)

			b, closeFn, err := open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd, b)
		}
	}

	root.AddCommand(
		newAuditCmd(withBackend),
		newRepairCmd(withBackend),
		newBackfillCmd(withBackend),
		newMigrateCmd(withBackend),
	)
	return root
}

type backendRunner func(run func(cmd *cobra.Command, b *backend) error) func(*cobra.Command, []string) error

// Execute runs the root command. Called from cmd/runquestctl.
func Execute() {
	if err := newRootCmd(openDatabase).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

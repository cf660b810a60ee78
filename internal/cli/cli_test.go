package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/testsupport"
	"runQuestAPI/services"
)

type harness struct {
	store    *testsupport.MemoryStore
	migrated int
	closed   int
}

func (h *harness) open(context.Context) (*backend, func(), error) {
	defaults := config.DefaultScoring()
	settings := services.NewSettingsService(h.store, defaults)
	reconciler := services.NewReconciler(h.store, defaults.Levels)
	return &backend{
		reconciler: reconciler,
		runs:       services.NewRunService(h.store, settings, reconciler),
		settings:   settings,
		migrate: func(context.Context) error {
			h.migrated++
			return nil
		},
	}, func() { h.closed++ }, nil
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(h.open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAuditThenRepair(t *testing.T) {
	h := &harness{store: testsupport.NewMemoryStore()}
	userID := h.store.AddUser("runner")
	h.store.SeedRun(userID, "2025-09-29", 5, 30)

	out, err := h.run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, userID.String())
	assert.Contains(t, out, "1 users out of sync")
	assert.Zero(t, h.store.Aggregate(userID).TotalXP, "audit must not write")

	out, err = h.run(t, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 users: 1 changed, 0 unchanged, 0 failed")
	assert.Equal(t, 30, h.store.Aggregate(userID).TotalXP)

	out, err = h.run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No discrepancies found.")
	assert.Equal(t, 3, h.closed)
}

func TestRepairSingleUser(t *testing.T) {
	h := &harness{store: testsupport.NewMemoryStore()}
	userID := h.store.AddUser("runner")
	h.store.SeedRun(userID, "2025-09-29", 10, 60)

	out, err := h.run(t, "repair", "--user", userID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "60 XP, 10.000 km, level 1")

	_, err = h.run(t, "repair", "--user", "nope")
	assert.ErrorContains(t, err, "invalid --user")
}

func TestRepairReportsFailures(t *testing.T) {
	h := &harness{store: testsupport.NewMemoryStore()}
	h.store.AddUser("runner")
	h.store.Fail.ListRuns = true

	out, err := h.run(t, "repair")
	require.Error(t, err)
	assert.Contains(t, out, "1 failed")
}

func TestBackfillXP(t *testing.T) {
	h := &harness{store: testsupport.NewMemoryStore()}
	userID := h.store.AddUser("runner")
	h.store.SeedRun(userID, "2025-09-28", 5, 0)
	h.store.SeedRun(userID, "2025-09-29", 5, 30)

	out, err := h.run(t, "backfill-xp")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 runs across 1 users, 0 failed")
	assert.Equal(t, 60, h.store.Aggregate(userID).TotalXP)
}

func TestMigrateSeedsSettings(t *testing.T) {
	h := &harness{store: testsupport.NewMemoryStore()}

	out, err := h.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema applied")
	assert.Equal(t, 1, h.migrated)

	table, err := h.store.ListStreakMultipliers(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)
}

func TestOpenFailureIsReturned(t *testing.T) {
	cmd := newRootCmd(func(context.Context) (*backend, func(), error) {
		return nil, nil, errors.New("DATABASE_URL is not set")
	})
	cmd.SetArgs([]string{"audit"})
	cmd.SetOut(&bytes.Buffer{})
	assert.EqualError(t, cmd.ExecuteContext(context.Background()), "DATABASE_URL is not set")
}

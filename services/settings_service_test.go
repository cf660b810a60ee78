package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/testsupport"
	"runQuestAPI/services"
)

func TestSettingsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	svc := services.NewSettingsService(testsupport.NewMemoryStore(), config.DefaultScoring())

	cfg, err := svc.ScoringConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultConfig(), cfg)

	table, err := svc.StreakMultipliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, table.MultiplierFor(3))
	assert.Equal(t, 2.0, table.MultiplierFor(45))
}

func TestSettingsUpdateValidates(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStore()
	svc := services.NewSettingsService(store, config.DefaultScoring())

	bad := scoring.DefaultConfig()
	bad.BaseXP = -1
	_, err := svc.UpdateScoringConfig(ctx, bad)
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	_, err = svc.UpdateStreakMultipliers(ctx, scoring.MultiplierTable{{Days: 3, Multiplier: 0.5}})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	_, err = svc.UpdateStreakMultipliers(ctx, scoring.MultiplierTable{{Days: 3, Multiplier: 1.2}, {Days: 3, Multiplier: 1.4}})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	good := scoring.DefaultConfig()
	good.BaseXP = 20
	saved, err := svc.UpdateScoringConfig(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, 20, saved.BaseXP)

	sorted, err := svc.UpdateStreakMultipliers(ctx, scoring.MultiplierTable{{Days: 10, Multiplier: 1.5}, {Days: 2, Multiplier: 1.05}})
	require.NoError(t, err)
	assert.Equal(t, 2, sorted[0].Days)

	cfg, err := svc.ScoringConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.BaseXP)
}

func TestSettingsErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStore()
	store.Fail.Settings = true
	svc := services.NewSettingsService(store, config.DefaultScoring())

	_, err := svc.ScoringConfig(ctx)
	assert.ErrorIs(t, err, services.ErrUpstreamFetch)
	_, err = svc.StreakMultipliers(ctx)
	assert.ErrorIs(t, err, services.ErrUpstreamFetch)
	_, err = svc.UpdateScoringConfig(ctx, scoring.DefaultConfig())
	assert.ErrorIs(t, err, services.ErrPersistence)
}

func TestSeedDefaultsOnlyFillsGaps(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStore()
	svc := services.NewSettingsService(store, config.DefaultScoring())

	custom := scoring.DefaultConfig()
	custom.XPPerKm = 3
	require.NoError(t, store.SaveScoringConfig(ctx, custom))

	require.NoError(t, svc.SeedDefaults(ctx))

	cfg, found, err := store.GetScoringConfig(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3.0, cfg.XPPerKm)

	table, err := store.ListStreakMultipliers(ctx)
	require.NoError(t, err)
	assert.Len(t, table, 4)
}

func TestNewSettingsApplyToNextRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.AddUser("user_1")

	cfg := scoring.DefaultConfig()
	cfg.BaseXP = 50
	_, err := f.settings.UpdateScoringConfig(ctx, cfg)
	require.NoError(t, err)

	resp, err := f.runs.AddRun(ctx, "user_1", run.CreateRunRequest{Date: "2025-09-30", Distance: 1})
	require.NoError(t, err)
	assert.Equal(t, 52, resp.Run.XPGained)
}

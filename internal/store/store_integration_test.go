//go:build integration
// +build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/leaderboard"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/strava"
	"runQuestAPI/services"
)

func setupStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("runquest"),
		postgrescontainer.WithUsername("runquest"),
		postgrescontainer.WithPassword("runquest"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pg) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	// applying twice must be harmless
	require.NoError(t, s.Migrate(ctx))
	return s
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func insertUser(t *testing.T, ctx context.Context, s *Store, clerkID string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, clerk_id, username) VALUES ($1, $2, $3)`, id, clerkID, clerkID)
	require.NoError(t, err)
	return id
}

func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, ctx)
	userID := insertUser(t, ctx, s, "user_runs")

	got, err := s.GetUserIDByClerkID(ctx, "user_runs")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = s.GetUserIDByClerkID(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	day := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	ext := "strava-1"
	r := &run.Run{
		ID:            uuid.New(),
		UserID:        userID,
		Date:          day,
		Distance:      5.2,
		XPGained:      30,
		BaseXP:        15,
		KmXP:          10,
		DistanceBonus: 5,
		Multiplier:    1,
		StreakDay:     1,
		Source:        run.SourceStrava,
		ExternalID:    &ext,
		CreatedAt:     time.Now().UTC(),
	}
	inserted, err := s.InsertRun(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *r
	dup.ID = uuid.New()
	inserted, err = s.InsertRun(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	manual := &run.Run{
		ID:         uuid.New(),
		UserID:     userID,
		Date:       day,
		Distance:   3,
		XPGained:   21,
		Multiplier: 1,
		StreakDay:  1,
		Source:     run.SourceManual,
		CreatedAt:  time.Now().UTC(),
	}
	inserted, err = s.InsertRun(ctx, manual)
	require.NoError(t, err)
	assert.True(t, inserted)

	dates, err := s.ListRunDates(ctx, userID)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-09-30", scoring.FormatDay(dates[0]))

	runs, err := s.ListRuns(ctx, userID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	manual.XPGained = 40
	require.NoError(t, s.UpdateRunXP(ctx, manual))

	source := run.SourceStrava
	n, err := s.DeleteRuns(ctx, userID, run.DeleteFilter{Source: &source})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := s.DeleteRun(ctx, userID, manual.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteRun(ctx, userID, manual.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStoreReconcilesThroughService(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, ctx)
	userID := insertUser(t, ctx, s, "user_reconcile")

	reconciler := services.NewReconciler(s, scoring.DefaultLevelTable)
	runService := services.NewRunService(s, services.NewSettingsService(s, config.DefaultScoring()), reconciler)
	runService.SetClock(func() time.Time { return time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC) })

	for _, d := range []string{"2025-09-28", "2025-09-29", "2025-09-30"} {
		_, err := runService.AddRun(ctx, "user_reconcile", run.CreateRunRequest{Date: d, Distance: 5})
		require.NoError(t, err)
	}

	agg, err := s.GetAggregate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.CurrentStreak)
	assert.Equal(t, 3, agg.LongestStreak)
	assert.InDelta(t, 15.0, agg.TotalDistance, 1e-9)

	_, err = s.pool.Exec(ctx, `UPDATE users SET total_xp = 0 WHERE id = $1`, userID)
	require.NoError(t, err)

	found, err := reconciler.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)

	report, err := reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)

	found, err = reconciler.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStoreSettingsAndMultipliers(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, ctx)

	_, found, err := s.GetScoringConfig(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	cfg := scoring.DefaultConfig()
	cfg.BaseXP = 20
	require.NoError(t, s.SaveScoringConfig(ctx, cfg))

	got, found, err := s.GetScoringConfig(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cfg, got)

	table := scoring.MultiplierTable{{Days: 3, Multiplier: 1.1}, {Days: 7, Multiplier: 1.5}}
	require.NoError(t, s.ReplaceStreakMultipliers(ctx, table))
	require.NoError(t, s.ReplaceStreakMultipliers(ctx, table))

	loaded, err := s.ListStreakMultipliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)
}

func TestStoreStravaAndLeaderboards(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, ctx)
	alice := insertUser(t, ctx, s, "alice")
	bob := insertUser(t, ctx, s, "bob")

	_, err := s.GetStravaConnection(ctx, alice)
	assert.ErrorIs(t, err, services.ErrStravaNotConnected)

	conn := &strava.Connection{
		UserID:       alice,
		AthleteID:    77,
		AccessToken:  "a",
		RefreshToken: "r",
		TokenExpiry:  time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.SaveStravaConnection(ctx, conn))
	loaded, err := s.GetStravaConnection(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(77), loaded.AthleteID)

	conns, err := s.ListStravaConnections(ctx)
	require.NoError(t, err)
	assert.Len(t, conns, 1)

	for _, u := range []struct {
		id uuid.UUID
		xp int
	}{{alice, 500}, {bob, 900}} {
		_, err := s.pool.Exec(ctx, `UPDATE users SET total_xp = $2, current_streak = 4 WHERE id = $1`, u.id, u.xp)
		require.NoError(t, err)
		_, err = s.InsertRun(ctx, &run.Run{
			ID:         uuid.New(),
			UserID:     u.id,
			Date:       time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			Distance:   1,
			Multiplier: 1,
			StreakDay:  1,
			Source:     run.SourceManual,
			CreatedAt:  time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	asOf := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	top, err := s.TopEntries(ctx, leaderboard.TitleXPChampion, asOf, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, bob, top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)

	pos, err := s.EntryFor(ctx, leaderboard.TitleXPChampion, alice, asOf)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 2, pos.Rank)

	streaks, err := s.TopEntries(ctx, leaderboard.TitleStreakMaster, asOf, 10)
	require.NoError(t, err)
	require.Len(t, streaks, 2)
	assert.Equal(t, 4.0, streaks[0].Value)
	assert.Equal(t, 1, streaks[1].Rank)

	lapsed, err := s.EntryFor(ctx, leaderboard.TitleStreakMaster, alice, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, lapsed)
	assert.Zero(t, lapsed.Value)
	assert.Equal(t, 1, lapsed.Rank)

	count, err := s.CountRankedUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	profiles := services.NewUserService(s.pool)
	profiles.SetClock(func() time.Time { return asOf })
	profile, err := profiles.GetUserByClerkID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, profile.CurrentStreak)

	profiles.SetClock(func() time.Time { return time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC) })
	profile, err = profiles.GetUserByClerkID(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, profile.CurrentStreak)
	assert.Equal(t, 500, profile.TotalXP)
}

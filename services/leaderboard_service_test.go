package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runQuestAPI/internal/leaderboard"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/services"
)

func TestLeaderboards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	boards := services.NewLeaderboardService(f.store, f.store)
	boards.SetClock(func() time.Time { return fixedNow })

	f.store.AddUser("alice")
	f.store.AddUser("bob")
	f.store.AddUser("newcomer")

	for _, d := range []string{"2025-09-29", "2025-09-30"} {
		_, err := f.runs.AddRun(ctx, "alice", run.CreateRunRequest{Date: d, Distance: 5})
		require.NoError(t, err)
	}
	_, err := f.runs.AddRun(ctx, "bob", run.CreateRunRequest{Date: "2025-09-30", Distance: 21})
	require.NoError(t, err)

	all, err := boards.GetLeaderboards(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, all, len(leaderboard.Titles))

	byTitle := map[leaderboard.Title]*leaderboard.Leaderboard{}
	for _, b := range all {
		byTitle[b.Title] = b
	}

	distance := byTitle[leaderboard.TitleDistanceKing]
	require.NotNil(t, distance.Holder)
	assert.Equal(t, "bob", distance.Holder.Username)
	assert.Equal(t, 2, distance.TotalUsers)
	require.NotNil(t, distance.UserPosition)
	assert.Equal(t, 2, distance.UserPosition.Rank)

	streak := byTitle[leaderboard.TitleStreakMaster]
	require.NotNil(t, streak.Holder)
	assert.Equal(t, "alice", streak.Holder.Username)

	mine, err := boards.GetLeaderboards(ctx, "newcomer", string(leaderboard.TitleXPChampion))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].UserPosition)
	assert.Len(t, mine[0].Entries, 2)

	_, err = boards.GetLeaderboards(ctx, "alice", "fastest_mile")
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)
}

func TestStreakLeaderboardDropsLapsedStreaks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	boards := services.NewLeaderboardService(f.store, f.store)
	boards.SetClock(func() time.Time { return fixedNow })

	userID := f.store.AddUser("alice")
	for _, d := range []string{"2025-09-28", "2025-09-29", "2025-09-30"} {
		_, err := f.runs.AddRun(ctx, "alice", run.CreateRunRequest{Date: d, Distance: 5})
		require.NoError(t, err)
	}

	live, err := boards.GetLeaderboards(ctx, "alice", string(leaderboard.TitleStreakMaster))
	require.NoError(t, err)
	require.NotNil(t, live[0].Holder)
	assert.Equal(t, 3.0, live[0].Holder.Value)

	// two weeks without a run; nothing has rewritten the cached totals
	later := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	boards.SetClock(func() time.Time { return later })
	f.runs.SetClock(func() time.Time { return later })
	require.Equal(t, 3, f.store.Aggregate(userID).CurrentStreak)

	stats, err := f.runs.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stats.Streak.CurrentStreak)
	assert.Zero(t, *stats.Streak.CurrentStreak)

	lapsed, err := boards.GetLeaderboards(ctx, "alice", string(leaderboard.TitleStreakMaster))
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	assert.Nil(t, lapsed[0].Holder)
	require.NotNil(t, lapsed[0].UserPosition)
	assert.Zero(t, lapsed[0].UserPosition.Value)

	longest, err := boards.GetLeaderboards(ctx, "alice", string(leaderboard.TitleIronLegs))
	require.NoError(t, err)
	require.NotNil(t, longest[0].Holder)
	assert.Equal(t, 3.0, longest[0].Holder.Value)
}

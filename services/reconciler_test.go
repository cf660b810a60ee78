package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/testsupport"
	"runQuestAPI/internal/user"
	"runQuestAPI/services"
)

// flakyStore fails aggregate reads for a single user.
type flakyStore struct {
	*testsupport.MemoryStore
	failFor uuid.UUID
}

func (s *flakyStore) GetAggregate(ctx context.Context, userID uuid.UUID) (*user.Aggregate, error) {
	if userID == s.failFor {
		return nil, testsupport.ErrInjected
	}
	return s.MemoryStore.GetAggregate(ctx, userID)
}

func TestComputeRoundsDistanceAndDerivesLevel(t *testing.T) {
	r := services.NewReconciler(testsupport.NewMemoryStore(), nil)
	userID := uuid.New()

	agg := r.Compute(userID, []run.Run{
		{Date: day("2025-09-28"), Distance: 0.1, XPGained: 60},
		{Date: day("2025-09-29"), Distance: 0.2, XPGained: 60},
		{Date: day("2025-09-29"), Distance: 3.0004, XPGained: 0},
	}, day("2025-09-30"))

	assert.Equal(t, userID, agg.UserID)
	assert.Equal(t, 120, agg.TotalXP)
	assert.Equal(t, 3.3, agg.TotalDistance)
	assert.Equal(t, 2, agg.CurrentLevel)
	assert.Equal(t, 2, agg.CurrentStreak)
	assert.Equal(t, 2, agg.LongestStreak)
}

func TestComputeWithoutRuns(t *testing.T) {
	r := services.NewReconciler(testsupport.NewMemoryStore(), scoring.DefaultLevelTable)
	agg := r.Compute(uuid.New(), nil, day("2025-09-30"))
	assert.Zero(t, agg.TotalXP)
	assert.Equal(t, 1, agg.CurrentLevel)
	assert.Zero(t, agg.CurrentStreak)
}

func TestReconcileUserIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.store.AddUser("user_1")
	f.store.SeedRun(userID, "2025-09-29", 5, 30)
	f.store.SeedRun(userID, "2025-09-30", 10, 80)
	f.store.SetAggregate(user.Aggregate{UserID: userID, TotalXP: 7, CurrentLevel: 1})

	first, err := f.reconciler.ReconcileUser(ctx, userID)
	require.NoError(t, err)
	second, err := f.reconciler.ReconcileUser(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 110, first.TotalXP)
	assert.Equal(t, first.TotalXP, second.TotalXP)
	assert.Equal(t, first.TotalDistance, second.TotalDistance)
	assert.Equal(t, first.CurrentStreak, second.CurrentStreak)
	assert.Equal(t, first.CurrentLevel, second.CurrentLevel)
	assert.Equal(t, []int{2}, f.notifier.levels, "level up is announced once")
}

func TestReconcileUserErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()
		_, err := f.reconciler.ReconcileUser(ctx, uuid.New())
		assert.ErrorIs(t, err, services.ErrUserNotFound)
	})

	t.Run("aggregate read fails", func(t *testing.T) {
		f := newFixture()
		userID := f.store.AddUser("user_1")
		f.store.Fail.GetAggregate = true
		_, err := f.reconciler.ReconcileUser(ctx, userID)
		assert.ErrorIs(t, err, services.ErrUpstreamFetch)
	})

	t.Run("runs read fails", func(t *testing.T) {
		f := newFixture()
		userID := f.store.AddUser("user_1")
		f.store.Fail.ListRuns = true
		_, err := f.reconciler.ReconcileUser(ctx, userID)
		assert.ErrorIs(t, err, services.ErrUpstreamFetch)
	})

	t.Run("aggregate write fails", func(t *testing.T) {
		f := newFixture()
		userID := f.store.AddUser("user_1")
		f.store.Fail.UpdateAggregate = true
		_, err := f.reconciler.ReconcileUser(ctx, userID)
		assert.ErrorIs(t, err, services.ErrPersistence)
	})
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	mem := testsupport.NewMemoryStore()

	drifted := mem.AddUser("drifted")
	mem.SeedRun(drifted, "2025-09-30", 5, 30)
	broken := mem.AddUser("broken")
	mem.SeedRun(broken, "2025-09-30", 5, 30)
	mem.AddUser("idle")

	store := &flakyStore{MemoryStore: mem, failFor: broken}
	reconciler := services.NewReconciler(store, scoring.DefaultLevelTable)
	reconciler.SetClock(func() time.Time { return day("2025-09-30") })

	report, err := reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Unchanged)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, broken, report.Failures[0].UserID)
	assert.Contains(t, report.Failures[0].Error, services.ErrReconciliation.Error())

	assert.Equal(t, 30, mem.Aggregate(drifted).TotalXP)

	report, err = reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, 2, report.Unchanged)
}

func TestReconcileAllStopsOnCancelledContext(t *testing.T) {
	f := newFixture()
	f.store.AddUser("user_1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.reconciler.ReconcileAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Checked)
}

func TestAuditReportsWithoutWriting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.store.AddUser("user_1")
	f.store.SeedRun(userID, "2025-09-30", 5, 30)
	f.store.AddUser("user_2")

	found, err := f.reconciler.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, userID, found[0].UserID)
	assert.Equal(t, 0, found[0].StoredXP)
	assert.Equal(t, 30, found[0].ComputedXP)
	assert.Equal(t, 5.0, found[0].ComputedDistance)

	assert.Zero(t, f.store.Aggregate(userID).TotalXP)

	_, err = f.reconciler.ReconcileUser(ctx, userID)
	require.NoError(t, err)
	found, err = f.reconciler.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestConcurrentRunsKeepTotalsConsistent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.store.AddUser("user_1")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 21; i <= 30; i++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			_, err := f.runs.AddRun(ctx, "user_1", run.CreateRunRequest{Date: fmt.Sprintf("2025-09-%02d", d), Distance: 5})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum := 0
	for _, r := range f.store.Runs(userID) {
		sum += r.XPGained
	}
	agg := f.store.Aggregate(userID)
	assert.Equal(t, sum, agg.TotalXP)
	assert.Equal(t, 10, agg.CurrentStreak)

	found, err := f.reconciler.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"runQuestAPI/internal/observability"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/user"
)

// RunStore is everything the scoring pipeline needs from persistence.
type RunStore interface {
	GetUserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)

	ListRunDates(ctx context.Context, userID uuid.UUID) ([]time.Time, error)
	ListRuns(ctx context.Context, userID uuid.UUID) ([]run.Run, error)
	// InsertRun returns false without error when the external reference
	// already exists for the user.
	InsertRun(ctx context.Context, r *run.Run) (bool, error)
	UpdateRunXP(ctx context.Context, r *run.Run) error
	DeleteRun(ctx context.Context, userID, runID uuid.UUID) (bool, error)
	DeleteRuns(ctx context.Context, userID uuid.UUID, filter run.DeleteFilter) (int64, error)

	GetAggregate(ctx context.Context, userID uuid.UUID) (*user.Aggregate, error)
	UpdateAggregate(ctx context.Context, agg *user.Aggregate) error
}

// Notifier receives progression events. Delivery is best effort.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, userID uuid.UUID, level int) error
	NotifyStreakMilestone(ctx context.Context, userID uuid.UUID, days int) error
}

// Reconciler rebuilds a user's aggregate totals from their runs. The runs
// table is the source of truth; the aggregate is a cache.
type Reconciler struct {
	store    RunStore
	levels   scoring.LevelTable
	locks    *userLocks
	notifier Notifier
	today    func() time.Time
}

func NewReconciler(store RunStore, levels scoring.LevelTable) *Reconciler {
	if len(levels) == 0 {
		levels = scoring.DefaultLevelTable
	}
	return &Reconciler{
		store:  store,
		levels: levels,
		locks:  newUserLocks(),
		today:  func() time.Time { return scoring.Day(time.Now().UTC()) },
	}
}

func (r *Reconciler) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetClock overrides how "today" is evaluated for current streaks.
func (r *Reconciler) SetClock(today func() time.Time) {
	r.today = today
}

func (r *Reconciler) Levels() scoring.LevelTable {
	return r.levels
}

// withUserLock runs fn while holding the user's reconcile lock.
func (r *Reconciler) withUserLock(userID uuid.UUID, fn func() error) error {
	unlock := r.locks.lock(userID)
	defer unlock()
	return fn()
}

// Compute derives the aggregate for a run set without touching the store.
func (r *Reconciler) Compute(userID uuid.UUID, runs []run.Run, today time.Time) user.Aggregate {
	agg := user.Aggregate{UserID: userID}
	dates := make([]time.Time, 0, len(runs))
	for _, rn := range runs {
		agg.TotalXP += rn.XPGained
		agg.TotalDistance += rn.Distance
		dates = append(dates, rn.Date)
	}
	agg.TotalDistance = roundDistance(agg.TotalDistance)
	agg.CurrentLevel = r.levels.LevelFromXP(agg.TotalXP)

	summary := scoring.Summarize(dates, today)
	agg.CurrentStreak = summary.CurrentStreak
	agg.LongestStreak = summary.LongestStreak
	return agg
}

// ReconcileUser overwrites the user's aggregate with totals recomputed from
// the full run history.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID uuid.UUID) (*user.Aggregate, error) {
	var agg *user.Aggregate
	err := r.withUserLock(userID, func() error {
		var err error
		agg, _, err = r.reconcileLocked(ctx, userID)
		return err
	})
	return agg, err
}

// reconcileLocked reports whether the stored totals differed from the
// recomputed ones. Callers must hold the user's lock.
func (r *Reconciler) reconcileLocked(ctx context.Context, userID uuid.UUID) (*user.Aggregate, bool, error) {
	previous, err := r.store.GetAggregate(ctx, userID)
	if err != nil {
		observability.RecordReconciliation("failed")
		if errors.Is(err, ErrUserNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: load aggregate for %s: %v", ErrUpstreamFetch, userID, err)
	}

	runs, err := r.store.ListRuns(ctx, userID)
	if err != nil {
		observability.RecordReconciliation("failed")
		return nil, false, fmt.Errorf("%w: list runs for %s: %v", ErrUpstreamFetch, userID, err)
	}

	agg := r.Compute(userID, runs, r.today())
	agg.UpdatedAt = time.Now().UTC()

	if err := r.store.UpdateAggregate(ctx, &agg); err != nil {
		log.Printf("Reconciler: failed to write aggregate for %s: %v", userID, err)
		observability.RecordReconciliation("failed")
		return nil, false, fmt.Errorf("%w: update aggregate for %s: %v", ErrPersistence, userID, err)
	}

	changed := !sameTotals(*previous, agg)
	if changed {
		observability.RecordReconciliation("changed")
	} else {
		observability.RecordReconciliation("unchanged")
	}

	if r.notifier != nil && previous.CurrentLevel > 0 && agg.CurrentLevel > previous.CurrentLevel {
		if err := r.notifier.NotifyLevelUp(ctx, userID, agg.CurrentLevel); err != nil {
			log.Printf("Reconciler: level-up notification for %s failed: %v", userID, err)
		}
	}

	return &agg, changed, nil
}

// ReconcileFailure is one user the bulk pass could not repair.
type ReconcileFailure struct {
	UserID uuid.UUID `json:"user_id"`
	Error  string    `json:"error"`
}

// ReconcileReport summarises a bulk repair pass.
type ReconcileReport struct {
	Checked   int                `json:"checked"`
	Changed   int                `json:"changed"`
	Unchanged int                `json:"unchanged"`
	Failures  []ReconcileFailure `json:"failures"`
}

// ReconcileAll repairs every user in turn. A failing user is recorded in
// the report and the pass moves on.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	ids, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrUpstreamFetch, err)
	}

	report := &ReconcileReport{Failures: []ReconcileFailure{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		var changed bool
		err := r.withUserLock(id, func() error {
			var err error
			_, changed, err = r.reconcileLocked(ctx, id)
			return err
		})
		if err != nil {
			log.Printf("Reconciler: user %s failed: %v", id, err)
			report.Failures = append(report.Failures, ReconcileFailure{
				UserID: id,
				Error:  fmt.Errorf("%w: %v", ErrReconciliation, err).Error(),
			})
			continue
		}

		if changed {
			report.Changed++
		} else {
			report.Unchanged++
		}
	}

	log.Printf("Reconciler: checked %d users, %d changed, %d failed", report.Checked, report.Changed, len(report.Failures))
	return report, nil
}

// Discrepancy is a stored aggregate that disagrees with its runs.
type Discrepancy struct {
	UserID           uuid.UUID `json:"user_id"`
	StoredXP         int       `json:"stored_xp"`
	ComputedXP       int       `json:"computed_xp"`
	StoredDistance   float64   `json:"stored_distance"`
	ComputedDistance float64   `json:"computed_distance"`
	StoredLevel      int       `json:"stored_level"`
	ComputedLevel    int       `json:"computed_level"`
}

// Audit compares every stored aggregate with a fresh computation and writes nothing.
func (r *Reconciler) Audit(ctx context.Context) ([]Discrepancy, error) {
	ids, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrUpstreamFetch, err)
	}

	found := []Discrepancy{}
	for _, id := range ids {
		d, err := r.AuditUser(ctx, id)
		if err != nil {
			log.Printf("Reconciler: audit of %s skipped: %v", id, err)
			continue
		}
		if d != nil {
			found = append(found, *d)
		}
	}

	observability.RecordDiscrepancies(len(found))
	return found, nil
}

// AuditUser returns nil when the stored totals match the runs.
func (r *Reconciler) AuditUser(ctx context.Context, userID uuid.UUID) (*Discrepancy, error) {
	stored, err := r.store.GetAggregate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load aggregate: %v", ErrUpstreamFetch, err)
	}
	runs, err := r.store.ListRuns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", ErrUpstreamFetch, err)
	}

	computed := r.Compute(userID, runs, r.today())
	if stored.TotalXP == computed.TotalXP &&
		distanceEqual(stored.TotalDistance, computed.TotalDistance) &&
		stored.CurrentLevel == computed.CurrentLevel {
		return nil, nil
	}

	return &Discrepancy{
		UserID:           userID,
		StoredXP:         stored.TotalXP,
		ComputedXP:       computed.TotalXP,
		StoredDistance:   stored.TotalDistance,
		ComputedDistance: computed.TotalDistance,
		StoredLevel:      stored.CurrentLevel,
		ComputedLevel:    computed.CurrentLevel,
	}, nil
}

func sameTotals(a, b user.Aggregate) bool {
	return a.TotalXP == b.TotalXP &&
		distanceEqual(a.TotalDistance, b.TotalDistance) &&
		a.CurrentLevel == b.CurrentLevel &&
		a.CurrentStreak == b.CurrentStreak &&
		a.LongestStreak == b.LongestStreak
}

func roundDistance(km float64) float64 {
	return math.Round(km*1000) / 1000
}

func distanceEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0005
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"runQuestAPI/internal/observability"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/stats"
)

// streakMilestones trigger a push notification when a new run reaches them.
var streakMilestones = map[int]bool{3: true, 7: true, 14: true, 30: true, 50: true, 100: true, 365: true}

// RunService owns the run pipeline: streak day, XP, persist, reconcile.
type RunService struct {
	store      RunStore
	settings   SettingsProvider
	reconciler *Reconciler
	notifier   Notifier
	location   *time.Location
	now        func() time.Time
}

func NewRunService(store RunStore, settings SettingsProvider, reconciler *Reconciler) *RunService {
	s := &RunService{
		store:      store,
		settings:   settings,
		reconciler: reconciler,
		location:   time.UTC,
		now:        time.Now,
	}
	reconciler.SetClock(s.today)
	return s
}

func (s *RunService) SetNotifier(n Notifier) {
	s.notifier = n
	s.reconciler.SetNotifier(n)
}

// SetLocation sets the zone that decides which calendar day is "today".
func (s *RunService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// SetClock is used by tests to pin "now".
func (s *RunService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RunService) today() time.Time {
	return scoring.Day(s.now().In(s.location))
}

// snapshot reads the scoring config and the multiplier table concurrently.
func (s *RunService) snapshot(ctx context.Context) (scoring.Config, scoring.MultiplierTable, error) {
	var cfg scoring.Config
	var table scoring.MultiplierTable

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = s.settings.ScoringConfig(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		table, err = s.settings.StreakMultipliers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrUpstreamFetch) {
			return cfg, table, err
		}
		return cfg, table, fmt.Errorf("%w: settings snapshot: %v", ErrUpstreamFetch, err)
	}
	return cfg, table, nil
}

func (s *RunService) resolveUser(ctx context.Context, clerkID string) (uuid.UUID, error) {
	userID, err := s.store.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("%w: resolve user: %v", ErrUpstreamFetch, err)
	}
	return userID, nil
}

func validateDistance(distance float64) error {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return fmt.Errorf("%w: distance must be a non-negative number of km", scoring.ErrInvalidInput)
	}
	return nil
}

// PreviewRun scores a hypothetical run without persisting anything.
func (s *RunService) PreviewRun(ctx context.Context, clerkID string, req run.PreviewRequest) (*run.PreviewResponse, error) {
	day, err := scoring.ParseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if err := validateDistance(req.Distance); err != nil {
		return nil, err
	}

	userID, err := s.resolveUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	cfg, table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	dates, err := s.store.ListRunDates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: run dates: %v", ErrUpstreamFetch, err)
	}

	streakDay := scoring.StreakDayFor(scoring.UniqueActiveDays(dates), day)
	xp, err := scoring.CalculateCompleteRunXP(req.Distance, streakDay, cfg, table)
	if err != nil {
		return nil, err
	}

	return &run.PreviewResponse{Date: scoring.FormatDay(day), StreakDay: streakDay, XP: xp}, nil
}

// AddRun records a manual run for the Clerk user.
func (s *RunService) AddRun(ctx context.Context, clerkID string, req run.CreateRunRequest) (*run.CreateRunResponse, error) {
	day, err := scoring.ParseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if err := validateDistance(req.Distance); err != nil {
		return nil, err
	}
	if day.After(s.today()) {
		return nil, fmt.Errorf("%w: run date %s is in the future", scoring.ErrInvalidInput, req.Date)
	}
	if req.DurationSeconds != nil && *req.DurationSeconds < 0 {
		return nil, fmt.Errorf("%w: duration must be >= 0", scoring.ErrInvalidInput)
	}
	title := req.Title
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			title = nil
		} else {
			title = &trimmed
		}
	}

	userID, err := s.resolveUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	cfg, table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return s.RecordRun(ctx, &run.Run{
		UserID:          userID,
		Date:            day,
		Distance:        req.Distance,
		DurationSeconds: req.DurationSeconds,
		Title:           title,
		Source:          run.SourceManual,
	}, cfg, table, false)
}

// RecordRun runs the scoring pipeline for one run and persists it. The
// settings snapshot is passed in so a batch scores every item against the
// same configuration. With failFast set a run that would earn no XP is
// rejected before anything is written.
func (s *RunService) RecordRun(ctx context.Context, r *run.Run, cfg scoring.Config, table scoring.MultiplierTable, failFast bool) (*run.CreateRunResponse, error) {
	if err := validateDistance(r.Distance); err != nil {
		return nil, err
	}
	if !r.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown run source %q", scoring.ErrInvalidInput, r.Source)
	}
	r.Date = scoring.Day(r.Date)

	var resp *run.CreateRunResponse
	err := s.reconciler.withUserLock(r.UserID, func() error {
		dates, err := s.store.ListRunDates(ctx, r.UserID)
		if err != nil {
			return fmt.Errorf("%w: run dates: %v", ErrUpstreamFetch, err)
		}

		streakDay := scoring.StreakDayFor(scoring.UniqueActiveDays(dates), r.Date)
		xp, err := scoring.CalculateCompleteRunXP(r.Distance, streakDay, cfg, table)
		if err != nil {
			return err
		}
		if failFast && xp.FinalXP <= 0 {
			return fmt.Errorf("%w: %.2f km on %s", ErrNonPositiveXP, r.Distance, scoring.FormatDay(r.Date))
		}

		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		stampXP(r, xp, streakDay)
		r.CreatedAt = time.Now().UTC()

		inserted, err := s.store.InsertRun(ctx, r)
		if err != nil {
			observability.RecordRun(string(r.Source), "failed", 0)
			log.Printf("RunService: insert failed for user %s: %v", r.UserID, err)
			return fmt.Errorf("%w: insert run: %v", ErrPersistence, err)
		}
		if !inserted {
			observability.RecordRun(string(r.Source), "duplicate", 0)
			resp = &run.CreateRunResponse{Run: r, XP: xp, Duplicate: true}
			return nil
		}
		observability.RecordRun(string(r.Source), "inserted", xp.FinalXP)

		resp = &run.CreateRunResponse{Run: r, XP: xp}
		if _, _, err := s.reconciler.reconcileLocked(ctx, r.UserID); err != nil {
			log.Printf("RunService: run %s saved but totals not refreshed: %v", r.ID, err)
			resp.TotalsStale = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Duplicate && s.notifier != nil && streakMilestones[resp.Run.StreakDay] && resp.Run.Date.Equal(s.today()) {
		if err := s.notifier.NotifyStreakMilestone(ctx, r.UserID, resp.Run.StreakDay); err != nil {
			log.Printf("RunService: streak milestone notification failed: %v", err)
		}
	}
	return resp, nil
}

func stampXP(r *run.Run, xp scoring.XPResult, streakDay int) {
	r.XPGained = xp.FinalXP
	r.BaseXP = xp.BaseXP
	r.KmXP = xp.KmXP
	r.DistanceBonus = xp.DistanceBonus
	r.StreakBonus = xp.StreakBonus
	r.Multiplier = xp.StreakMultiplier
	r.StreakDay = streakDay
}

// ImportOptions tunes ImportActivities.
type ImportOptions struct {
	// FailFast aborts the batch on the first item that scores zero XP or
	// fails to persist.
	FailFast bool
}

// ImportActivities records a batch of external activities oldest first, so
// each run sees the days before it when its streak day is computed. Items are
// reported in that order and are isolated from each other unless
// opts.FailFast is set, in which case the partial result is returned
// alongside the error.
func (s *RunService) ImportActivities(ctx context.Context, userID uuid.UUID, activities []run.ExternalActivity, opts ImportOptions) (*run.ImportResult, error) {
	result := &run.ImportResult{Items: make([]run.ImportItem, 0, len(activities))}
	if len(activities) == 0 {
		return result, nil
	}

	cfg, table, err := s.snapshot(ctx)
	if err != nil {
		return result, err
	}

	ordered := append([]run.ExternalActivity(nil), activities...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	for _, a := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item := run.ImportItem{ExternalID: a.ExternalID}
		if a.ExternalID == "" {
			item.Status = run.ImportSkipped
			item.Error = "missing external id"
			result.Skipped++
			result.Items = append(result.Items, item)
			observability.RecordImport(string(item.Status))
			continue
		}

		externalID := a.ExternalID
		source := a.Source
		if source == "" {
			source = run.SourceStrava
		}
		resp, err := s.RecordRun(ctx, &run.Run{
			UserID:          userID,
			Date:            a.Date,
			Distance:        a.Distance,
			DurationSeconds: a.DurationSeconds,
			Title:           a.Title,
			Source:          source,
			ExternalID:      &externalID,
		}, cfg, table, opts.FailFast)

		switch {
		case err != nil && errors.Is(err, scoring.ErrInvalidInput):
			item.Status = run.ImportSkipped
			item.Error = err.Error()
			result.Skipped++
		case err != nil:
			item.Status = run.ImportFailed
			item.Error = err.Error()
			result.Failed++
		case resp.Duplicate:
			item.Status = run.ImportDuplicate
			result.Duplicates++
		default:
			item.Status = run.ImportImported
			id := resp.Run.ID
			item.RunID = &id
			item.XPGained = resp.Run.XPGained
			result.Imported++
			if resp.TotalsStale {
				result.TotalsStale = true
			}
		}
		result.Items = append(result.Items, item)
		observability.RecordImport(string(item.Status))

		if err != nil && opts.FailFast {
			return result, fmt.Errorf("import aborted at activity %s: %w", a.ExternalID, err)
		}
	}

	log.Printf("RunService: import for %s: %d imported, %d duplicates, %d skipped, %d failed",
		userID, result.Imported, result.Duplicates, result.Skipped, result.Failed)
	return result, nil
}

func (s *RunService) ListRuns(ctx context.Context, clerkID string) ([]run.Run, error) {
	userID, err := s.resolveUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", ErrUpstreamFetch, err)
	}
	return runs, nil
}

// DeleteRun removes one of the caller's runs and refreshes their totals.
// It returns true when the totals could not be refreshed.
func (s *RunService) DeleteRun(ctx context.Context, clerkID string, runID uuid.UUID) (bool, error) {
	userID, err := s.resolveUser(ctx, clerkID)
	if err != nil {
		return false, err
	}

	stale := false
	err = s.reconciler.withUserLock(userID, func() error {
		deleted, err := s.store.DeleteRun(ctx, userID, runID)
		if err != nil {
			return fmt.Errorf("%w: delete run: %v", ErrPersistence, err)
		}
		if !deleted {
			return ErrRunNotFound
		}
		if _, _, err := s.reconciler.reconcileLocked(ctx, userID); err != nil {
			log.Printf("RunService: run %s deleted but totals not refreshed: %v", runID, err)
			stale = true
		}
		return nil
	})
	return stale, err
}

// DeleteRuns is the admin cleanup path: remove every run matching filter.
func (s *RunService) DeleteRuns(ctx context.Context, userID uuid.UUID, req run.DeleteRunsRequest) (*run.DeleteRunsResponse, error) {
	filter := run.DeleteFilter{Source: req.Source}
	if req.Source != nil && !req.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown run source %q", scoring.ErrInvalidInput, *req.Source)
	}
	if req.From != "" {
		from, err := scoring.ParseDay(req.From)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := scoring.ParseDay(req.To)
		if err != nil {
			return nil, err
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from is after to", scoring.ErrInvalidInput)
	}

	if _, err := s.store.GetAggregate(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: aggregate: %v", ErrUpstreamFetch, err)
	}

	resp := &run.DeleteRunsResponse{}
	err := s.reconciler.withUserLock(userID, func() error {
		n, err := s.store.DeleteRuns(ctx, userID, filter)
		if err != nil {
			return fmt.Errorf("%w: delete runs: %v", ErrPersistence, err)
		}
		resp.Deleted = n
		if _, _, err := s.reconciler.reconcileLocked(ctx, userID); err != nil {
			log.Printf("RunService: %d runs deleted for %s but totals not refreshed: %v", n, userID, err)
			resp.TotalsStale = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// StreakSummary reads the user's run dates and summarises their streaks.
func (s *RunService) StreakSummary(ctx context.Context, userID uuid.UUID) (scoring.Summary, error) {
	dates, err := s.store.ListRunDates(ctx, userID)
	if err != nil {
		return scoring.Summary{}, fmt.Errorf("%w: run dates: %v", ErrUpstreamFetch, err)
	}
	return scoring.Summarize(dates, s.today()), nil
}

// GetUserStats combines the stored totals with a fresh streak computation. A
// failed run-date read degrades the streak block instead of failing the call.
func (s *RunService) GetUserStats(ctx context.Context, clerkID string) (*stats.UserStats, error) {
	userID, err := s.resolveUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	agg, err := s.store.GetAggregate(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: aggregate: %v", ErrUpstreamFetch, err)
	}

	out := &stats.UserStats{
		TotalXP:       agg.TotalXP,
		TotalDistance: agg.TotalDistance,
		Level:         s.reconciler.Levels().Progress(agg.TotalXP),
	}

	summary, err := s.StreakSummary(ctx, userID)
	if err != nil {
		log.Printf("RunService: streak stats degraded for %s: %v", userID, err)
		out.Streak = stats.StreakStats{Degraded: true}
		return out, nil
	}

	out.Streak = stats.StreakStats{
		CurrentStreak: &summary.CurrentStreak,
		LongestStreak: &summary.LongestStreak,
		ActiveDays:    &summary.ActiveDays,
	}
	if summary.LastActiveDay != nil {
		last := scoring.FormatDay(*summary.LastActiveDay)
		out.Streak.LastActiveDay = &last
		out.TodayStatus = summary.LastActiveDay.Equal(s.today())
	}
	return out, nil
}

// BackfillXP rescores runs in date order using each run's recomputed streak
// day. Only runs with zero XP are touched unless all is set. Affected users
// are reconciled afterwards.
func (s *RunService) BackfillXP(ctx context.Context, all bool) (*run.BackfillReport, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrUpstreamFetch, err)
	}
	cfg, table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	report := &run.BackfillReport{}
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := s.backfillUser(ctx, userID, cfg, table, all)
		report.RunsUpdated += n
		if err != nil {
			log.Printf("RunService: backfill for %s failed: %v", userID, err)
			report.Failures++
			continue
		}
		report.UsersProcessed++
	}
	return report, nil
}

func (s *RunService) backfillUser(ctx context.Context, userID uuid.UUID, cfg scoring.Config, table scoring.MultiplierTable, all bool) (int, error) {
	updated := 0
	err := s.reconciler.withUserLock(userID, func() error {
		runs, err := s.store.ListRuns(ctx, userID)
		if err != nil {
			return fmt.Errorf("%w: list runs: %v", ErrUpstreamFetch, err)
		}

		dates := make([]time.Time, 0, len(runs))
		for _, r := range runs {
			dates = append(dates, r.Date)
		}
		days := scoring.UniqueActiveDays(dates)

		for i := range runs {
			r := &runs[i]
			if !all && r.XPGained != 0 {
				continue
			}
			streakDay := scoring.StreakDayFor(days, r.Date)
			xp, err := scoring.CalculateCompleteRunXP(r.Distance, streakDay, cfg, table)
			if err != nil {
				log.Printf("RunService: run %s cannot be rescored: %v", r.ID, err)
				continue
			}
			stampXP(r, xp, streakDay)
			if err := s.store.UpdateRunXP(ctx, r); err != nil {
				return fmt.Errorf("%w: update run %s: %v", ErrPersistence, r.ID, err)
			}
			updated++
		}

		if updated == 0 {
			return nil
		}
		_, _, err = s.reconciler.reconcileLocked(ctx, userID)
		return err
	})
	return updated, err
}

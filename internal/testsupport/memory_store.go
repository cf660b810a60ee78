// Package testsupport provides in-memory stand-ins for the PostgreSQL store
// so services and handlers can be tested without a database.
package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"runQuestAPI/internal/leaderboard"
	"runQuestAPI/internal/notification"
	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/strava"
	"runQuestAPI/internal/user"
	"runQuestAPI/services"
)

// ErrInjected is returned by any operation a test arranged to fail.
var ErrInjected = errors.New("injected failure")

// Failures toggles individual store operations into returning ErrInjected.
type Failures struct {
	ListRunDates    bool
	ListRuns        bool
	InsertRun       bool
	GetAggregate    bool
	UpdateAggregate bool
	Settings        bool
	DeleteRun       bool
}

type MemoryStore struct {
	mu sync.Mutex

	Fail Failures

	clerk       map[string]uuid.UUID
	order       []uuid.UUID
	names       map[uuid.UUID]string
	runs        map[uuid.UUID][]run.Run
	aggregates  map[uuid.UUID]user.Aggregate
	config      *scoring.Config
	multipliers scoring.MultiplierTable
	strava      map[uuid.UUID]strava.Connection

	notifications []*notification.Notification
	devices       map[string]notification.DeviceToken

	// InsertCalls counts InsertRun invocations, duplicates included.
	InsertCalls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clerk:      make(map[string]uuid.UUID),
		names:      make(map[uuid.UUID]string),
		runs:       make(map[uuid.UUID][]run.Run),
		aggregates: make(map[uuid.UUID]user.Aggregate),
		strava:     make(map[uuid.UUID]strava.Connection),
		devices:    make(map[string]notification.DeviceToken),
	}
}

// AddUser registers a user with level 1 and empty totals.
func (m *MemoryStore) AddUser(clerkID string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.clerk[clerkID] = id
	m.names[id] = clerkID
	m.order = append(m.order, id)
	m.aggregates[id] = user.Aggregate{UserID: id, CurrentLevel: 1}
	return id
}

// SeedRun stores a run directly, bypassing scoring.
func (m *MemoryStore) SeedRun(userID uuid.UUID, date string, distance float64, xp int) run.Run {
	day, err := scoring.ParseDay(date)
	if err != nil {
		panic(err)
	}
	r := run.Run{
		ID:         uuid.New(),
		UserID:     userID,
		Date:       day,
		Distance:   distance,
		XPGained:   xp,
		Multiplier: 1,
		StreakDay:  1,
		Source:     run.SourceManual,
		CreatedAt:  time.Now().UTC(),
	}
	m.mu.Lock()
	m.runs[userID] = append(m.runs[userID], r)
	m.mu.Unlock()
	return r
}

// SetAggregate overwrites the stored totals, e.g. to simulate drift.
func (m *MemoryStore) SetAggregate(agg user.Aggregate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[agg.UserID] = agg
}

// Aggregate returns the stored totals.
func (m *MemoryStore) Aggregate(userID uuid.UUID) user.Aggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aggregates[userID]
}

// Runs returns a copy of the user's runs.
func (m *MemoryStore) Runs(userID uuid.UUID) []run.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]run.Run(nil), m.runs[userID]...)
}

// Notifications returns everything inserted so far.
func (m *MemoryStore) Notifications() []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*notification.Notification(nil), m.notifications...)
}

func (m *MemoryStore) GetUserIDByClerkID(_ context.Context, clerkID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.clerk[clerkID]
	if !ok {
		return uuid.Nil, services.ErrUserNotFound
	}
	return id, nil
}

func (m *MemoryStore) ListUserIDs(context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.order...), nil
}

func (m *MemoryStore) ListRunDates(_ context.Context, userID uuid.UUID) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.ListRunDates {
		return nil, ErrInjected
	}
	dates := make([]time.Time, 0, len(m.runs[userID]))
	for _, r := range m.runs[userID] {
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, userID uuid.UUID) ([]run.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.ListRuns {
		return nil, ErrInjected
	}
	out := append([]run.Run(nil), m.runs[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) InsertRun(_ context.Context, r *run.Run) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.Fail.InsertRun {
		return false, ErrInjected
	}
	if r.ExternalID != nil {
		for _, existing := range m.runs[r.UserID] {
			if existing.Source == r.Source && existing.ExternalID != nil && *existing.ExternalID == *r.ExternalID {
				return false, nil
			}
		}
	}
	m.runs[r.UserID] = append(m.runs[r.UserID], *r)
	return true, nil
}

func (m *MemoryStore) UpdateRunXP(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := m.runs[r.UserID]
	for i := range runs {
		if runs[i].ID == r.ID {
			runs[i].XPGained = r.XPGained
			runs[i].BaseXP = r.BaseXP
			runs[i].KmXP = r.KmXP
			runs[i].DistanceBonus = r.DistanceBonus
			runs[i].StreakBonus = r.StreakBonus
			runs[i].Multiplier = r.Multiplier
			runs[i].StreakDay = r.StreakDay
			return nil
		}
	}
	return services.ErrRunNotFound
}

func (m *MemoryStore) DeleteRun(_ context.Context, userID, runID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.DeleteRun {
		return false, ErrInjected
	}
	runs := m.runs[userID]
	for i := range runs {
		if runs[i].ID == runID {
			m.runs[userID] = append(runs[:i:i], runs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteRuns(_ context.Context, userID uuid.UUID, filter run.DeleteFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []run.Run
	var n int64
	for _, r := range m.runs[userID] {
		match := (filter.Source == nil || r.Source == *filter.Source) &&
			(filter.From == nil || !r.Date.Before(*filter.From)) &&
			(filter.To == nil || !r.Date.After(*filter.To))
		if match {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.runs[userID] = kept
	return n, nil
}

func (m *MemoryStore) GetAggregate(_ context.Context, userID uuid.UUID) (*user.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.GetAggregate {
		return nil, ErrInjected
	}
	agg, ok := m.aggregates[userID]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return &agg, nil
}

func (m *MemoryStore) UpdateAggregate(_ context.Context, agg *user.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.UpdateAggregate {
		return ErrInjected
	}
	if _, ok := m.aggregates[agg.UserID]; !ok {
		return services.ErrUserNotFound
	}
	m.aggregates[agg.UserID] = *agg
	return nil
}

func (m *MemoryStore) GetScoringConfig(context.Context) (scoring.Config, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.Settings {
		return scoring.Config{}, false, ErrInjected
	}
	if m.config == nil {
		return scoring.Config{}, false, nil
	}
	return *m.config, true, nil
}

func (m *MemoryStore) SaveScoringConfig(_ context.Context, cfg scoring.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.Settings {
		return ErrInjected
	}
	m.config = &cfg
	return nil
}

func (m *MemoryStore) ListStreakMultipliers(context.Context) (scoring.MultiplierTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.Settings {
		return nil, ErrInjected
	}
	return append(scoring.MultiplierTable(nil), m.multipliers...), nil
}

func (m *MemoryStore) ReplaceStreakMultipliers(_ context.Context, table scoring.MultiplierTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail.Settings {
		return ErrInjected
	}
	m.multipliers = append(scoring.MultiplierTable(nil), table...)
	return nil
}

func (m *MemoryStore) GetStravaConnection(_ context.Context, userID uuid.UUID) (*strava.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.strava[userID]
	if !ok {
		return nil, services.ErrStravaNotConnected
	}
	return &c, nil
}

func (m *MemoryStore) SaveStravaConnection(_ context.Context, c *strava.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strava[c.UserID] = *c
	return nil
}

func (m *MemoryStore) ListStravaConnections(context.Context) ([]strava.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]strava.Connection, 0, len(m.strava))
	for _, id := range m.order {
		if c, ok := m.strava[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertNotification(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []*notification.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		mine = append(mine, n)
	}
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, userID, notificationID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == notificationID && n.UserID == userID {
			if n.ReadAt == nil {
				now := time.Now().UTC()
				n.ReadAt = &now
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, notif := range m.notifications {
		if notif.UserID == userID && notif.ReadAt == nil {
			notif.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpsertDeviceToken(_ context.Context, t notification.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[t.Token] = t
	return nil
}

func (m *MemoryStore) ListDeviceTokens(_ context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.DeviceToken
	for _, t := range m.devices {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// TopEntries ranks users with at least one run on the board's aggregate field.
func (m *MemoryStore) TopEntries(_ context.Context, title leaderboard.Title, asOf time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.rankedLocked(title, asOf)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MemoryStore) EntryFor(_ context.Context, title leaderboard.Title, userID uuid.UUID, asOf time.Time) (*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rankedLocked(title, asOf) {
		if e.UserID == userID {
			return e, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) CountRankedUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range m.order {
		if len(m.runs[id]) > 0 {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) rankedLocked(title leaderboard.Title, asOf time.Time) []*leaderboard.LeaderboardEntry {
	var entries []*leaderboard.LeaderboardEntry
	for _, id := range m.order {
		if len(m.runs[id]) == 0 {
			continue
		}
		agg := m.aggregates[id]
		var v float64
		switch title {
		case leaderboard.TitleDistanceKing:
			v = agg.TotalDistance
		case leaderboard.TitleXPChampion:
			v = float64(agg.TotalXP)
		case leaderboard.TitleStreakMaster:
			v = float64(scoring.LiveStreak(agg.CurrentStreak, lastRunDate(m.runs[id]), asOf))
		case leaderboard.TitleIronLegs:
			v = float64(agg.LongestStreak)
		}
		entries = append(entries, &leaderboard.LeaderboardEntry{UserID: id, Username: m.names[id], Value: v, Level: agg.CurrentLevel})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
	for i, e := range entries {
		e.Rank = i + 1
		if i > 0 && e.Value == entries[i-1].Value {
			e.Rank = entries[i-1].Rank
		}
	}
	return entries
}

func lastRunDate(runs []run.Run) time.Time {
	var last time.Time
	for _, r := range runs {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last
}

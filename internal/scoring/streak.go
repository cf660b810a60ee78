// Package scoring holds the pure streak, XP and leveling rules.
// Nothing in here touches the database; callers pass in snapshots.
package scoring

import (
	"fmt"
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Day truncates t to its calendar day (UTC midnight). The calendar date is
// taken from t's own location so a 23:30 local run stays on its local day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// FormatDay renders a calendar day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format(dayLayout)
}

func isNextDay(prev, next time.Time) bool {
	return prev.AddDate(0, 0, 1).Equal(next)
}

// UniqueActiveDays collapses run dates into sorted, distinct calendar days.
func UniqueActiveDays(runDates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(runDates))
	days := make([]time.Time, 0, len(runDates))
	for _, rd := range runDates {
		d := Day(rd)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// LongestStreak returns the longest run of consecutive days in sortedDays.
func LongestStreak(sortedDays []time.Time) int {
	if len(sortedDays) == 0 {
		return 0
	}

	longest, current := 1, 1
	for i := 1; i < len(sortedDays); i++ {
		if isNextDay(sortedDays[i-1], sortedDays[i]) {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

// CurrentStreak counts consecutive days ending at the last active day, but
// only while that day is evaluationDay or the day before it.
func CurrentStreak(sortedDays []time.Time, evaluationDay time.Time) int {
	if len(sortedDays) == 0 {
		return 0
	}

	today := Day(evaluationDay)
	last := sortedDays[len(sortedDays)-1]
	if !last.Equal(today) && !last.Equal(today.AddDate(0, 0, -1)) {
		return 0
	}

	streak := 1
	for i := len(sortedDays) - 1; i > 0; i-- {
		if !isNextDay(sortedDays[i-1], sortedDays[i]) {
			break
		}
		streak++
	}
	return streak
}

// LiveStreak reads a cached current streak as of evaluationDay. The cache is
// only refreshed when runs change, so it lapses to zero once the last active
// day falls before yesterday.
func LiveStreak(cached int, lastActiveDay, evaluationDay time.Time) int {
	if Day(lastActiveDay).Before(Day(evaluationDay).AddDate(0, 0, -1)) {
		return 0
	}
	return cached
}

// StreakDayFor returns the streak day a run on targetDay would carry. The
// target does not need to be in sortedDays; only its unbroken chain of
// predecessors counts, so later days never influence the result.
func StreakDayFor(sortedDays []time.Time, targetDay time.Time) int {
	target := Day(targetDay)

	// index of the first day >= target
	idx := sort.Search(len(sortedDays), func(i int) bool {
		return !sortedDays[i].Before(target)
	})

	streakDay := 1
	expected := target.AddDate(0, 0, -1)
	for i := idx - 1; i >= 0; i-- {
		if !sortedDays[i].Equal(expected) {
			break
		}
		streakDay++
		expected = expected.AddDate(0, 0, -1)
	}
	return streakDay
}

// Summary is the streak view of one user's run history.
type Summary struct {
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	ActiveDays    int        `json:"active_days"`
	LastActiveDay *time.Time `json:"last_active_day,omitempty"`
}

// Summarize computes current and longest streaks for raw run dates.
func Summarize(runDates []time.Time, evaluationDay time.Time) Summary {
	days := UniqueActiveDays(runDates)
	s := Summary{
		CurrentStreak: CurrentStreak(days, evaluationDay),
		LongestStreak: LongestStreak(days),
		ActiveDays:    len(days),
	}
	if len(days) > 0 {
		last := days[len(days)-1]
		s.LastActiveDay = &last
	}
	return s
}

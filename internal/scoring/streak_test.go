package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDays(t *testing.T, dates ...string) []time.Time {
	t.Helper()
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day, err := ParseDay(d)
		require.NoError(t, err)
		out = append(out, day)
	}
	return out
}

func TestUniqueActiveDaysCollapsesAndSorts(t *testing.T) {
	morning := time.Date(2025, 9, 29, 6, 30, 0, 0, time.UTC)
	evening := time.Date(2025, 9, 29, 19, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 9, 27, 12, 0, 0, 0, time.UTC)

	days := UniqueActiveDays([]time.Time{evening, earlier, morning})

	require.Len(t, days, 2)
	assert.Equal(t, "2025-09-27", FormatDay(days[0]))
	assert.Equal(t, "2025-09-29", FormatDay(days[1]))
}

func TestLongestStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"single day", []string{"2025-09-01"}, 1},
		{"three in a row", []string{"2025-09-01", "2025-09-02", "2025-09-03"}, 3},
		{"gap resets", []string{"2025-09-01", "2025-09-02", "2025-09-04", "2025-09-05", "2025-09-06"}, 3},
		{"month boundary", []string{"2025-08-30", "2025-08-31", "2025-09-01"}, 3},
		{"leap day", []string{"2024-02-28", "2024-02-29", "2024-03-01"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestStreak(UniqueActiveDays(mustDays(t, tt.dates...))))
		})
	}
}

func TestCurrentStreakThreeConsecutiveDays(t *testing.T) {
	days := UniqueActiveDays(mustDays(t, "2025-09-28", "2025-09-29", "2025-09-30"))
	eval := mustDays(t, "2025-09-30")[0]

	assert.Equal(t, 3, CurrentStreak(days, eval))
	assert.Equal(t, 3, LongestStreak(days))
}

func TestCurrentStreakZeroAfterTwoDayGap(t *testing.T) {
	days := UniqueActiveDays(mustDays(t, "2025-09-20", "2025-09-28"))
	eval := mustDays(t, "2025-09-30")[0]

	assert.Equal(t, 0, CurrentStreak(days, eval))
	assert.Equal(t, 1, LongestStreak(days))
}

func TestLiveStreakLapsesAfterYesterday(t *testing.T) {
	last := mustDays(t, "2025-09-30")[0]

	tests := []struct {
		eval string
		want int
	}{
		{"2025-09-30", 3},
		{"2025-10-01", 3},
		{"2025-10-02", 0},
		{"2025-10-15", 0},
	}
	for _, tt := range tests {
		t.Run(tt.eval, func(t *testing.T) {
			assert.Equal(t, tt.want, LiveStreak(3, last, mustDays(t, tt.eval)[0]))
		})
	}
}

func TestCurrentStreakAllowsYesterday(t *testing.T) {
	days := UniqueActiveDays(mustDays(t, "2025-09-27", "2025-09-28", "2025-09-29"))
	eval := mustDays(t, "2025-09-30")[0]

	assert.Equal(t, 3, CurrentStreak(days, eval))
}

func TestCurrentStreakZeroWhenStale(t *testing.T) {
	base := mustDays(t, "2025-09-01")[0]
	var dates []time.Time
	for i := 0; i < 10; i++ {
		dates = append(dates, base.AddDate(0, 0, i))
	}
	days := UniqueActiveDays(dates)
	last := days[len(days)-1]

	for gap := 2; gap < 6; gap++ {
		assert.Equal(t, 0, CurrentStreak(days, last.AddDate(0, 0, gap)), "gap %d", gap)
	}
}

func TestStreakDayFor(t *testing.T) {
	days := UniqueActiveDays(mustDays(t, "2025-09-01", "2025-09-02", "2025-09-03", "2025-09-10"))

	tests := []struct {
		target string
		want   int
	}{
		{"2025-09-01", 1},
		{"2025-09-03", 3},
		{"2025-09-04", 4},
		{"2025-09-05", 1},
		{"2025-09-11", 2},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, StreakDayFor(days, mustDays(t, tt.target)[0]))
		})
	}
}

func TestStreakDayForRetroactiveInsertStopsAtGap(t *testing.T) {
	// 5th..6th then a missed 7th, then 8th..9th
	days := UniqueActiveDays(mustDays(t, "2025-09-01", "2025-09-05", "2025-09-06", "2025-09-08", "2025-09-09"))

	// backfilling the 7th only looks at the 6th, 5th chain and stops at the gap before it
	assert.Equal(t, 3, StreakDayFor(days, mustDays(t, "2025-09-07")[0]))

	// later days are not part of the count
	assert.Equal(t, 2, StreakDayFor(days, mustDays(t, "2025-09-09")[0]))
}

func TestDuplicateDayInvariance(t *testing.T) {
	eval := mustDays(t, "2025-09-30")[0]
	base := []time.Time{
		time.Date(2025, 9, 28, 7, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 29, 7, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 30, 7, 0, 0, 0, time.UTC),
	}
	before := Summarize(base, eval)

	withDup := append(append([]time.Time{}, base...), time.Date(2025, 9, 29, 20, 0, 0, 0, time.UTC))
	after := Summarize(withDup, eval)

	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)
	assert.Equal(t, before.LongestStreak, after.LongestStreak)
	assert.Equal(t, before.ActiveDays, after.ActiveDays)
}

func TestLongestStreakNeverBelowCurrent(t *testing.T) {
	start := mustDays(t, "2025-01-01")[0]
	// deterministic pseudo random day pattern
	pattern := []int{0, 1, 2, 5, 6, 7, 8, 12, 13, 20, 21, 22, 23, 24, 30, 31}
	for n := 1; n <= len(pattern); n++ {
		var dates []time.Time
		for _, off := range pattern[:n] {
			dates = append(dates, start.AddDate(0, 0, off))
		}
		days := UniqueActiveDays(dates)
		last := days[len(days)-1]
		for _, eval := range []time.Time{last, last.AddDate(0, 0, 1), last.AddDate(0, 0, 5)} {
			assert.GreaterOrEqual(t, LongestStreak(days), CurrentStreak(days, eval))
		}
	}
}

func TestParseDayRejectsMalformed(t *testing.T) {
	_, err := ParseDay("30/09/2025")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())
	assert.Zero(t, s.CurrentStreak)
	assert.Zero(t, s.LongestStreak)
	assert.Nil(t, s.LastActiveDay)
}

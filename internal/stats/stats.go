package stats

import "runQuestAPI/internal/scoring"

// StreakStats is nil-valued when the run history could not be read, in which
// case Degraded is set instead of reporting a misleading zero.
type StreakStats struct {
	Degraded      bool    `json:"degraded"`
	CurrentStreak *int    `json:"current_streak,omitempty"`
	LongestStreak *int    `json:"longest_streak,omitempty"`
	ActiveDays    *int    `json:"active_days,omitempty"`
	LastActiveDay *string `json:"last_active_day,omitempty"` // YYYY-MM-DD
}

type UserStats struct {
	TotalXP       int                   `json:"total_xp"`
	TotalDistance float64               `json:"total_distance"`
	Level         scoring.LevelProgress `json:"level"`
	Streak        StreakStats           `json:"streak"`
	// TodayStatus is true when a run is already logged for today.
	TodayStatus bool `json:"today_status"`
}

package leaderboard

import "github.com/google/uuid"

// Title names a leaderboard; rank 1 on it holds the title.
type Title string

const (
	TitleDistanceKing Title = "distance_king"
	TitleXPChampion   Title = "xp_champion"
	TitleStreakMaster Title = "streak_master"
	TitleIronLegs     Title = "iron_legs"
)

// Titles lists every leaderboard in display order.
var Titles = []Title{TitleXPChampion, TitleDistanceKing, TitleStreakMaster, TitleIronLegs}

// Column returns the users column ranked by t.
func (t Title) Column() (string, bool) {
	switch t {
	case TitleDistanceKing:
		return "total_distance", true
	case TitleXPChampion:
		return "total_xp", true
	case TitleStreakMaster:
		return "current_streak", true
	case TitleIronLegs:
		return "longest_streak", true
	}
	return "", false
}

type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Username string    `json:"username" db:"username"`
	ImageURL *string   `json:"image_url" db:"image_url"`
	Value    float64   `json:"value" db:"value"`
	Level    int       `json:"level" db:"current_level"`
	Rank     int       `json:"rank" db:"rank"`
}

type Leaderboard struct {
	Title        Title               `json:"title"`
	Holder       *LeaderboardEntry   `json:"holder"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}

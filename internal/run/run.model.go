package run

import (
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceManual Source = "manual"
	SourceStrava Source = "strava"
)

func (s Source) Valid() bool {
	return s == SourceManual || s == SourceStrava
}

// Run is one logged session. The XP columns are stamped at creation time and
// only rewritten by the XP backfill.
type Run struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Date            time.Time `json:"date"`
	Distance        float64   `json:"distance"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Title           *string   `json:"title,omitempty"`
	XPGained        int       `json:"xp_gained"`
	BaseXP          int       `json:"base_xp"`
	KmXP            int       `json:"km_xp"`
	DistanceBonus   int       `json:"distance_bonus"`
	StreakBonus     int       `json:"streak_bonus"`
	Multiplier      float64   `json:"multiplier"`
	StreakDay       int       `json:"streak_day"`
	Source          Source    `json:"source"`
	ExternalID      *string   `json:"external_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// DeleteFilter selects runs for bulk cleanup. Zero fields match everything.
type DeleteFilter struct {
	Source *Source
	From   *time.Time
	To     *time.Time
}

// ExternalActivity is a run pulled from a third-party feed, already converted
// to kilometres and a calendar day.
type ExternalActivity struct {
	Source          Source
	ExternalID      string
	Date            time.Time
	Distance        float64
	DurationSeconds *int
	Title           *string
}

package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	ClerkID       string    `json:"clerkId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Aggregate
}

// Aggregate is the denormalised totals block on the users row. It is a cache
// of the runs table and only the reconciler writes it.
type Aggregate struct {
	UserID        uuid.UUID `json:"-"`
	TotalXP       int       `json:"total_xp"`
	TotalDistance float64   `json:"total_distance"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	CurrentLevel  int       `json:"current_level"`
	UpdatedAt     time.Time `json:"aggregate_updated_at"`
}

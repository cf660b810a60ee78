package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationLevelUp         NotificationType = "level_up"
	NotificationStreakMilestone NotificationType = "streak_milestone"
	NotificationImportComplete  NotificationType = "import_complete"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	Data      map[string]any   `json:"data" db:"data"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

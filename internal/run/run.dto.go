package run

import (
	"github.com/google/uuid"

	"runQuestAPI/internal/scoring"
)

type CreateRunRequest struct {
	Date            string  `json:"date" validate:"required"` // YYYY-MM-DD
	Distance        float64 `json:"distance" validate:"required"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Title           *string `json:"title,omitempty"`
}

type PreviewRequest struct {
	Date     string  `json:"date"`
	Distance float64 `json:"distance"`
}

type PreviewResponse struct {
	Date      string           `json:"date"`
	StreakDay int              `json:"streak_day"`
	XP        scoring.XPResult `json:"xp"`
}

type CreateRunResponse struct {
	Run         *Run             `json:"run"`
	XP          scoring.XPResult `json:"xp"`
	Duplicate   bool             `json:"duplicate"`
	TotalsStale bool             `json:"totals_stale,omitempty"`
}

type ImportStatus string

const (
	ImportImported  ImportStatus = "imported"
	ImportDuplicate ImportStatus = "duplicate"
	ImportSkipped   ImportStatus = "skipped"
	ImportFailed    ImportStatus = "failed"
)

type ImportItem struct {
	ExternalID string       `json:"external_id"`
	Status     ImportStatus `json:"status"`
	RunID      *uuid.UUID   `json:"run_id,omitempty"`
	XPGained   int          `json:"xp_gained,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type ImportResult struct {
	Imported    int          `json:"imported"`
	Duplicates  int          `json:"duplicates"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	TotalsStale bool         `json:"totals_stale,omitempty"`
	Items       []ImportItem `json:"items"`
}

type DeleteRunsRequest struct {
	Source *Source `json:"source,omitempty"`
	From   string  `json:"from,omitempty"`
	To     string  `json:"to,omitempty"`
}

type DeleteRunsResponse struct {
	Deleted     int64 `json:"deleted"`
	TotalsStale bool  `json:"totals_stale,omitempty"`
}

type BackfillReport struct {
	UsersProcessed int `json:"users_processed"`
	RunsUpdated    int `json:"runs_updated"`
	Failures       int `json:"failures"`
}

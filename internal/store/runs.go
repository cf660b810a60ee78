package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"runQuestAPI/internal/run"
)

const runColumns = `id, user_id, run_date, distance, duration_seconds, title, xp_gained, base_xp, km_xp,
	distance_bonus, streak_bonus, multiplier, streak_day, source, external_id, created_at`

func scanRun(row pgx.CollectableRow) (run.Run, error) {
	var r run.Run
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Date,
		&r.Distance,
		&r.DurationSeconds,
		&r.Title,
		&r.XPGained,
		&r.BaseXP,
		&r.KmXP,
		&r.DistanceBonus,
		&r.StreakBonus,
		&r.Multiplier,
		&r.StreakDay,
		&r.Source,
		&r.ExternalID,
		&r.CreatedAt,
	)
	return r, err
}

// ListRunDates returns one entry per run, ascending.
func (s *Store) ListRunDates(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_date FROM runs WHERE user_id = $1 ORDER BY run_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to scan run dates: %w", err)
	}
	return dates, nil
}

func (s *Store) ListRuns(ctx context.Context, userID uuid.UUID) ([]run.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE user_id = $1 ORDER BY run_date, created_at`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}
	return runs, nil
}

// InsertRun writes the run and its XP fields in one statement. A clash on
// (user_id, source, external_id) is reported as inserted=false.
func (s *Store) InsertRun(ctx context.Context, r *run.Run) (bool, error) {
	query := `
	INSERT INTO runs (id, user_id, run_date, distance, duration_seconds, title, xp_gained, base_xp, km_xp,
		distance_bonus, streak_bonus, multiplier, streak_day, source, external_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (user_id, source, external_id) WHERE external_id IS NOT NULL DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		r.ID,
		r.UserID,
		r.Date,
		r.Distance,
		r.DurationSeconds,
		r.Title,
		r.XPGained,
		r.BaseXP,
		r.KmXP,
		r.DistanceBonus,
		r.StreakBonus,
		r.Multiplier,
		r.StreakDay,
		r.Source,
		r.ExternalID,
		r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateRunXP(ctx context.Context, r *run.Run) error {
	query := `
	UPDATE runs
	SET xp_gained = $3, base_xp = $4, km_xp = $5, distance_bonus = $6,
		streak_bonus = $7, multiplier = $8, streak_day = $9
	WHERE id = $1 AND user_id = $2
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.UserID,
		r.XPGained,
		r.BaseXP,
		r.KmXP,
		r.DistanceBonus,
		r.StreakBonus,
		r.Multiplier,
		r.StreakDay,
	)
	if err != nil {
		return fmt.Errorf("failed to update run xp: %w", err)
	}
	return nil
}

func (s *Store) DeleteRun(ctx context.Context, userID, runID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1 AND user_id = $2`, runID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteRuns(ctx context.Context, userID uuid.UUID, filter run.DeleteFilter) (int64, error) {
	query := `
	DELETE FROM runs
	WHERE user_id = $1
		AND ($2::text IS NULL OR source = $2)
		AND ($3::date IS NULL OR run_date >= $3)
		AND ($4::date IS NULL OR run_date <= $4)
	`

	var source *string
	if filter.Source != nil {
		v := string(*filter.Source)
		source = &v
	}

	tag, err := s.pool.Exec(ctx, query, userID, source, filter.From, filter.To)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"runQuestAPI/internal/scoring"
)

func (s *Store) GetScoringConfig(ctx context.Context) (scoring.Config, bool, error) {
	query := `
	SELECT base_xp, xp_per_km, bonus_5km, bonus_10km, bonus_15km, bonus_20km, min_run_distance
	FROM scoring_settings
	WHERE id = 1
	`

	var cfg scoring.Config
	err := s.pool.QueryRow(ctx, query).Scan(
		&cfg.BaseXP,
		&cfg.XPPerKm,
		&cfg.Bonus5Km,
		&cfg.Bonus10Km,
		&cfg.Bonus15Km,
		&cfg.Bonus20Km,
		&cfg.MinRunDistance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scoring.Config{}, false, nil
		}
		return scoring.Config{}, false, fmt.Errorf("failed to get scoring settings: %w", err)
	}
	return cfg, true, nil
}

func (s *Store) SaveScoringConfig(ctx context.Context, cfg scoring.Config) error {
	query := `
	INSERT INTO scoring_settings (id, base_xp, xp_per_km, bonus_5km, bonus_10km, bonus_15km, bonus_20km, min_run_distance, updated_at)
	VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (id) DO UPDATE SET
		base_xp = EXCLUDED.base_xp,
		xp_per_km = EXCLUDED.xp_per_km,
		bonus_5km = EXCLUDED.bonus_5km,
		bonus_10km = EXCLUDED.bonus_10km,
		bonus_15km = EXCLUDED.bonus_15km,
		bonus_20km = EXCLUDED.bonus_20km,
		min_run_distance = EXCLUDED.min_run_distance,
		updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		cfg.BaseXP,
		cfg.XPPerKm,
		cfg.Bonus5Km,
		cfg.Bonus10Km,
		cfg.Bonus15Km,
		cfg.Bonus20Km,
		cfg.MinRunDistance,
	)
	if err != nil {
		return fmt.Errorf("failed to save scoring settings: %w", err)
	}
	return nil
}

func (s *Store) ListStreakMultipliers(ctx context.Context) (scoring.MultiplierTable, error) {
	rows, err := s.pool.Query(ctx, `SELECT days_threshold, multiplier FROM streak_multipliers ORDER BY days_threshold`)
	if err != nil {
		return nil, fmt.Errorf("failed to query streak multipliers: %w", err)
	}
	table, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (scoring.StreakMultiplier, error) {
		var m scoring.StreakMultiplier
		err := row.Scan(&m.Days, &m.Multiplier)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan streak multipliers: %w", err)
	}
	return table, nil
}

// ReplaceStreakMultipliers swaps the whole table in one transaction.
func (s *Store) ReplaceStreakMultipliers(ctx context.Context, table scoring.MultiplierTable) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM streak_multipliers`); err != nil {
		return fmt.Errorf("failed to clear streak multipliers: %w", err)
	}

	batch := &pgx.Batch{}
	for _, m := range table {
		batch.Queue(`INSERT INTO streak_multipliers (days_threshold, multiplier) VALUES ($1, $2)`, m.Days, m.Multiplier)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert streak multipliers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit streak multipliers: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"runQuestAPI/internal/strava"
	"runQuestAPI/services"
)

const stravaColumns = `user_id, athlete_id, access_token, refresh_token, token_expiry, last_synced_at, created_at`

func scanConnection(row pgx.CollectableRow) (strava.Connection, error) {
	var c strava.Connection
	err := row.Scan(
		&c.UserID,
		&c.AthleteID,
		&c.AccessToken,
		&c.RefreshToken,
		&c.TokenExpiry,
		&c.LastSyncedAt,
		&c.CreatedAt,
	)
	return c, err
}

func (s *Store) GetStravaConnection(ctx context.Context, userID uuid.UUID) (*strava.Connection, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stravaColumns+` FROM strava_connections WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strava connection: %w", err)
	}
	conn, err := pgx.CollectExactlyOneRow(rows, scanConnection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrStravaNotConnected
		}
		return nil, fmt.Errorf("failed to scan strava connection: %w", err)
	}
	return &conn, nil
}

func (s *Store) SaveStravaConnection(ctx context.Context, c *strava.Connection) error {
	query := `
	INSERT INTO strava_connections (user_id, athlete_id, access_token, refresh_token, token_expiry, last_synced_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		athlete_id = EXCLUDED.athlete_id,
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		token_expiry = EXCLUDED.token_expiry,
		last_synced_at = EXCLUDED.last_synced_at
	`

	_, err := s.pool.Exec(ctx, query,
		c.UserID,
		c.AthleteID,
		c.AccessToken,
		c.RefreshToken,
		c.TokenExpiry,
		c.LastSyncedAt,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save strava connection: %w", err)
	}
	return nil
}

func (s *Store) ListStravaConnections(ctx context.Context) ([]strava.Connection, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stravaColumns+` FROM strava_connections ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strava connections: %w", err)
	}
	conns, err := pgx.CollectRows(rows, scanConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to scan strava connections: %w", err)
	}
	return conns, nil
}

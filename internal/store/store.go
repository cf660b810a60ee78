// Package store is the PostgreSQL persistence layer. Every method maps a
// missing row onto the services sentinels so callers can use errors.Is.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"runQuestAPI/internal/user"
	"runQuestAPI/services"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool with the same limits the API server uses.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Println("Store: schema applied")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) GetUserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, services.ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get user id: %w", err)
	}
	return userID, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user ids: %w", err)
	}
	return ids, nil
}

func (s *Store) GetAggregate(ctx context.Context, userID uuid.UUID) (*user.Aggregate, error) {
	query := `
	SELECT total_xp, total_distance, current_streak, longest_streak, current_level, aggregate_updated_at
	FROM users
	WHERE id = $1
	`

	agg := &user.Aggregate{UserID: userID}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&agg.TotalXP,
		&agg.TotalDistance,
		&agg.CurrentStreak,
		&agg.LongestStreak,
		&agg.CurrentLevel,
		&agg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

func (s *Store) UpdateAggregate(ctx context.Context, agg *user.Aggregate) error {
	query := `
	UPDATE users
	SET total_xp = $2,
		total_distance = $3,
		current_streak = $4,
		longest_streak = $5,
		current_level = $6,
		aggregate_updated_at = $7
	WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		agg.UserID,
		agg.TotalXP,
		agg.TotalDistance,
		agg.CurrentStreak,
		agg.LongestStreak,
		agg.CurrentLevel,
		agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrUserNotFound
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/user"
)

const userColumns = `id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at,
	total_xp, total_distance, current_streak, longest_streak, current_level, aggregate_updated_at,
	(SELECT MAX(run_date) FROM runs WHERE runs.user_id = users.id)`

type UserService struct {
	db       *pgxpool.Pool
	location *time.Location
	now      func() time.Time
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db, location: time.UTC, now: time.Now}
}

// SetLocation sets the zone that decides whether a streak is still live.
func (s *UserService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// SetClock is used by tests to pin "now".
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// scanUser reads a userColumns row. The cached current streak is reported as
// of today so a profile never shows a streak that has already lapsed.
func (s *UserService) scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var lastRun *time.Time
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.TotalXP,
		&u.TotalDistance,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.CurrentLevel,
		&u.Aggregate.UpdatedAt,
		&lastRun,
	)
	if err != nil {
		return nil, err
	}
	u.Aggregate.UserID = u.ID
	if lastRun == nil {
		u.CurrentStreak = 0
	} else {
		u.CurrentStreak = scoring.LiveStreak(u.CurrentStreak, *lastRun, s.now().In(s.location))
	}
	return u, nil
}

// CreateUser inserts the user or, when Clerk replays the webhook, refreshes
// the profile fields of the existing row.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT (clerk_id) DO UPDATE SET
		email = EXCLUDED.email,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		image_url = EXCLUDED.image_url,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns

	u, err := s.scanUser(s.db.QueryRow(
		ctx,
		query,
		uuid.New(),
		req.ClerkID,
		req.Email,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`

	u, err := s.scanUser(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	u, err := s.scanUser(s.db.QueryRow(
		ctx,
		query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

// DeleteUserByClerkID removes the user; runs and connections cascade.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	log.Printf("UserService: deleted user with clerk id %s", clerkID)
	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	query := `
	UPDATE users
	SET email_verified = $2, updated_at = NOW()
	WHERE clerk_id = $1
	`

	_, err := s.db.Exec(ctx, query, clerkID, verified)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

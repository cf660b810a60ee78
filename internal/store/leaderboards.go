package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"runQuestAPI/internal/leaderboard"
	"runQuestAPI/internal/scoring"
)

// rankedQuery ranks every user with at least one run on the title's column.
// The column name comes from leaderboard.Title.Column, never from input. The
// cached current streak only counts while the last run is no older than the
// day before asOf, which the streak board passes as $1.
func rankedQuery(title leaderboard.Title, asOf time.Time) (string, []any, error) {
	column, ok := title.Column()
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown leaderboard %q", scoring.ErrInvalidInput, title)
	}

	value := "u." + column
	var args []any
	if title == leaderboard.TitleStreakMaster {
		value = "CASE WHEN latest.run_date >= $1::date - 1 THEN u.current_streak ELSE 0 END"
		args = append(args, scoring.Day(asOf))
	}

	query := fmt.Sprintf(`
	SELECT u.id, u.username, NULLIF(u.image_url, ''), (%[1]s)::float8, u.current_level,
		RANK() OVER (ORDER BY %[1]s DESC)::int
	FROM users u
	JOIN LATERAL (SELECT MAX(run_date) AS run_date FROM runs WHERE runs.user_id = u.id) latest ON true
	WHERE latest.run_date IS NOT NULL
	`, value)
	return query, args, nil
}

func scanEntry(row pgx.CollectableRow) (*leaderboard.LeaderboardEntry, error) {
	e := &leaderboard.LeaderboardEntry{}
	err := row.Scan(&e.UserID, &e.Username, &e.ImageURL, &e.Value, &e.Level, &e.Rank)
	return e, err
}

func (s *Store) TopEntries(ctx context.Context, title leaderboard.Title, asOf time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	ranked, args, err := rankedQuery(title, asOf)
	if err != nil {
		return nil, err
	}

	args = append(args, limit)
	query := `SELECT * FROM (` + ranked + `) ranked ORDER BY 6, 2 LIMIT $` + strconv.Itoa(len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	return entries, nil
}

// EntryFor returns nil when the user has no runs yet.
func (s *Store) EntryFor(ctx context.Context, title leaderboard.Title, userID uuid.UUID, asOf time.Time) (*leaderboard.LeaderboardEntry, error) {
	ranked, args, err := rankedQuery(title, asOf)
	if err != nil {
		return nil, err
	}

	args = append(args, userID)
	query := `SELECT * FROM (` + ranked + `) ranked WHERE id = $` + strconv.Itoa(len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard position: %w", err)
	}
	entry, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan leaderboard position: %w", err)
	}
	return entry, nil
}

func (s *Store) CountRankedUsers(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM runs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ranked users: %w", err)
	}
	return count, nil
}

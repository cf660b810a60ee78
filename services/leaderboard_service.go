package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"runQuestAPI/internal/leaderboard"
	"runQuestAPI/internal/scoring"
)

const leaderboardSize = 50

type LeaderboardStore interface {
	TopEntries(ctx context.Context, title leaderboard.Title, asOf time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error)
	EntryFor(ctx context.Context, title leaderboard.Title, userID uuid.UUID, asOf time.Time) (*leaderboard.LeaderboardEntry, error)
	CountRankedUsers(ctx context.Context) (int, error)
}

type LeaderboardService struct {
	store    LeaderboardStore
	users    RunStore
	location *time.Location
	now      func() time.Time
}

func NewLeaderboardService(store LeaderboardStore, users RunStore) *LeaderboardService {
	return &LeaderboardService{store: store, users: users, location: time.UTC, now: time.Now}
}

// SetLocation sets the zone that decides whether a streak is still live.
func (s *LeaderboardService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// SetClock is used by tests to pin "now".
func (s *LeaderboardService) SetClock(now func() time.Time) {
	s.now = now
}

// GetLeaderboards returns every title board, or only the one named by
// title when it is not empty.
func (s *LeaderboardService) GetLeaderboards(ctx context.Context, clerkID string, title string) ([]*leaderboard.Leaderboard, error) {
	titles := leaderboard.Titles
	if title != "" {
		t := leaderboard.Title(title)
		if _, ok := t.Column(); !ok {
			return nil, fmt.Errorf("%w: unknown leaderboard %q", scoring.ErrInvalidInput, title)
		}
		titles = []leaderboard.Title{t}
	}

	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountRankedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	today := scoring.Day(s.now().In(s.location))
	boards := make([]*leaderboard.Leaderboard, 0, len(titles))
	for _, t := range titles {
		entries, err := s.store.TopEntries(ctx, t, today, leaderboardSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s leaderboard: %w", t, err)
		}
		if entries == nil {
			entries = []*leaderboard.LeaderboardEntry{}
		}

		board := &leaderboard.Leaderboard{Title: t, Entries: entries, TotalUsers: total}
		if len(entries) > 0 && entries[0].Rank == 1 && entries[0].Value > 0 {
			board.Holder = entries[0]
		}

		for _, e := range entries {
			if e.UserID == userID {
				board.UserPosition = e
				break
			}
		}
		if board.UserPosition == nil {
			board.UserPosition, err = s.store.EntryFor(ctx, t, userID, today)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s position: %w", t, err)
			}
		}
		boards = append(boards, board)
	}
	return boards, nil
}

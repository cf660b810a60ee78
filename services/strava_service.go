package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/internal/strava"
)

// syncOverlap re-reads a little history on every sync; duplicates are
// absorbed by the external reference uniqueness.
const syncOverlap = 48 * time.Hour

// ActivityFeed is the Strava API surface the sync needs.
type ActivityFeed interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, int64, error)
	ListActivities(ctx context.Context, tok *oauth2.Token, after time.Time) ([]strava.Activity, *oauth2.Token, error)
}

type StravaStore interface {
	GetStravaConnection(ctx context.Context, userID uuid.UUID) (*strava.Connection, error)
	SaveStravaConnection(ctx context.Context, conn *strava.Connection) error
	ListStravaConnections(ctx context.Context) ([]strava.Connection, error)
}

// ImportNotifier is told about syncs that brought in new runs.
type ImportNotifier interface {
	NotifyImportComplete(ctx context.Context, userID uuid.UUID, imported, xp int) error
}

type StravaService struct {
	feed     ActivityFeed
	store    StravaStore
	users    RunStore
	runs     *RunService
	notifier ImportNotifier
	now      func() time.Time
}

func NewStravaService(feed ActivityFeed, store StravaStore, users RunStore, runs *RunService) *StravaService {
	return &StravaService{feed: feed, store: store, users: users, runs: runs, now: time.Now}
}

func (s *StravaService) SetNotifier(n ImportNotifier) {
	s.notifier = n
}

type ConnectURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ConnectURL returns the Strava authorize URL. The client echoes state back
// to the callback and is responsible for checking it.
func (s *StravaService) ConnectURL() ConnectURLResponse {
	state := uuid.NewString()
	return ConnectURLResponse{URL: s.feed.AuthCodeURL(state), State: state}
}

// Connect exchanges the OAuth code and stores the connection for the user.
func (s *StravaService) Connect(ctx context.Context, clerkID, code string) (*strava.Connection, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", scoring.ErrInvalidInput)
	}
	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	tok, athleteID, err := s.feed.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	conn, err := s.store.GetStravaConnection(ctx, userID)
	if err != nil && !errors.Is(err, ErrStravaNotConnected) {
		return nil, fmt.Errorf("failed to load strava connection: %w", err)
	}
	if conn == nil {
		conn = &strava.Connection{UserID: userID, CreatedAt: s.now().UTC()}
	}
	conn.AthleteID = athleteID
	conn.SetToken(tok)

	if err := s.store.SaveStravaConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("%w: save strava connection: %v", ErrPersistence, err)
	}
	log.Printf("StravaService: user %s connected athlete %d", userID, athleteID)
	return conn, nil
}

func (s *StravaService) SyncClerkUser(ctx context.Context, clerkID string) (*run.ImportResult, error) {
	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.SyncUser(ctx, userID)
}

// SyncUser imports new Strava runs for one user. The sync cursor only moves
// forward when every activity was either imported or recognised.
func (s *StravaService) SyncUser(ctx context.Context, userID uuid.UUID) (*run.ImportResult, error) {
	conn, err := s.store.GetStravaConnection(ctx, userID)
	if err != nil {
		return nil, err
	}

	var after time.Time
	if conn.LastSyncedAt != nil {
		after = conn.LastSyncedAt.Add(-syncOverlap)
	}
	startedAt := s.now().UTC()

	activities, tok, err := s.feed.ListActivities(ctx, conn.Token(), after)
	if err != nil {
		return nil, fmt.Errorf("%w: strava activities: %v", ErrUpstreamFetch, err)
	}
	conn.SetToken(tok)

	result, err := s.runs.ImportActivities(ctx, userID, strava.ToExternal(activities), ImportOptions{})
	if err != nil {
		return result, err
	}

	if result.Failed == 0 {
		conn.LastSyncedAt = &startedAt
	}
	if err := s.store.SaveStravaConnection(ctx, conn); err != nil {
		log.Printf("StravaService: failed to save connection for %s: %v", userID, err)
	}

	if s.notifier != nil && result.Imported > 0 {
		xp := 0
		for _, item := range result.Items {
			xp += item.XPGained
		}
		if err := s.notifier.NotifyImportComplete(ctx, userID, result.Imported, xp); err != nil {
			log.Printf("StravaService: import notification for %s failed: %v", userID, err)
		}
	}
	return result, nil
}

// SyncAll syncs every connected user one at a time and returns how many
// syncs failed.
func (s *StravaService) SyncAll(ctx context.Context) (int, error) {
	conns, err := s.store.ListStravaConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: strava connections: %v", ErrUpstreamFetch, err)
	}

	failed := 0
	for _, c := range conns {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if _, err := s.SyncUser(ctx, c.UserID); err != nil {
			log.Printf("StravaService: sync for %s failed: %v", c.UserID, err)
			failed++
		}
	}
	log.Printf("StravaService: synced %d connections, %d failed", len(conns), failed)
	return failed, nil
}

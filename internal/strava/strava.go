// Package strava talks to the Strava v3 API: OAuth code exchange, token
// refresh and paging through an athlete's activities.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
)

const (
	DefaultBaseURL  = "https://www.strava.com/api/v3"
	authURL         = "https://www.strava.com/oauth/authorize"
	tokenURL        = "https://www.strava.com/oauth/token"
	activitiesLimit = 100
)

// Activity is the subset of a Strava SummaryActivity we import.
type Activity struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	SportType      string  `json:"sport_type"`
	Distance       float64 `json:"distance"` // metres
	MovingTime     int     `json:"moving_time"`
	StartDate      string  `json:"start_date"`
	StartDateLocal string  `json:"start_date_local"`
}

// IsRun reports whether the activity is any kind of run.
func (a Activity) IsRun() bool {
	switch a.SportType {
	case "Run", "TrailRun", "VirtualRun":
		return true
	case "":
		return a.Type == "Run" || a.Type == "VirtualRun"
	}
	return false
}

// Connection links a RunQuest user to a Strava athlete.
type Connection struct {
	UserID       uuid.UUID  `json:"user_id"`
	AthleteID    int64      `json:"athlete_id"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  time.Time  `json:"token_expiry"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (c Connection) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.TokenExpiry,
	}
}

// SetToken copies a (possibly refreshed) token onto the connection.
func (c *Connection) SetToken(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.TokenExpiry = tok.Expiry
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// BaseURL, AuthURL and TokenURL are overridden in tests.
	BaseURL           string
	AuthURL           string
	TokenURL          string
	RequestsPerSecond float64
}

type Client struct {
	oauth   *oauth2.Config
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = authURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = tokenURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read,activity:read_all"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for a token and the athlete id
// Strava returns alongside it.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, int64, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to exchange strava code: %w", err)
	}

	var athleteID int64
	if athlete, ok := tok.Extra("athlete").(map[string]any); ok {
		if id, ok := athlete["id"].(float64); ok {
			athleteID = int64(id)
		}
	}
	return tok, athleteID, nil
}

// ListActivities pages through activities started after the given time. The
// returned token differs from tok when it had to be refreshed.
func (c *Client) ListActivities(ctx context.Context, tok *oauth2.Token, after time.Time) ([]Activity, *oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	src := c.oauth.TokenSource(ctx, tok)
	httpClient := oauth2.NewClient(ctx, src)

	var all []Activity
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, httpClient, after, page)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, batch...)
		if len(batch) < activitiesLimit {
			break
		}
	}

	current, err := src.Token()
	if err != nil {
		return all, nil, fmt.Errorf("failed to read strava token: %w", err)
	}
	return all, current, nil
}

func (c *Client) fetchPage(ctx context.Context, httpClient *http.Client, after time.Time, page int) ([]Activity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(activitiesLimit))
	q.Set("page", strconv.Itoa(page))
	if !after.IsZero() {
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/athlete/activities?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch strava activities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("strava activities returned %d: %s", resp.StatusCode, string(body))
	}

	var batch []Activity
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode strava activities: %w", err)
	}
	return batch, nil
}

// ToExternal converts runs to importer input. Non-run activities and ones
// without a usable start date are dropped. Distance becomes kilometres
// rounded to metres; the calendar day comes from the athlete's local start.
func ToExternal(activities []Activity) []run.ExternalActivity {
	out := make([]run.ExternalActivity, 0, len(activities))
	for _, a := range activities {
		if !a.IsRun() {
			continue
		}
		start := a.StartDateLocal
		if start == "" {
			start = a.StartDate
		}
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			continue
		}

		ext := run.ExternalActivity{
			Source:     run.SourceStrava,
			ExternalID: strconv.FormatInt(a.ID, 10),
			Date:       scoring.Day(t),
			Distance:   math.Round(a.Distance) / 1000,
		}
		if a.MovingTime > 0 {
			moving := a.MovingTime
			ext.DurationSeconds = &moving
		}
		if a.Name != "" {
			name := a.Name
			ext.Title = &name
		}
		out = append(out, ext)
	}
	return out
}

package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"runQuestAPI/internal/run"
)

func newTestServer(t *testing.T, activities []Activity) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "good-code", r.Form.Get("code"))
			fmt.Fprint(w, `{"token_type":"Bearer","access_token":"access-1","refresh_token":"refresh-1","expires_in":21600,"athlete":{"id":4242}}`)
		case "refresh_token":
			assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
			fmt.Fprint(w, `{"token_type":"Bearer","access_token":"access-2","refresh_token":"refresh-2","expires_in":21600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer access-") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * perPage
		end := start + perPage
		if start > len(activities) {
			start = len(activities)
		}
		if end > len(activities) {
			end = len(activities)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(activities[start:end]))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		RedirectURL:       "http://localhost/callback",
		BaseURL:           srv.URL + "/api/v3",
		AuthURL:           srv.URL + "/oauth/authorize",
		TokenURL:          srv.URL + "/oauth/token",
		RequestsPerSecond: 1000,
	})
}

func TestExchangeReturnsAthleteID(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newTestClient(srv)

	tok, athleteID, err := c.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, int64(4242), athleteID)
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	srv := newTestServer(t, nil)
	u := newTestClient(srv).AuthCodeURL("state-123")

	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "client_id=client")
	assert.Contains(t, u, "activity%3Aread_all")
}

func TestListActivitiesPagesAndRefreshes(t *testing.T) {
	var activities []Activity
	for i := 0; i < activitiesLimit+5; i++ {
		activities = append(activities, Activity{ID: int64(i + 1), Type: "Run", SportType: "Run", Distance: 5000})
	}
	srv := newTestServer(t, activities)
	c := newTestClient(srv)

	expired := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}

	got, tok, err := c.ListActivities(context.Background(), expired, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, activitiesLimit+5)
	require.NotNil(t, tok)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.Equal(t, "refresh-2", tok.RefreshToken)
}

func TestToExternalFiltersAndConverts(t *testing.T) {
	activities := []Activity{
		{ID: 1, Name: "Morning run", Type: "Run", SportType: "Run", Distance: 5234.6, MovingTime: 1600, StartDate: "2025-09-30T22:30:00Z", StartDateLocal: "2025-10-01T00:30:00Z"},
		{ID: 2, Name: "Commute", Type: "Ride", SportType: "Ride", Distance: 12000, StartDateLocal: "2025-10-01T08:00:00Z"},
		{ID: 3, Type: "Run", SportType: "TrailRun", Distance: 8000, StartDateLocal: "2025-10-02T07:00:00Z"},
		{ID: 4, Type: "Run", Distance: 3000, StartDateLocal: "not a date"},
	}

	got := ToExternal(activities)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, run.SourceStrava, first.Source)
	assert.Equal(t, "1", first.ExternalID)
	assert.Equal(t, "2025-10-01", first.Date.Format("2006-01-02"))
	assert.InDelta(t, 5.235, first.Distance, 1e-9)
	require.NotNil(t, first.DurationSeconds)
	assert.Equal(t, 1600, *first.DurationSeconds)
	require.NotNil(t, first.Title)
	assert.Equal(t, "Morning run", *first.Title)

	assert.Equal(t, "3", got[1].ExternalID)
	assert.Nil(t, got[1].Title)
	assert.Nil(t, got[1].DurationSeconds)
}

func TestConnectionSetTokenKeepsRefreshToken(t *testing.T) {
	c := Connection{RefreshToken: "keep-me"}
	c.SetToken(&oauth2.Token{AccessToken: "new", Expiry: time.Unix(100, 0)})

	assert.Equal(t, "new", c.AccessToken)
	assert.Equal(t, "keep-me", c.RefreshToken)
	assert.Equal(t, time.Unix(100, 0), c.TokenExpiry)
}

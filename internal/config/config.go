// Package config reads the runtime configuration for the API server and the
// maintenance CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"runQuestAPI/internal/scoring"
)

type Config struct {
	Port        string
	DatabaseURL string

	ClerkSecretKey      string
	ClerkWebhookSecret  string
	AdminClerkIDs       []string
	MetricsUser         string
	MetricsPass         string
	FCMCredentialsFile  string
	ScoringDefaultsFile string

	// StreakLocation decides which calendar day "today" is for current streaks.
	StreakLocation *time.Location

	StravaClientID     string
	StravaClientSecret string
	StravaRedirectURL  string
	StravaSyncInterval time.Duration
	StravaRequestRate  float64

	// ReconcileInterval schedules the background totals repair, daily by
	// default. Zero disables it.
	ReconcileInterval time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads .env when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                getEnv("PORT", "3333"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ClerkSecretKey:      getEnv("CLERK_SECRET_KEY", ""),
		ClerkWebhookSecret:  getEnv("CLERK_WEBHOOK_SECRET", ""),
		AdminClerkIDs:       splitAndTrim(getEnv("ADMIN_CLERK_IDS", "")),
		MetricsUser:         getEnv("METRICS_USER", ""),
		MetricsPass:         getEnv("METRICS_PASS", ""),
		FCMCredentialsFile:  getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		ScoringDefaultsFile: getEnv("SCORING_DEFAULTS_FILE", ""),
		StreakLocation:      getLocationEnv("STREAK_TIMEZONE", time.UTC),
		StravaClientID:      getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret:  getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRedirectURL:   getEnv("STRAVA_REDIRECT_URL", ""),
		StravaSyncInterval:  getDurationEnv("STRAVA_SYNC_INTERVAL", 30*time.Minute),
		StravaRequestRate:   getFloatEnv("STRAVA_REQUESTS_PER_SECOND", 1),
		ReconcileInterval:   getDurationEnv("RECONCILE_INTERVAL", 24*time.Hour),
		RateLimitPerSecond:  getFloatEnv("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:      getIntEnv("RATE_LIMIT_BURST", 30),
	}
}

// StravaEnabled reports whether OAuth credentials were supplied.
func (c Config) StravaEnabled() bool {
	return c.StravaClientID != "" && c.StravaClientSecret != ""
}

// ScoringDefaults are used until an admin saves settings to the database.
type ScoringDefaults struct {
	Scoring     scoring.Config          `toml:"scoring"`
	Multipliers scoring.MultiplierTable `toml:"multipliers"`
	Levels      scoring.LevelTable      `toml:"levels"`
}

// DefaultScoring returns the built-in defaults.
func DefaultScoring() ScoringDefaults {
	return ScoringDefaults{
		Scoring: scoring.DefaultConfig(),
		Multipliers: scoring.MultiplierTable{
			{Days: 3, Multiplier: 1.1},
			{Days: 7, Multiplier: 1.25},
			{Days: 14, Multiplier: 1.5},
			{Days: 30, Multiplier: 2.0},
		},
		Levels: scoring.DefaultLevelTable,
	}
}

// LoadScoringDefaults decodes a TOML file over the built-in defaults. An
// empty path returns the built-ins unchanged.
func LoadScoringDefaults(path string) (ScoringDefaults, error) {
	defaults := DefaultScoring()
	if path == "" {
		return defaults, nil
	}

	var file ScoringDefaults
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return defaults, fmt.Errorf("failed to decode scoring defaults %s: %w", path, err)
	}

	if meta.IsDefined("scoring") {
		defaults.Scoring = file.Scoring
	}
	if meta.IsDefined("multipliers") {
		defaults.Multipliers = file.Multipliers
	}
	if meta.IsDefined("levels") {
		defaults.Levels = file.Levels
	}

	if err := defaults.Validate(); err != nil {
		return DefaultScoring(), fmt.Errorf("scoring defaults %s: %w", path, err)
	}
	return defaults, nil
}

func (d ScoringDefaults) Validate() error {
	if err := d.Scoring.Validate(); err != nil {
		return err
	}
	if err := d.Multipliers.Validate(); err != nil {
		return err
	}
	if len(d.Levels) == 0 || d.Levels[0] != 0 {
		return fmt.Errorf("%w: level table must start at 0 XP", scoring.ErrInvalidInput)
	}
	for i := 1; i < len(d.Levels); i++ {
		if d.Levels[i] <= d.Levels[i-1] {
			return fmt.Errorf("%w: level thresholds must be strictly ascending", scoring.ErrInvalidInput)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getLocationEnv(key string, fallback *time.Location) *time.Location {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if loc, err := time.LoadLocation(value); err == nil {
			return loc
		}
	}
	return fallback
}

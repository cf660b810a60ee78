package services

import (
	"context"
	"fmt"
	"log"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/scoring"
)

// SettingsProvider hands out a read-only snapshot of the scoring settings for
// one pipeline invocation.
type SettingsProvider interface {
	ScoringConfig(ctx context.Context) (scoring.Config, error)
	StreakMultipliers(ctx context.Context) (scoring.MultiplierTable, error)
}

// SettingsStore persists the admin-tunable settings.
type SettingsStore interface {
	// GetScoringConfig returns found=false when no settings row exists yet.
	GetScoringConfig(ctx context.Context) (cfg scoring.Config, found bool, err error)
	SaveScoringConfig(ctx context.Context, cfg scoring.Config) error
	ListStreakMultipliers(ctx context.Context) (scoring.MultiplierTable, error)
	ReplaceStreakMultipliers(ctx context.Context, table scoring.MultiplierTable) error
}

type SettingsService struct {
	store    SettingsStore
	defaults config.ScoringDefaults
}

func NewSettingsService(store SettingsStore, defaults config.ScoringDefaults) *SettingsService {
	return &SettingsService{store: store, defaults: defaults}
}

func (s *SettingsService) ScoringConfig(ctx context.Context) (scoring.Config, error) {
	cfg, found, err := s.store.GetScoringConfig(ctx)
	if err != nil {
		return scoring.Config{}, fmt.Errorf("%w: scoring settings: %v", ErrUpstreamFetch, err)
	}
	if !found {
		return s.defaults.Scoring, nil
	}
	return cfg, nil
}

// StreakMultipliers falls back to the defaults when the table is empty.
func (s *SettingsService) StreakMultipliers(ctx context.Context) (scoring.MultiplierTable, error) {
	table, err := s.store.ListStreakMultipliers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: streak multipliers: %v", ErrUpstreamFetch, err)
	}
	if len(table) == 0 {
		return s.defaults.Multipliers.Sorted(), nil
	}
	return table.Sorted(), nil
}

func (s *SettingsService) UpdateScoringConfig(ctx context.Context, cfg scoring.Config) (scoring.Config, error) {
	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, err
	}
	if err := s.store.SaveScoringConfig(ctx, cfg); err != nil {
		return scoring.Config{}, fmt.Errorf("%w: save scoring settings: %v", ErrPersistence, err)
	}
	log.Printf("SettingsService: scoring settings updated: %+v", cfg)
	return cfg, nil
}

func (s *SettingsService) UpdateStreakMultipliers(ctx context.Context, table scoring.MultiplierTable) (scoring.MultiplierTable, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	sorted := table.Sorted()
	if err := s.store.ReplaceStreakMultipliers(ctx, sorted); err != nil {
		return nil, fmt.Errorf("%w: save streak multipliers: %v", ErrPersistence, err)
	}
	log.Printf("SettingsService: %d streak multipliers saved", len(sorted))
	return sorted, nil
}

// SeedDefaults writes the defaults for whichever settings are still unset.
func (s *SettingsService) SeedDefaults(ctx context.Context) error {
	_, found, err := s.store.GetScoringConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to read scoring settings: %w", err)
	}
	if !found {
		if err := s.store.SaveScoringConfig(ctx, s.defaults.Scoring); err != nil {
			return fmt.Errorf("failed to seed scoring settings: %w", err)
		}
	}

	table, err := s.store.ListStreakMultipliers(ctx)
	if err != nil {
		return fmt.Errorf("failed to read streak multipliers: %w", err)
	}
	if len(table) == 0 && len(s.defaults.Multipliers) > 0 {
		if err := s.store.ReplaceStreakMultipliers(ctx, s.defaults.Multipliers.Sorted()); err != nil {
			return fmt.Errorf("failed to seed streak multipliers: %w", err)
		}
	}
	return nil
}

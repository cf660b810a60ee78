package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"runQuestAPI/internal/config"
	"runQuestAPI/internal/testsupport"
	"runQuestAPI/services"
)

var fixedNow = time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu         sync.Mutex
	levels     []int
	milestones []int
	imports    []int
}

func (n *recordingNotifier) NotifyLevelUp(_ context.Context, _ uuid.UUID, level int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	return nil
}

func (n *recordingNotifier) NotifyStreakMilestone(_ context.Context, _ uuid.UUID, days int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.milestones = append(n.milestones, days)
	return nil
}

func (n *recordingNotifier) NotifyImportComplete(_ context.Context, _ uuid.UUID, imported, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.imports = append(n.imports, imported)
	return nil
}

type fixture struct {
	store      *testsupport.MemoryStore
	settings   *services.SettingsService
	reconciler *services.Reconciler
	runs       *services.RunService
	notifier   *recordingNotifier
}

func newFixture() *fixture {
	store := testsupport.NewMemoryStore()
	defaults := config.DefaultScoring()
	settings := services.NewSettingsService(store, defaults)
	reconciler := services.NewReconciler(store, defaults.Levels)
	runs := services.NewRunService(store, settings, reconciler)
	runs.SetClock(func() time.Time { return fixedNow })

	notifier := &recordingNotifier{}
	runs.SetNotifier(notifier)

	return &fixture{
		store:      store,
		settings:   settings,
		reconciler: reconciler,
		runs:       runs,
		notifier:   notifier,
	}
}

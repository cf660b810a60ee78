package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"runQuestAPI/internal/run"
	"runQuestAPI/internal/scoring"
	"runQuestAPI/middleware"
	"runQuestAPI/services"
)

// AdminHandler serves the settings and maintenance endpoints. Routes are
// expected to sit behind middleware.AdminOnly.
type AdminHandler struct {
	settingsService *services.SettingsService
	reconciler      *services.Reconciler
	runService      *services.RunService
}

func NewAdminHandler(settingsService *services.SettingsService, reconciler *services.Reconciler, runService *services.RunService) *AdminHandler {
	return &AdminHandler{
		settingsService: settingsService,
		reconciler:      reconciler,
		runService:      runService,
	}
}

// GET /api/v1/admin/settings/scoring
func (h *AdminHandler) GetScoringConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cfg, err := h.settingsService.ScoringConfig(ctx)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// PUT /api/v1/admin/settings/scoring
func (h *AdminHandler) UpdateScoringConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var cfg scoring.Config
	if err := decodeJSON(r, &cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.settingsService.UpdateScoringConfig(ctx, cfg)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}

	clerkID, _ := middleware.GetClerkID(ctx)
	log.Printf("AdminHandler: scoring settings changed by %s", clerkID)
	respondWithJSON(w, http.StatusOK, saved)
}

// GET /api/v1/admin/settings/multipliers
func (h *AdminHandler) GetStreakMultipliers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	table, err := h.settingsService.StreakMultipliers(ctx)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, table)
}

// PUT /api/v1/admin/settings/multipliers
func (h *AdminHandler) UpdateStreakMultipliers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var table scoring.MultiplierTable
	if err := decodeJSON(r, &table); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.settingsService.UpdateStreakMultipliers(ctx, table)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}

	clerkID, _ := middleware.GetClerkID(ctx)
	log.Printf("AdminHandler: streak multipliers changed by %s", clerkID)
	respondWithJSON(w, http.StatusOK, saved)
}

// POST /api/v1/admin/reconcile
func (h *AdminHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	report, err := h.reconciler.ReconcileAll(ctx)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// POST /api/v1/admin/reconcile/{userID}
func (h *AdminHandler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	agg, err := h.reconciler.ReconcileUser(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, agg)
}

// GET /api/v1/admin/audit
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	found, err := h.reconciler.Audit(ctx)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"discrepancies": found,
		"count":         len(found),
	})
}

// DELETE /api/v1/admin/users/{userID}/runs?source=strava&from=2025-09-01&to=2025-09-30
func (h *AdminHandler) DeleteRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	q := r.URL.Query()
	req := run.DeleteRunsRequest{From: q.Get("from"), To: q.Get("to")}
	if s := q.Get("source"); s != "" {
		source := run.Source(s)
		req.Source = &source
	}

	resp, err := h.runService.DeleteRuns(ctx, userID, req)
	if err != nil {
		respondWithServiceError(w, "AdminHandler", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

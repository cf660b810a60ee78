package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"runQuestAPI/internal/run"
	"runQuestAPI/middleware"
	"runQuestAPI/services"
)

type RunHandler struct {
	runService *services.RunService
}

func NewRunHandler(runService *services.RunService) *RunHandler {
	return &RunHandler{
		runService: runService,
	}
}

// GET /api/v1/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	runs, err := h.runService.ListRuns(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "RunHandler", err)
		return
	}
	if runs == nil {
		runs = []run.Run{}
	}

	respondWithJSON(w, http.StatusOK, runs)
}

// POST /api/v1/runs
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req run.CreateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.runService.AddRun(ctx, clerkID, req)
	if err != nil {
		respondWithServiceError(w, "RunHandler", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// POST /api/v1/runs/preview
func (h *RunHandler) PreviewRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req run.PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.runService.PreviewRun(ctx, clerkID, req)
	if err != nil {
		respondWithServiceError(w, "RunHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// DELETE /api/v1/runs/{runID}
func (h *RunHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	runID, err := uuid.Parse(mux.Vars(r)["runID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	stale, err := h.runService.DeleteRun(ctx, clerkID, runID)
	if err != nil {
		respondWithServiceError(w, "RunHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Run deleted",
		"totals_stale": stale,
	})
}

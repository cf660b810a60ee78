package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"runQuestAPI/middleware"
	"runQuestAPI/services"
)

type StravaHandler struct {
	stravaService *services.StravaService
}

func NewStravaHandler(stravaService *services.StravaService) *StravaHandler {
	return &StravaHandler{
		stravaService: stravaService,
	}
}

type stravaCallbackRequest struct {
	Code string `json:"code"`
}

// GET /api/v1/strava/connect
func (h *StravaHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetClerkID(r.Context()); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	respondWithJSON(w, http.StatusOK, h.stravaService.ConnectURL())
}

// POST /api/v1/strava/callback
func (h *StravaHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req stravaCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conn, err := h.stravaService.Connect(ctx, clerkID, req.Code)
	if err != nil {
		respondWithServiceError(w, "StravaHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, conn)
}

// POST /api/v1/strava/sync
// Paging through Strava can take a while, so this gets a longer deadline.
func (h *StravaHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.stravaService.SyncClerkUser(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "StravaHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"runQuestAPI/middleware"
	"runQuestAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

// GET /api/v1/leaderboards?title=distance_king
func (h *LeaderboardHandler) GetLeaderboards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	boards, err := h.leaderboardService.GetLeaderboards(ctx, clerkID, r.URL.Query().Get("title"))
	if err != nil {
		respondWithServiceError(w, "LeaderboardHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, boards)
}

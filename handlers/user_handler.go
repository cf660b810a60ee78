package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"runQuestAPI/internal/stats"
	"runQuestAPI/internal/user"
	"runQuestAPI/middleware"
)

// ProfileService is the user account surface used by the API and the Clerk
// webhook.
type ProfileService interface {
	CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
	UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error
}

// StatsService produces the dashboard numbers for a user.
type StatsService interface {
	GetUserStats(ctx context.Context, clerkID string) (*stats.UserStats, error)
}

type UserHandler struct {
	userService  ProfileService
	statsService StatsService
}

func NewUserHandler(userService ProfileService, statsService StatsService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		statsService: statsService,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "UserHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.userService.UpdateProfileByClerkID(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "UserHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteUserByClerkID(ctx, clerkID); err != nil {
		respondWithServiceError(w, "UserHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

// GetUserStats answers 200 even when the streak block is degraded.
func (h *UserHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	s, err := h.statsService.GetUserStats(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "UserHandler", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

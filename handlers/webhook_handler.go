package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"runQuestAPI/internal/user"
)

const maxWebhookBody = int64(65536)

type WebhookHandler struct {
	userService ProfileService
	secret      string
}

// NewWebhookHandler verifies Svix signatures with secret. An empty secret
// disables verification, which is only meant for local development.
func NewWebhookHandler(userService ProfileService, secret string) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Webhook: error reading body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if !h.verifyWebhookSignature(r, body) {
		log.Println("Webhook: invalid signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event user.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Webhook: error parsing event: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Webhook: received event %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		log.Printf("Webhook: unhandled event type %s", event.Type)
	}
	if err != nil {
		log.Printf("Webhook: error handling %s: %v", event.Type, err)
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData user.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, hasEmail := userData.PrimaryEmail()
	createReq := &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email.EmailAddress,
		Username:  userData.DisplayName(),
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  userData.Image(),
	}

	u, err := h.userService.CreateUser(ctx, createReq)
	if err != nil {
		return fmt.Errorf("failed to create user in database: %w", err)
	}

	if hasEmail && email.Verification.Status == "verified" {
		if err := h.userService.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			log.Printf("Webhook: failed to mark email verified for %s: %v", userData.ID, err)
		}
	}

	log.Printf("Webhook: created user %s (Clerk ID: %s)", u.ID, u.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData user.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	updateReq := &user.UpdateProfileRequest{
		Username:  userData.DisplayName(),
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  userData.Image(),
	}

	if _, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, updateReq); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	log.Printf("Webhook: updated user, Clerk ID: %s", userData.ID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	if err := h.userService.DeleteUserByClerkID(ctx, userData.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Webhook: deleted user, Clerk ID: %s", userData.ID)
	return nil
}

// verifyWebhookSignature checks the Svix v1 signature over the raw body.
// The body is restored afterwards so later readers still see it.
func (h *WebhookHandler) verifyWebhookSignature(r *http.Request, body []byte) bool {
	defer func() { r.Body = io.NopCloser(bytes.NewReader(body)) }()

	if h.secret == "" {
		log.Println("Webhook: CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return true
	}

	svixID := r.Header.Get("svix-id")
	svixTimestamp := r.Header.Get("svix-timestamp")
	svixSignature := r.Header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		log.Println("Webhook: missing signature headers")
		return false
	}

	expected := signWebhook(h.secret, svixID, svixTimestamp, body)
	for _, sig := range strings.Fields(svixSignature) {
		provided, ok := strings.CutPrefix(sig, "v1,")
		if ok && hmac.Equal([]byte(expected), []byte(provided)) {
			return true
		}
	}
	return false
}

// signWebhook produces the base64 v1 signature for a Svix payload. Clerk
// secrets carry a "whsec_" prefix in front of the base64 key.
func signWebhook(secret, id, timestamp string, body []byte) string {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		key = []byte(secret)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

// ClerkAuthMiddleware validates Clerk JWT tokens and extracts user info
func ClerkAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
			return
		}

		claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{
			Token: token,
		})
		if err != nil {
			log.Printf("Auth: token verification failed: %v", err)
			respondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClerkID(r.Context(), claims.Subject)))
	})
}

// AdminOnly lets through only the Clerk users listed in adminIDs. It must run
// after ClerkAuthMiddleware.
func AdminOnly(adminIDs []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clerkID, ok := GetClerkID(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}
			if !allowed[clerkID] {
				log.Printf("Auth: admin route %s refused for %s", r.URL.Path, clerkID)
				respondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClerkID stores the authenticated Clerk user ID on ctx.
func WithClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, ClerkIDKey, clerkID)
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok && clerkID != ""
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

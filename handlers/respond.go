package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"runQuestAPI/internal/scoring"
	"runQuestAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scoring.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrStravaNotConnected):
		return http.StatusConflict
	case errors.Is(err, services.ErrUpstreamFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes err with its mapped status. Internal
// failures are logged and replaced by a generic message.
func respondWithServiceError(w http.ResponseWriter, component string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("%s: %v", component, err)
	}
	switch code {
	case http.StatusInternalServerError:
		respondWithError(w, code, "Internal server error")
	case http.StatusBadGateway:
		respondWithError(w, code, "Upstream data unavailable, please retry")
	default:
		respondWithError(w, code, err.Error())
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

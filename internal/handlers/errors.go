package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"challengetracker/internal/service"
	"challengetracker/internal/validation"
)

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	http.Error(w, userMsg, status)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondJSONError is respondWithError for the JSON API
func respondJSONError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}
	respondJSON(w, status, errorResponse{Error: userMsg})
}

// respondServiceError maps service errors onto HTTP statuses. Only
// unexpected errors are logged.
func respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	var ve validation.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSONError(w, http.StatusBadRequest, ve.Error(), "", nil)
	case errors.Is(err, service.ErrChallengeIndex):
		respondJSONError(w, http.StatusBadRequest, err.Error(), "", nil)
	case errors.Is(err, service.ErrThemeNotFound),
		errors.Is(err, service.ErrClassNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrHistoryEntryNotFound):
		respondJSONError(w, http.StatusNotFound, err.Error(), "", nil)
	case errors.Is(err, service.ErrThemeExists):
		respondJSONError(w, http.StatusConflict, err.Error(), "", nil)
	case errors.Is(err, service.ErrStateNotLoaded):
		respondJSONError(w, http.StatusServiceUnavailable, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondJSONError(w, http.StatusUnauthorized, "Invalid password", "", nil)
	default:
		respondJSONError(w, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}

// decodeJSON reads a size-limited JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

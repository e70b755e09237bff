package handlers

import (
	"net/http"

	"challengetracker/internal/service"
)

// SearchHandler answers per-student lookups over the ledger
type SearchHandler struct {
	search *service.StudentSearch
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search *service.StudentSearch) *SearchHandler {
	return &SearchHandler{search: search}
}

// Students lists student names containing ?q=
func (h *SearchHandler) Students(w http.ResponseWriter, r *http.Request) {
	names, err := h.search.Students(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, ErrInternalServerError, "Error searching students", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"students": names})
}

// Profile returns one student's entries and stats
func (h *SearchHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.search.Profile(r.Context(), r.PathValue("name"))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading student profile", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

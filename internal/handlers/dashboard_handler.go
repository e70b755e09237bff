package handlers

import (
	"log"
	"net/http"

	"challengetracker/internal/service"
)

// DashboardHandler serves the instructor console
type DashboardHandler struct {
	workspace *service.Workspace
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(workspace *service.Workspace) *DashboardHandler {
	return &DashboardHandler{workspace: workspace}
}

// State returns the working snapshot with the current theme projected per class
func (h *DashboardHandler) State(w http.ResponseWriter, r *http.Request) {
	state := h.workspace.Snapshot()
	respondJSON(w, http.StatusOK, DashboardViewData{
		State:      state,
		Current:    buildThemeView(state, state.CurrentTheme()),
		Slots:      h.workspace.Slots(),
		SaveStatus: h.workspace.Status(),
	})
}

type toggleRequest struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Index     int    `json:"index"`
}

type toggleResponse struct {
	Key             string   `json:"key"`
	Completed       bool     `json:"completed"`
	Challenges      []string `json:"challengesCompleted"`
	Percent         int      `json:"percent"`
	HistoryRecorded bool     `json:"historyRecorded"`
}

// Toggle flips one challenge for one student of the current week theme
func (h *DashboardHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	toggle, entry, err := h.workspace.ToggleChallenge(r.Context(), req.ClassID, req.StudentID, req.Index)
	if toggle == nil {
		respondServiceError(w, "Error toggling challenge", err)
		return
	}
	if err != nil {
		// the progress change stands; only the ledger write failed
		log.Printf("Error recording history for %s: %v", toggle.Key, err)
	}

	respondJSON(w, http.StatusOK, toggleResponse{
		Key:             toggle.Key,
		Completed:       toggle.Completed,
		Challenges:      toggle.Progress.ChallengesCompleted,
		Percent:         service.Percent(len(toggle.Progress.ChallengesCompleted)),
		HistoryRecorded: entry != nil,
	})
}

type selectClassRequest struct {
	ClassID string `json:"classId"`
}

// SelectClass changes the dashboard's selected class
func (h *DashboardHandler) SelectClass(w http.ResponseWriter, r *http.Request) {
	var req selectClassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.SelectClass(req.ClassID); err != nil {
		respondServiceError(w, "Error selecting class", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type themeRequest struct {
	Name string `json:"name"`
}

// SelectTheme changes the current week theme
func (h *DashboardHandler) SelectTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.SelectTheme(req.Name); err != nil {
		respondServiceError(w, "Error selecting theme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Save flushes the pending autosave now; it is also the retry after a failed save
func (h *DashboardHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.Flush(r.Context()); err != nil {
		log.Printf("Error saving workspace: %v", err)
		respondJSON(w, http.StatusInternalServerError, h.workspace.Status())
		return
	}
	respondJSON(w, http.StatusOK, h.workspace.Status())
}

// SaveStatus reports the autosave status
func (h *DashboardHandler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.workspace.Status())
}

package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"challengetracker/internal/models"
	"challengetracker/internal/service"
)

// HistoryHandler serves the completion ledger
type HistoryHandler struct {
	ledger    *service.HistoryLedger
	workspace *service.Workspace
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(ledger *service.HistoryLedger, workspace *service.Workspace) *HistoryHandler {
	return &HistoryHandler{ledger: ledger, workspace: workspace}
}

// List returns entries newest first, filtered by ?search= and ?class=
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.HistoryFilter{
		Search:    r.URL.Query().Get("search"),
		ClassName: r.URL.Query().Get("class"),
	}
	entries, err := h.ledger.Query(r.Context(), filter)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, ErrInternalServerError, "Error listing history", err)
		return
	}
	classes, err := h.ledger.Classes(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, ErrInternalServerError, "Error listing history classes", err)
		return
	}
	if classes == nil {
		classes = []string{}
	}
	respondJSON(w, http.StatusOK, HistoryViewData{Entries: entries, Classes: classes})
}

// ReplaceAll swaps the whole ledger for the posted entries
func (h *HistoryHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	var entries []models.HistoryEntry
	if err := decodeJSON(w, r, &entries); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.ledger.ReplaceAll(r.Context(), entries); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to save history", "Error replacing history", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"entries": len(entries)})
}

// Update edits one entry and writes its challenges back into progress when
// the student is still on the roster
func (h *HistoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var entry models.HistoryEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	entry.ID = r.PathValue("id")

	written, err := h.workspace.EditHistoryEntry(r.Context(), entry)
	if err != nil {
		respondServiceError(w, "Error updating history entry", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"progressUpdated": written})
}

// Clear deletes every entry
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.Clear(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to clear history", "Error clearing history", err)
		return
	}
	log.Printf("History cleared: %d entries", n)
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Export downloads the student mastery matrix as an xlsx workbook
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.QueryAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error reading history for export", err)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteMasteryWorkbook(&buf, service.BuildMasteryMatrix(entries)); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build workbook", "Error building workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", service.MasteryFilename(time.Now())))
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing workbook: %v", err)
	}
}

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"challengetracker/internal/service"
)

// AdminHandler edits rosters, themes and challenges, and handles backups
type AdminHandler struct {
	workspace     *service.Workspace
	backupService *service.BackupService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(workspace *service.Workspace, backupService *service.BackupService) *AdminHandler {
	return &AdminHandler{workspace: workspace, backupService: backupService}
}

type nameRequest struct {
	Name string `json:"name"`
}

// AddStudent creates a student in the unassigned pool of every theme
func (h *AdminHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	student, err := h.workspace.AddStudent(req.Name)
	if err != nil {
		respondServiceError(w, "Error adding student", err)
		return
	}
	respondJSON(w, http.StatusCreated, student)
}

// RenameStudent renames a student everywhere
func (h *AdminHandler) RenameStudent(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.RenameStudent(r.PathValue("id"), req.Name); err != nil {
		respondServiceError(w, "Error renaming student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveStudent drops a student from the current week theme's roster
func (h *AdminHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.RemoveStudent(r.PathValue("id")); err != nil {
		respondServiceError(w, "Error removing student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	StudentIDs []string `json:"studentIds"`
	ClassID    string   `json:"classId"`
}

// MoveStudents moves one or more students into a class of the current week theme
func (h *AdminHandler) MoveStudents(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil || len(req.StudentIDs) == 0 {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.MoveStudents(req.StudentIDs, req.ClassID); err != nil {
		respondServiceError(w, "Error moving students", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameClass relabels a class of the current week theme
func (h *AdminHandler) RenameClass(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.RenameClass(r.PathValue("id"), req.Name); err != nil {
		respondServiceError(w, "Error renaming class", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTheme adds a theme and makes it the current week theme
func (h *AdminHandler) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	theme, err := h.workspace.CreateTheme(req.Name)
	if err != nil {
		respondServiceError(w, "Error creating theme", err)
		return
	}
	respondJSON(w, http.StatusCreated, theme)
}

// RenameTheme renames the theme named in the path
func (h *AdminHandler) RenameTheme(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.RenameTheme(r.PathValue("name"), req.Name); err != nil {
		respondServiceError(w, "Error renaming theme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameChallenge renames one challenge of the current week theme
func (h *AdminHandler) RenameChallenge(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid challenge index", "", nil)
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.RenameChallenge(index, req.Name); err != nil {
		respondServiceError(w, "Error renaming challenge", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type imageRequest struct {
	Image string `json:"image"`
}

// SetChallengeImage sets or clears a challenge image; an empty image clears it
func (h *AdminHandler) SetChallengeImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid challenge index", "", nil)
		return
	}
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := h.workspace.SetChallengeImage(index, req.Image); err != nil {
		respondServiceError(w, "Error setting challenge image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publicRequest struct {
	ThemeName string `json:"publicThemeName"`
	ClassID   string `json:"publicClassId"`
}

// SetPublic sets the persisted public display theme and/or class
func (h *AdminHandler) SetPublic(w http.ResponseWriter, r *http.Request) {
	var req publicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if req.ThemeName != "" {
		if err := h.workspace.SetPublicTheme(req.ThemeName); err != nil {
			respondServiceError(w, "Error setting public theme", err)
			return
		}
	}
	if req.ClassID != "" {
		if err := h.workspace.SetPublicClass(req.ClassID); err != nil {
			respondServiceError(w, "Error setting public class", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportDatabase flushes pending edits and streams a JSON backup
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.Flush(r.Context()); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to save pending changes", "Error flushing before export", err)
		return
	}

	// Buffer so a failure can still be reported as an error status
	var buf bytes.Buffer
	if err := h.backupService.ExportToWriter(r.Context(), &buf); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to export database", "Error exporting database", err)
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("challengetracker_backup_%s.json", timestamp)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing backup: %v", err)
	}
}

// ImportDatabase restores a backup or a legacy snapshot, uploaded as the
// backup_file form field or sent as the raw request body. With
// clear_history=true the history ledger is replaced instead of merged.
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var reader io.Reader = r.Body
	clearHistory := r.URL.Query().Get("clear_history") == "true"
	if err := r.ParseMultipartForm(maxBodyBytes); err == nil {
		file, _, err := r.FormFile("backup_file")
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Please select a backup file", "", nil)
			return
		}
		defer file.Close()
		reader = file
		clearHistory = clearHistory || r.FormValue("clear_history") == "true"
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Failed to read backup", "", nil)
		return
	}
	state, history, err := h.backupService.DecodeBackup(raw)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Failed to import database: "+err.Error(), "", nil)
		return
	}

	if err := h.workspace.Import(state); err != nil {
		respondServiceError(w, "Error importing snapshot", err)
		return
	}
	if err := h.backupService.RestoreHistory(r.Context(), history, clearHistory); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to import history", "Error importing history", err)
		return
	}

	log.Printf("Database imported: %d themes, %d history entries (clear_history=%v)", len(state.Themes), len(history), clearHistory)
	respondJSON(w, http.StatusOK, map[string]int{"themes": len(state.Themes), "history": len(history)})
}

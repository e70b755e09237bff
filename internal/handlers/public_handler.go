package handlers

import (
	"net/http"

	"challengetracker/internal/models"
	"challengetracker/internal/security"
	"challengetracker/internal/service"
)

// PublicHandler serves the unauthenticated classroom display
type PublicHandler struct {
	poller   *service.Poller
	displays *service.DisplayRegistry
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(poller *service.Poller, displays *service.DisplayRegistry) *PublicHandler {
	return &PublicHandler{poller: poller, displays: displays}
}

// overrides returns the register of the requesting display, issuing a
// display cookie when the request has none
func (h *PublicHandler) overrides(w http.ResponseWriter, r *http.Request) *service.OverrideRegister {
	cookie, err := r.Cookie(security.DisplayCookieName)
	if err != nil || cookie.Value == "" {
		displayID := security.GenerateSessionID()
		http.SetCookie(w, security.CreateDisplayCookie(r, displayID))
		return h.displays.For(displayID)
	}
	return h.displays.For(cookie.Value)
}

// Display returns the polled snapshot narrowed to the public theme and class
func (h *PublicHandler) Display(w http.ResponseWriter, r *http.Request) {
	state := h.poller.Snapshot(r.Context(), h.overrides(w, r))
	if state == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "State not loaded yet", "", nil)
		return
	}

	view := PublicViewData{
		Themes:        themeNames(state),
		PublicTheme:   state.PublicThemeName,
		PublicClassID: state.PublicClassID,
	}
	if theme := state.ThemeByName(state.PublicThemeName); theme != nil {
		view.Theme = buildThemeView(state, theme)
		if class := theme.Class(state.PublicClassID); class != nil {
			cv := buildClassView(state, theme.Name, *class)
			view.Class = &cv
		}
	}
	if err := h.poller.LastError(); err != nil {
		view.LastError = err.Error()
	}
	respondJSON(w, http.StatusOK, view)
}

// SelectClass records a class and/or theme choice for the requesting display
// only. It wins over the polled values on that display until cleared.
func (h *PublicHandler) SelectClass(w http.ResponseWriter, r *http.Request) {
	var req publicRequest
	if err := decodeJSON(w, r, &req); err != nil || (req.ClassID == "" && req.ThemeName == "") {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	overrides := h.overrides(w, r)
	if req.ClassID != "" {
		if err := overrides.Set(models.SettingPublicClassID, req.ClassID); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error(), "", nil)
			return
		}
	}
	if req.ThemeName != "" {
		if err := overrides.Set(models.SettingPublicThemeName, req.ThemeName); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error(), "", nil)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearSelection drops the requesting display's choices
func (h *PublicHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.overrides(w, r).ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

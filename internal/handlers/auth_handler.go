package handlers

import (
	"net/http"
	"strings"

	"challengetracker/internal/security"
	"challengetracker/internal/service"
)

// AuthHandler handles the shared-password login
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login accepts the password as JSON or as a form field
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
			return
		}
		req.Password = r.FormValue("password")
	}

	session, err := h.authService.Login(req.Password)
	if err != nil {
		respondServiceError(w, "Error logging in", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, session.Token, session.ExpiresAt))
	respondJSON(w, http.StatusOK, LoginResponse{CSRFToken: session.CSRFToken, ExpiresAt: session.ExpiresAt})
}

// Logout clears the session cookie. The token itself stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(r))
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the CSRF token of the current session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token, err := h.authService.CSRFToken(GetSessionID(r.Context()))
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

package service

import (
	"fmt"
	"time"

	"challengetracker/internal/security"
	"challengetracker/internal/validation"
)

// Session is an issued instructor session
type Session struct {
	Token     string
	ID        string
	CSRFToken string
	ExpiresAt time.Time
}

// AuthService gates the instructor views behind the shared password
type AuthService struct {
	passwordHash string
	tokens       *security.TokenManager
	csrf         *security.CSRFGenerator
}

// NewAuthService hashes the shared password once at startup
func NewAuthService(sharedPassword, sessionSecret string, sessionDuration time.Duration) (*AuthService, error) {
	if err := validation.ValidatePassword(sharedPassword); err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(sharedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash shared password: %w", err)
	}
	return &AuthService{
		passwordHash: hash,
		tokens:       security.NewTokenManager(sessionSecret, sessionDuration),
		csrf:         security.NewCSRFGenerator(sessionSecret),
	}, nil
}

// Login checks the shared password and issues a session
func (s *AuthService) Login(password string) (*Session, error) {
	if !security.CheckPassword(s.passwordHash, password) {
		return nil, ErrInvalidCredentials
	}
	token, id, expires, err := s.tokens.Issue()
	if err != nil {
		return nil, err
	}
	csrfToken, err := s.csrf.GenerateToken(id)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ID: id, CSRFToken: csrfToken, ExpiresAt: expires}, nil
}

// Authenticate verifies a session token and returns its session id
func (s *AuthService) Authenticate(token string) (string, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return id, nil
}

// CSRFToken returns the CSRF token bound to a session
func (s *AuthService) CSRFToken(sessionID string) (string, error) {
	return s.csrf.GenerateToken(sessionID)
}

// ValidateCSRF reports whether token belongs to the session
func (s *AuthService) ValidateCSRF(sessionID, token string) bool {
	return s.csrf.ValidateToken(sessionID, token)
}

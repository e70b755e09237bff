package service

import (
	"errors"

	"challengetracker/internal/models"
)

var (
	ErrThemeNotFound        = errors.New("theme not found")
	ErrClassNotFound        = errors.New("class not found")
	ErrStudentNotFound      = errors.New("student not found")
	ErrHistoryEntryNotFound = errors.New("history entry not found")
	ErrChallengeIndex       = errors.New("challenge index out of range")
	ErrThemeExists          = errors.New("theme already exists")
	ErrInvalidCredentials   = errors.New("invalid password")
	ErrInvalidToken         = errors.New("invalid or expired session")
	ErrStateNotLoaded       = errors.New("state not loaded yet")

	// ErrMalformedProgressKey is re-exported so callers only need this package
	ErrMalformedProgressKey = models.ErrMalformedProgressKey
)

package repository

import (
	"context"
	"fmt"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
)

// Rows is the unassembled content of the entity store
type Rows struct {
	Themes      []models.Theme
	Classes     []ClassRow
	Memberships []MembershipRow
	Progress    []ProgressRow
	Settings    map[string]string
}

// Store groups the repositories that make up the entity store
type Store struct {
	Themes   *ThemeRepository
	Classes  *ClassRepository
	Students *StudentRepository
	Progress *ProgressRepository
	Settings *SettingsRepository
}

// NewStore creates every entity store repository over one connection
func NewStore(db *database.DB) *Store {
	return &Store{
		Themes:   NewThemeRepository(db),
		Classes:  NewClassRepository(db),
		Students: NewStudentRepository(db),
		Progress: NewProgressRepository(db),
		Settings: NewSettingsRepository(db),
	}
}

// FetchAll reads every theme, class session, membership, progress and setting row
func (s *Store) FetchAll(ctx context.Context) (*Rows, error) {
	themes, err := s.Themes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch themes: %w", err)
	}
	classes, err := s.Classes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch class sessions: %w", err)
	}
	memberships, err := s.Students.ListMemberships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch students: %w", err)
	}
	progress, err := s.Progress.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	settings, err := s.Settings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	return &Rows{
		Themes:      themes,
		Classes:     classes,
		Memberships: memberships,
		Progress:    progress,
		Settings:    settings,
	}, nil
}

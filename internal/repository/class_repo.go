package repository

import (
	"context"
	"fmt"

	"challengetracker/internal/database"
)

// ClassRow is a stored class session belonging to one theme
type ClassRow struct {
	ThemeID  int64
	ID       string
	Name     string
	Position int
}

// ClassRepository handles database operations for class sessions
type ClassRepository struct {
	db *database.DB
}

// NewClassRepository creates a new class session repository
func NewClassRepository(db *database.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns every class session row
func (r *ClassRepository) List(ctx context.Context) ([]ClassRow, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT theme_id, id, name, position FROM class_sessions ORDER BY theme_id, position")
	if err != nil {
		return nil, fmt.Errorf("failed to list class sessions: %w", err)
	}
	defer rows.Close()

	var classes []ClassRow
	for rows.Next() {
		var c ClassRow
		if err := rows.Scan(&c.ThemeID, &c.ID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan class session: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// Upsert writes a class session keyed on (theme_id, id)
func (r *ClassRepository) Upsert(ctx context.Context, themeID int64, classID, name string, position int) error {
	query := r.db.Dialect.UpsertQuery("class_sessions",
		[]string{"theme_id", "id", "name", "position"},
		[]string{"theme_id", "id"},
		[]string{"name", "position"},
	)
	if _, err := r.db.ExecContext(ctx, query, themeID, classID, name, position); err != nil {
		return fmt.Errorf("failed to upsert class session %s for theme %d: %w", classID, themeID, err)
	}
	return nil
}

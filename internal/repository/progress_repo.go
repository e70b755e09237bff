package repository

import (
	"context"
	"fmt"
	"time"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
)

// ProgressRow is one stored progress fact with its key parts
type ProgressRow struct {
	ClassID   string
	ThemeName string
	models.StudentProgress
}

// Key returns the progress map key for the row
func (p ProgressRow) Key() string {
	return models.ProgressKey(p.ClassID, p.StudentID, p.ThemeName)
}

// ProgressRepository handles database operations for student progress
type ProgressRepository struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// List returns every progress row
func (r *ProgressRepository) List(ctx context.Context) ([]ProgressRow, error) {
	query := `
		SELECT student_id, class_id, theme_name, student_name, challenges_completed, updated_at
		FROM student_progress
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var progress []ProgressRow
	for rows.Next() {
		var p ProgressRow
		var completed string
		if err := rows.Scan(&p.StudentID, &p.ClassID, &p.ThemeName, &p.StudentName, &completed, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		slots, err := decodeList(completed)
		if err != nil {
			return nil, fmt.Errorf("progress %s: %w", p.Key(), err)
		}
		p.ChallengesCompleted = models.NormalizeSlots(slots)
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// Upsert writes the full completed set for (student_id, class_id, theme_name)
func (r *ProgressRepository) Upsert(ctx context.Context, studentID, classID, themeName, studentName string, completed []string, ts time.Time) error {
	encoded, err := encodeList(models.NormalizeSlots(completed))
	if err != nil {
		return err
	}
	query := r.db.Dialect.UpsertQuery("student_progress",
		[]string{"student_id", "class_id", "theme_name", "student_name", "challenges_completed", "updated_at"},
		[]string{"student_id", "class_id", "theme_name"},
		[]string{"student_name", "challenges_completed", "updated_at"},
	)
	if _, err := r.db.ExecContext(ctx, query, studentID, classID, themeName, studentName, encoded, ts.UTC()); err != nil {
		return fmt.Errorf("failed to upsert progress %s: %w", models.ProgressKey(classID, studentID, themeName), err)
	}
	return nil
}

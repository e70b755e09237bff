package repository

import (
	"context"
	"fmt"
	"time"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
)

// MembershipRow places a student in one class of one theme
type MembershipRow struct {
	ThemeID     int64
	ClassID     string
	StudentID   string
	StudentName string
	Position    int
}

// StudentRepository handles global students and their per-theme class memberships
type StudentRepository struct {
	db *database.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *database.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListMemberships returns every membership joined with the student's current name
func (r *StudentRepository) ListMemberships(ctx context.Context) ([]MembershipRow, error) {
	query := `
		SELECT m.theme_id, m.class_id, m.student_id, s.name, m.position
		FROM class_memberships m
		JOIN students s ON s.id = m.student_id
		ORDER BY m.theme_id, m.class_id, m.position
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []MembershipRow
	for rows.Next() {
		var m MembershipRow
		if err := rows.Scan(&m.ThemeID, &m.ClassID, &m.StudentID, &m.StudentName, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// List returns every global student ordered by name
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM students ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Upsert writes the global student row and its membership for one theme.
// The membership is keyed on (theme_id, student_id), so upserting into a new
// class moves the student rather than duplicating them.
func (r *StudentRepository) Upsert(ctx context.Context, studentID string, themeID int64, classID, name string, position int) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		studentQuery := r.db.Dialect.UpsertQuery("students",
			[]string{"id", "name", "updated_at"},
			[]string{"id"},
			[]string{"name", "updated_at"},
		)
		if _, err := tx.ExecContext(ctx, studentQuery, studentID, name, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to upsert student %s: %w", studentID, err)
		}

		membershipQuery := r.db.Dialect.UpsertQuery("class_memberships",
			[]string{"theme_id", "student_id", "class_id", "position"},
			[]string{"theme_id", "student_id"},
			[]string{"class_id", "position"},
		)
		if _, err := tx.ExecContext(ctx, membershipQuery, themeID, studentID, classID, position); err != nil {
			return fmt.Errorf("failed to upsert membership of %s in %s: %w", studentID, classID, err)
		}
		return nil
	})
}

// Ensure creates the global student row when it is missing, without a
// membership. An existing row keeps its name.
func (r *StudentRepository) Ensure(ctx context.Context, studentID, name string) error {
	query := r.db.Dialect.UpsertQuery("students",
		[]string{"id", "name", "updated_at"},
		[]string{"id"},
		nil,
	)
	if _, err := r.db.ExecContext(ctx, query, studentID, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure student %s: %w", studentID, err)
	}
	return nil
}

// DeleteStudentsNotIn removes memberships of (themeID, classID) whose student is
// not in keepIDs and returns how many were removed. Student rows are kept.
func (r *StudentRepository) DeleteStudentsNotIn(ctx context.Context, themeID int64, classID string, keepIDs []string) (int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT student_id FROM class_memberships WHERE theme_id = ? AND class_id = ?", themeID, classID)
	if err != nil {
		return 0, fmt.Errorf("failed to list memberships of %s: %w", classID, err)
	}
	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}
	var removed []interface{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan membership: %w", err)
		}
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to list memberships of %s: %w", classID, err)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	query := "DELETE FROM class_memberships WHERE theme_id = ? AND class_id = ? AND student_id IN (" + database.Placeholders(len(removed)) + ")"
	args := append([]interface{}{themeID, classID}, removed...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to delete memberships of %s: %w", classID, err)
	}
	return len(removed), nil
}

// Rename changes a student's global name and its denormalized copies
func (r *StudentRepository) Rename(ctx context.Context, studentID, name string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE students SET name = ?, updated_at = ? WHERE id = ?", name, time.Now().UTC(), studentID); err != nil {
			return fmt.Errorf("failed to rename student %s: %w", studentID, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE student_progress SET student_name = ? WHERE student_id = ?", name, studentID); err != nil {
			return fmt.Errorf("failed to rename progress of %s: %w", studentID, err)
		}
		return nil
	})
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
)

// ThemeRepository handles database operations for themes
type ThemeRepository struct {
	db *database.DB
}

// NewThemeRepository creates a new theme repository
func NewThemeRepository(db *database.DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

// List returns every theme without its classes, in display order
func (r *ThemeRepository) List(ctx context.Context) ([]models.Theme, error) {
	query := `
		SELECT id, name, challenges, challenge_images
		FROM themes
		ORDER BY position, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		var theme models.Theme
		var challenges, images string
		if err := rows.Scan(&theme.ID, &theme.Name, &challenges, &images); err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		if theme.Challenges, err = decodeList(challenges); err != nil {
			return nil, fmt.Errorf("theme %q challenges: %w", theme.Name, err)
		}
		if theme.ChallengeImages, err = decodeList(images); err != nil {
			return nil, fmt.Errorf("theme %q images: %w", theme.Name, err)
		}
		if len(theme.ChallengeImages) == 0 {
			theme.ChallengeImages = nil
		}
		themes = append(themes, theme)
	}
	return themes, rows.Err()
}

// Upsert writes a theme and returns its store id. A theme that already has an
// id is updated in place, which lets a rename keep its rows; progress rows are
// re-keyed to the new name in the same transaction. Otherwise the theme is
// matched on its unique name, or inserted when the name is new.
func (r *ThemeRepository) Upsert(ctx context.Context, theme *models.Theme, position int) (int64, error) {
	challenges, err := encodeList(theme.Challenges)
	if err != nil {
		return 0, err
	}
	images, err := encodeList(theme.ChallengeImages)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	if theme.ID != 0 {
		updated, err := r.updateByID(ctx, theme, challenges, images, position, now)
		if err != nil {
			return 0, err
		}
		if updated {
			return theme.ID, nil
		}
	}

	var id int64
	err = r.db.QueryRowContext(ctx, "SELECT id FROM themes WHERE name = ?", theme.Name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		query := `
			INSERT INTO themes (name, challenges, challenge_images, position, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`
		id, err = r.db.ExecReturningID(ctx, query, theme.Name, challenges, images, position, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert theme %q: %w", theme.Name, err)
		}
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read theme id for %q: %w", theme.Name, err)
	}

	query := `
		UPDATE themes
		SET challenges = ?, challenge_images = ?, position = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, challenges, images, position, now, id); err != nil {
		return 0, fmt.Errorf("failed to update theme %q: %w", theme.Name, err)
	}
	return id, nil
}

// updateByID reports false when no row carries theme.ID
func (r *ThemeRepository) updateByID(ctx context.Context, theme *models.Theme, challenges, images string, position int, now time.Time) (bool, error) {
	var storedName string
	err := r.db.QueryRowContext(ctx, "SELECT name FROM themes WHERE id = ?", theme.ID).Scan(&storedName)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get theme %d: %w", theme.ID, err)
	}

	err = r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			UPDATE themes
			SET name = ?, challenges = ?, challenge_images = ?, position = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query, theme.Name, challenges, images, position, now, theme.ID); err != nil {
			return fmt.Errorf("failed to update theme %d: %w", theme.ID, err)
		}
		if storedName == theme.Name {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE student_progress SET theme_name = ? WHERE theme_name = ?", theme.Name, storedName); err != nil {
			return fmt.Errorf("failed to re-key progress for theme %q: %w", storedName, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of stored themes
func (r *ThemeRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM themes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count themes: %w", err)
	}
	return count, nil
}

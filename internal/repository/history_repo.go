package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
)

// historyInsertBatchSize bounds the rows per multi-row INSERT in ReplaceAll
const historyInsertBatchSize = 1000

var historyColumns = []string{
	"id", "student_name", "class_name", "week_name", "week_theme",
	"challenges", "all_available_challenges", "entry_day", "recorded_at",
}

const historySelect = `
	SELECT id, student_name, class_name, week_name, week_theme,
	       challenges, all_available_challenges, recorded_at
	FROM history_entries
`

// HistoryRepository handles database operations for the history ledger
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// List returns every entry, newest first
func (r *HistoryRepository) List(ctx context.Context) ([]models.HistoryEntry, error) {
	return r.query(ctx, historySelect+" ORDER BY recorded_at DESC, id")
}

// ListByDay returns the entries recorded on a UTC calendar day, newest first
func (r *HistoryRepository) ListByDay(ctx context.Context, day string) ([]models.HistoryEntry, error) {
	return r.query(ctx, historySelect+" WHERE entry_day = ? ORDER BY recorded_at DESC, id", day)
}

// ListByStudent returns a student's entries, newest first
func (r *HistoryRepository) ListByStudent(ctx context.Context, studentName string) ([]models.HistoryEntry, error) {
	return r.query(ctx, historySelect+" WHERE student_name = ? ORDER BY recorded_at DESC, id", studentName)
}

// Get retrieves an entry by id
func (r *HistoryRepository) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	entries, err := r.query(ctx, historySelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// FindByNaturalKey retrieves the entry for (student, class, theme, day)
func (r *HistoryRepository) FindByNaturalKey(ctx context.Context, studentName, className, weekTheme, day string) (*models.HistoryEntry, error) {
	query := historySelect + " WHERE student_name = ? AND class_name = ? AND week_theme = ? AND entry_day = ?"
	entries, err := r.query(ctx, query, studentName, className, weekTheme, day)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// UpsertByNaturalKey inserts entry, or, when a row with the same natural key
// exists, overwrites its challenges, available challenges and date. The stored
// row is returned, so an existing row keeps its id and week name.
func (r *HistoryRepository) UpsertByNaturalKey(ctx context.Context, entry models.HistoryEntry) (*models.HistoryEntry, error) {
	args, err := historyArgs(entry)
	if err != nil {
		return nil, err
	}
	query := r.db.Dialect.UpsertQuery("history_entries", historyColumns,
		[]string{"student_name", "class_name", "week_theme", "entry_day"},
		[]string{"challenges", "all_available_challenges", "recorded_at"},
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert history entry: %w", err)
	}

	stored, err := r.FindByNaturalKey(ctx, entry.StudentName, entry.ClassName, entry.WeekTheme, entry.Day())
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("history entry for %s vanished after upsert", entry.StudentName)
	}
	return stored, nil
}

// Update overwrites every field of the entry with the given id
func (r *HistoryRepository) Update(ctx context.Context, entry models.HistoryEntry) error {
	challenges, err := encodeList(entry.Challenges)
	if err != nil {
		return err
	}
	available, err := encodeList(entry.AllAvailableChallenges)
	if err != nil {
		return err
	}
	query := `
		UPDATE history_entries
		SET student_name = ?, class_name = ?, week_name = ?, week_theme = ?,
		    challenges = ?, all_available_challenges = ?, entry_day = ?, recorded_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.StudentName, entry.ClassName, entry.WeekName, entry.WeekTheme,
		challenges, available, entry.Day(), entry.Date.UTC(), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update history entry %s: %w", entry.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceAll deletes every entry and bulk inserts entries in one transaction.
// Entries sharing a natural key collapse to the last one given.
func (r *HistoryRepository) ReplaceAll(ctx context.Context, entries []models.HistoryEntry) error {
	entries = dedupeByNaturalKey(entries)

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM history_entries"); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}

		for start := 0; start < len(entries); start += historyInsertBatchSize {
			end := start + historyInsertBatchSize
			if end > len(entries) {
				end = len(entries)
			}
			if err := insertHistoryBatch(ctx, tx, entries[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll removes every entry and returns how many were removed
func (r *HistoryRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM history_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ClassNames returns the distinct class names that appear in the ledger
func (r *HistoryRepository) ClassNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT class_name FROM history_entries ORDER BY class_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list history classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan history class: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *HistoryRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var challenges, available string
		if err := rows.Scan(&e.ID, &e.StudentName, &e.ClassName, &e.WeekName, &e.WeekTheme, &challenges, &available, &e.Date); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if e.Challenges, err = decodeList(challenges); err != nil {
			return nil, fmt.Errorf("history entry %s: %w", e.ID, err)
		}
		if e.AllAvailableChallenges, err = decodeList(available); err != nil {
			return nil, fmt.Errorf("history entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertHistoryBatch(ctx context.Context, tx *database.Tx, batch []models.HistoryEntry) error {
	if len(batch) == 0 {
		return nil
	}
	rowPlaceholder := "(" + database.Placeholders(len(historyColumns)) + ")"
	values := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*len(historyColumns))
	for i, entry := range batch {
		entryArgs, err := historyArgs(entry)
		if err != nil {
			return err
		}
		values[i] = rowPlaceholder
		args = append(args, entryArgs...)
	}

	query := "INSERT INTO history_entries (" + strings.Join(historyColumns, ", ") + ") VALUES " + strings.Join(values, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert history batch: %w", err)
	}
	return nil
}

func historyArgs(entry models.HistoryEntry) ([]interface{}, error) {
	if entry.ID == "" {
		return nil, errors.New("history entry id is required")
	}
	challenges, err := encodeList(entry.Challenges)
	if err != nil {
		return nil, err
	}
	available, err := encodeList(entry.AllAvailableChallenges)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		entry.ID, entry.StudentName, entry.ClassName, entry.WeekName, entry.WeekTheme,
		challenges, available, entry.Day(), entry.Date.UTC(),
	}, nil
}

func dedupeByNaturalKey(entries []models.HistoryEntry) []models.HistoryEntry {
	type naturalKey struct{ student, class, theme, day string }
	index := make(map[naturalKey]int, len(entries))
	deduped := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		k := naturalKey{e.StudentName, e.ClassName, e.WeekTheme, e.Day()}
		if i, ok := index[k]; ok {
			deduped[i] = e
			continue
		}
		index[k] = len(deduped)
		deduped = append(deduped, e)
	}
	return deduped
}

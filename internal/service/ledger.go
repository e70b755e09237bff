package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"challengetracker/internal/metrics"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
)

// AllClasses is the History filter value meaning "no class filter"
const AllClasses = "All"

// HistoryFilter narrows QueryAll the way the History view does
type HistoryFilter struct {
	Search    string
	ClassName string
}

// Matches reports whether entry passes the filter
func (f HistoryFilter) Matches(entry models.HistoryEntry) bool {
	if f.ClassName != "" && f.ClassName != AllClasses && entry.ClassName != f.ClassName {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(entry.StudentName), needle) ||
		strings.Contains(strings.ToLower(entry.WeekTheme), needle)
}

// HistoryLedger maintains the day-bucketed completion log
type HistoryLedger struct {
	repo *repository.HistoryRepository
}

// NewHistoryLedger creates a new history ledger
func NewHistoryLedger(repo *repository.HistoryRepository) *HistoryLedger {
	return &HistoryLedger{repo: repo}
}

// AppendOrUpdate records the completion snapshot for (studentName, className,
// weekTheme) on the UTC day of ts. A second write on the same day overwrites
// the challenges, available challenges and date of the existing entry.
func (l *HistoryLedger) AppendOrUpdate(ctx context.Context, studentName, className, weekTheme string, challengeNames, allAvailable []string, ts time.Time) (*models.HistoryEntry, error) {
	entry := models.HistoryEntry{
		ID:                     uuid.New().String(),
		StudentName:            studentName,
		ClassName:              className,
		WeekName:               models.SessionLabel(ts),
		WeekTheme:              weekTheme,
		Challenges:             nonNil(challengeNames),
		AllAvailableChallenges: nonNil(allAvailable),
		Date:                   ts.UTC(),
	}
	stored, err := l.repo.UpsertByNaturalKey(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to record history for %s: %w", studentName, err)
	}
	metrics.HistoryWrites.WithLabelValues("append_or_update").Inc()
	return stored, nil
}

// QueryAll returns every entry, newest first
func (l *HistoryLedger) QueryAll(ctx context.Context) ([]models.HistoryEntry, error) {
	return l.repo.List(ctx)
}

// Query returns the entries matching filter, newest first
func (l *HistoryLedger) Query(ctx context.Context, filter HistoryFilter) ([]models.HistoryEntry, error) {
	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := entries[:0]
	for _, e := range entries {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// ForDay returns the entries recorded on the UTC day of t
func (l *HistoryLedger) ForDay(ctx context.Context, t time.Time) ([]models.HistoryEntry, error) {
	return l.repo.ListByDay(ctx, models.DayOf(t))
}

// ForStudent returns a student's entries, newest first
func (l *HistoryLedger) ForStudent(ctx context.Context, studentName string) ([]models.HistoryEntry, error) {
	return l.repo.ListByStudent(ctx, studentName)
}

// ReplaceAll swaps the whole ledger for entries. The delete and the inserts
// share one transaction, but a concurrent AppendOrUpdate landing between the
// caller's read and this write is lost; only one editor may use it at a time.
// Entries without an id get a fresh one.
func (l *HistoryLedger) ReplaceAll(ctx context.Context, entries []models.HistoryEntry) error {
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.New().String()
		}
		if entries[i].WeekName == "" {
			entries[i].WeekName = models.SessionLabel(entries[i].Date)
		}
		entries[i].Challenges = nonNil(entries[i].Challenges)
		entries[i].AllAvailableChallenges = nonNil(entries[i].AllAvailableChallenges)
	}
	if err := l.repo.ReplaceAll(ctx, entries); err != nil {
		return err
	}
	metrics.HistoryWrites.WithLabelValues("replace_all").Inc()
	return nil
}

// Merge upserts each entry by natural key, keeping ids of rows that already exist
func (l *HistoryLedger) Merge(ctx context.Context, entries []models.HistoryEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.WeekName == "" {
			e.WeekName = models.SessionLabel(e.Date)
		}
		e.Challenges = nonNil(e.Challenges)
		e.AllAvailableChallenges = nonNil(e.AllAvailableChallenges)
		if _, err := l.repo.UpsertByNaturalKey(ctx, e); err != nil {
			return err
		}
	}
	metrics.HistoryWrites.WithLabelValues("merge").Inc()
	return nil
}

// Clear removes every entry
func (l *HistoryLedger) Clear(ctx context.Context) (int64, error) {
	n, err := l.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	metrics.HistoryWrites.WithLabelValues("clear").Inc()
	return n, nil
}

// Get returns the entry with id, or nil when there is none
func (l *HistoryLedger) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	return l.repo.Get(ctx, id)
}

// Update overwrites a single entry by id
func (l *HistoryLedger) Update(ctx context.Context, entry models.HistoryEntry) error {
	entry.Challenges = nonNil(entry.Challenges)
	entry.AllAvailableChallenges = nonNil(entry.AllAvailableChallenges)
	if err := l.repo.Update(ctx, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHistoryEntryNotFound
		}
		return err
	}
	metrics.HistoryWrites.WithLabelValues("update").Inc()
	return nil
}

// Classes returns the distinct class names present in the ledger
func (l *HistoryLedger) Classes(ctx context.Context) ([]string, error) {
	return l.repo.ClassNames(ctx)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

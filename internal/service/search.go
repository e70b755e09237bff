package service

import (
	"context"
	"strings"

	"challengetracker/internal/models"
)

// StudentStats summarizes a student's ledger entries
type StudentStats struct {
	TotalChallenges int     `json:"totalChallenges"`
	Sessions        int     `json:"sessions"`
	AvgChallenges   float64 `json:"avgChallenges"`
	ProgressPercent float64 `json:"progressPercent"`
}

// StudentProfile is a student's history with summary stats
type StudentProfile struct {
	Name    string                `json:"name"`
	Entries []models.HistoryEntry `json:"entries"`
	Stats   *StudentStats         `json:"stats"`
}

// StudentSearch answers per-student questions over the history ledger
type StudentSearch struct {
	ledger *HistoryLedger
}

// NewStudentSearch creates a new student search
func NewStudentSearch(ledger *HistoryLedger) *StudentSearch {
	return &StudentSearch{ledger: ledger}
}

// Students returns the sorted distinct student names containing query, case-insensitively
func (s *StudentSearch) Students(ctx context.Context, query string) ([]string, error) {
	entries, err := s.ledger.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	return FilterStudentNames(entries, query), nil
}

// Profile returns a student's entries newest first with their stats.
// Stats is nil when the student has no entries.
func (s *StudentSearch) Profile(ctx context.Context, name string) (*StudentProfile, error) {
	entries, err := s.ledger.ForStudent(ctx, name)
	if err != nil {
		return nil, err
	}
	return &StudentProfile{Name: name, Entries: entries, Stats: ComputeStats(entries)}, nil
}

// FilterStudentNames returns the sorted distinct names in entries that contain query
func FilterStudentNames(entries []models.HistoryEntry, query string) []string {
	needle := strings.ToLower(query)
	set := make(map[string]bool)
	for _, e := range entries {
		if needle == "" || strings.Contains(strings.ToLower(e.StudentName), needle) {
			set[e.StudentName] = true
		}
	}
	return sortedKeys(set)
}

// ComputeStats returns nil for no entries
func ComputeStats(entries []models.HistoryEntry) *StudentStats {
	if len(entries) == 0 {
		return nil
	}
	total := 0
	for _, e := range entries {
		total += len(e.Challenges)
	}
	avg := float64(total) / float64(len(entries))
	return &StudentStats{
		TotalChallenges: total,
		Sessions:        len(entries),
		AvgChallenges:   avg,
		ProgressPercent: avg / models.ChallengesPerTheme * 100,
	}
}

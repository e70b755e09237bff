package service

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"challengetracker/internal/models"
)

const (
	masterySheet         = "Student Mastery Matrix"
	masteryStudentHeader = "Student Name"
	uncategorizedTheme   = "Uncategorized"
)

// MasteryMatrix is the student by theme export view over history entries
type MasteryMatrix struct {
	Themes   []string
	Students []string
	cells    map[string]map[string]string
}

// Cell returns the comma-joined challenges for student and theme
func (m *MasteryMatrix) Cell(student, theme string) string {
	return m.cells[student][theme]
}

// BuildMasteryMatrix collapses entries into one row per student and one
// column per theme. A cell lists every distinct challenge the student has
// completed for the theme in order of first appearance, "Done" when entries
// exist without challenges, and is empty when there are no entries.
func BuildMasteryMatrix(entries []models.HistoryEntry) *MasteryMatrix {
	themeSet := make(map[string]bool)
	studentSet := make(map[string]bool)
	type pair struct{ student, theme string }
	seen := make(map[pair]map[string]bool)
	names := make(map[pair][]string)

	for _, e := range entries {
		theme := e.WeekTheme
		if theme == "" {
			theme = uncategorizedTheme
		}
		themeSet[theme] = true
		studentSet[e.StudentName] = true

		k := pair{e.StudentName, theme}
		if seen[k] == nil {
			seen[k] = make(map[string]bool)
			names[k] = []string{}
		}
		for _, c := range e.Challenges {
			if !seen[k][c] {
				seen[k][c] = true
				names[k] = append(names[k], c)
			}
		}
	}

	m := &MasteryMatrix{
		Themes:   sortedKeys(themeSet),
		Students: sortedKeys(studentSet),
		cells:    make(map[string]map[string]string, len(studentSet)),
	}
	for k, challenges := range names {
		if m.cells[k.student] == nil {
			m.cells[k.student] = make(map[string]string)
		}
		cell := strings.Join(challenges, ", ")
		if cell == "" {
			cell = "Done"
		}
		m.cells[k.student][k.theme] = cell
	}
	return m
}

// MasteryFilename returns the download name for a workbook built on day t
func MasteryFilename(t time.Time) string {
	return fmt.Sprintf("Student_Progress_%s.xlsx", t.UTC().Format(models.DayLayout))
}

// WriteMasteryWorkbook renders the matrix as an xlsx workbook
func WriteMasteryWorkbook(w io.Writer, m *MasteryMatrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", masterySheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(m.Themes)+1)
	header = append(header, masteryStudentHeader)
	for _, theme := range m.Themes {
		header = append(header, theme)
	}
	if err := f.SetSheetRow(masterySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, student := range m.Students {
		row := make([]interface{}, 0, len(m.Themes)+1)
		row = append(row, student)
		for _, theme := range m.Themes {
			row = append(row, m.Cell(student, theme))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(masterySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", student, err)
		}
	}

	if err := f.SetColWidth(masterySheet, "A", "A", 25); err != nil {
		return err
	}
	if len(m.Themes) > 0 {
		last, err := excelize.ColumnNumberToName(len(m.Themes) + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(masterySheet, "B", last, 30); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

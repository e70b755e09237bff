package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"challengetracker/internal/models"
)

func masteryEntries() []models.HistoryEntry {
	return []models.HistoryEntry{
		{StudentName: "Bo", WeekTheme: "Gears", Challenges: []string{"Spur"}, Date: testDay},
		{StudentName: "Ada", WeekTheme: "Basics", Challenges: []string{"C", "A"}, Date: testDay},
		{StudentName: "Ada", WeekTheme: "Basics", Challenges: []string{"A", "B"}, Date: testDay.AddDate(0, 0, 1)},
		{StudentName: "Ada", WeekTheme: "Gears", Challenges: []string{}, Date: testDay},
		{StudentName: "Cy", WeekTheme: "", Challenges: []string{"X"}, Date: testDay},
	}
}

func TestBuildMasteryMatrix(t *testing.T) {
	m := BuildMasteryMatrix(masteryEntries())

	assert.Equal(t, []string{"Basics", "Gears", "Uncategorized"}, m.Themes)
	assert.Equal(t, []string{"Ada", "Bo", "Cy"}, m.Students)

	tests := []struct {
		student, theme, want string
	}{
		{"Ada", "Basics", "C, A, B"},
		{"Ada", "Gears", "Done"},
		{"Ada", "Uncategorized", ""},
		{"Bo", "Gears", "Spur"},
		{"Bo", "Basics", ""},
		{"Cy", "Uncategorized", "X"},
	}
	for _, tt := range tests {
		if got := m.Cell(tt.student, tt.theme); got != tt.want {
			t.Errorf("Cell(%q, %q) = %q, want %q", tt.student, tt.theme, got, tt.want)
		}
	}
}

func TestWriteMasteryWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMasteryWorkbook(&buf, BuildMasteryMatrix(masteryEntries())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Student Mastery Matrix"}, f.GetSheetList())
	rows, err := f.GetRows("Student Mastery Matrix")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Student Name", "Basics", "Gears", "Uncategorized"}, rows[0])
	assert.Equal(t, []string{"Ada", "C, A, B", "Done"}, rows[1])

	width, err := f.GetColWidth("Student Mastery Matrix", "A")
	require.NoError(t, err)
	assert.Equal(t, 25.0, width)
	width, err = f.GetColWidth("Student Mastery Matrix", "D")
	require.NoError(t, err)
	assert.Equal(t, 30.0, width)
}

func TestMasteryFilename(t *testing.T) {
	got := MasteryFilename(time.Date(2024, 5, 4, 23, 30, 0, 0, time.UTC))
	if got != "Student_Progress_2024-05-04.xlsx" {
		t.Errorf("MasteryFilename() = %q, want %q", got, "Student_Progress_2024-05-04.xlsx")
	}
}

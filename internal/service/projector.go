package service

import (
	"fmt"
	"math"
	"time"

	"challengetracker/internal/models"
)

// Toggle is the outcome of flipping one challenge for one student
type Toggle struct {
	Key       string
	ThemeName string
	ClassName string
	Progress  models.StudentProgress
	// Completed is true when the toggled challenge is now done
	Completed      bool
	ChallengeNames []string
	AllAvailable   []string
}

// ToggleChallenge flips challenge index (0..4) of the current week theme for
// a student in classID and writes the full sorted slot set back into the
// progress map with a fresh timestamp. The progress map is the record of
// truth; the returned names feed the history ledger.
func ToggleChallenge(state *models.AppState, classID, studentID string, index int, now time.Time) (*Toggle, error) {
	if index < 0 || index >= models.ChallengesPerTheme {
		return nil, fmt.Errorf("%w: %d", ErrChallengeIndex, index)
	}
	theme := state.CurrentTheme()
	if theme == nil {
		return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
	}
	class := theme.Class(classID)
	if class == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	student := findStudent(class.Students, studentID)
	if student == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrStudentNotFound, studentID, classID)
	}

	key := models.ProgressKey(classID, studentID, theme.Name)
	slot := models.ChallengeSlotID(index)
	current := state.Progress[key]

	completed := !current.HasSlot(slot)
	var next []string
	for _, s := range current.ChallengesCompleted {
		if s != slot {
			next = append(next, s)
		}
	}
	if completed {
		next = append(next, slot)
	}

	progress := setProgress(state, key, studentID, student.Name, next, now)
	return &Toggle{
		Key:            key,
		ThemeName:      theme.Name,
		ClassName:      class.Name,
		Progress:       progress,
		Completed:      completed,
		ChallengeNames: SlotsToNames(theme, progress.ChallengesCompleted),
		AllAvailable:   append([]string(nil), theme.Challenges...),
	}, nil
}

// SetCompleted replaces the completed slot set for (classID, studentID, themeName)
func SetCompleted(state *models.AppState, classID, studentID, studentName, themeName string, slots []string, now time.Time) models.StudentProgress {
	key := models.ProgressKey(classID, studentID, themeName)
	return setProgress(state, key, studentID, studentName, slots, now)
}

func setProgress(state *models.AppState, key, studentID, studentName string, slots []string, now time.Time) models.StudentProgress {
	if state.Progress == nil {
		state.Progress = make(map[string]models.StudentProgress)
	}
	progress := models.StudentProgress{
		StudentID:           studentID,
		StudentName:         studentName,
		ChallengesCompleted: models.NormalizeSlots(slots),
		Timestamp:           now.UTC(),
	}
	state.Progress[key] = progress
	return progress
}

// Completion returns one flag per challenge slot for the given key
func Completion(state *models.AppState, classID, studentID, themeName string) [models.ChallengesPerTheme]bool {
	var done [models.ChallengesPerTheme]bool
	progress, ok := state.Progress[models.ProgressKey(classID, studentID, themeName)]
	if !ok {
		return done
	}
	for _, slot := range progress.ChallengesCompleted {
		if idx := models.ChallengeSlotIndex(slot); idx >= 0 {
			done[idx] = true
		}
	}
	return done
}

// CompletedCount returns how many challenges are done for the given key
func CompletedCount(state *models.AppState, classID, studentID, themeName string) int {
	count := 0
	for _, done := range Completion(state, classID, studentID, themeName) {
		if done {
			count++
		}
	}
	return count
}

// Percent converts a completed-challenge count into a whole percentage
func Percent(count int) int {
	return int(math.Round(float64(count) / models.ChallengesPerTheme * 100))
}

// SlotsToNames translates slot ids into the theme's challenge names
func SlotsToNames(theme *models.Theme, slots []string) []string {
	names := []string{}
	for _, slot := range models.NormalizeSlots(slots) {
		names = append(names, theme.ChallengeName(models.ChallengeSlotIndex(slot)))
	}
	return names
}

// NamesToSlots maps challenge names back to slot ids by their position in
// available. Names not found are dropped.
func NamesToSlots(names, available []string) []string {
	var slots []string
	for _, name := range names {
		for i, candidate := range available {
			if candidate == name && i < models.ChallengesPerTheme {
				slots = append(slots, models.ChallengeSlotID(i))
				break
			}
		}
	}
	return models.NormalizeSlots(slots)
}

func findStudent(students []models.Student, id string) *models.Student {
	for i := range students {
		if students[i].ID == id {
			return &students[i]
		}
	}
	return nil
}

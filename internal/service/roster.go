package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"challengetracker/internal/models"
	"challengetracker/internal/validation"
)

// Roster and theme administration. Every operation goes through Mutate, so a
// failed validation leaves the snapshot untouched and a success schedules a save.

// AddStudent creates a student and places them in the unassigned pool of every theme
func (w *Workspace) AddStudent(name string) (models.Student, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return models.Student{}, err
	}
	student := models.Student{ID: uuid.New().String(), Name: name}
	err := w.Mutate(func(state *models.AppState) error {
		for i := range state.Themes {
			pool := state.Themes[i].Class(models.UnassignedClassID)
			if pool == nil {
				return fmt.Errorf("%w: %s in %q", ErrClassNotFound, models.UnassignedClassID, state.Themes[i].Name)
			}
			pool.Students = append(pool.Students, student)
		}
		return nil
	})
	return student, err
}

// RenameStudent renames a student in every theme and in their progress entries
func (w *Workspace) RenameStudent(studentID, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return err
	}
	return w.Mutate(func(state *models.AppState) error {
		found := false
		for i := range state.Themes {
			for j := range state.Themes[i].Classes {
				students := state.Themes[i].Classes[j].Students
				for k := range students {
					if students[k].ID == studentID {
						students[k].Name = name
						found = true
					}
				}
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
		}
		for key, p := range state.Progress {
			if p.StudentID == studentID {
				p.StudentName = name
				state.Progress[key] = p
			}
		}
		return nil
	})
}

// RemoveStudent drops a student from the current week theme's roster. The
// student and their progress stay in the store.
func (w *Workspace) RemoveStudent(studentID string) error {
	return w.Mutate(func(state *models.AppState) error {
		theme := state.CurrentTheme()
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
		}
		if removeFromTheme(theme, studentID) == nil {
			return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
		}
		return nil
	})
}

// MoveStudents moves students of the current week theme into targetClassID,
// keeping their order of appearance in ids
func (w *Workspace) MoveStudents(studentIDs []string, targetClassID string) error {
	return w.Mutate(func(state *models.AppState) error {
		theme := state.CurrentTheme()
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
		}
		if theme.Class(targetClassID) == nil {
			return fmt.Errorf("%w: %s", ErrClassNotFound, targetClassID)
		}
		moved := make([]models.Student, 0, len(studentIDs))
		for _, id := range studentIDs {
			student := removeFromTheme(theme, id)
			if student == nil {
				return fmt.Errorf("%w: %s", ErrStudentNotFound, id)
			}
			moved = append(moved, *student)
		}
		target := theme.Class(targetClassID)
		target.Students = append(target.Students, moved...)
		return nil
	})
}

// removeFromTheme takes a student out of whichever class holds them
func removeFromTheme(theme *models.Theme, studentID string) *models.Student {
	for i := range theme.Classes {
		students := theme.Classes[i].Students
		for j, s := range students {
			if s.ID != studentID {
				continue
			}
			removed := s
			theme.Classes[i].Students = append(students[:j:j], students[j+1:]...)
			return &removed
		}
	}
	return nil
}

// RenameClass changes a class label in the current week theme
func (w *Workspace) RenameClass(classID, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return err
	}
	return w.Mutate(func(state *models.AppState) error {
		theme := state.CurrentTheme()
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
		}
		class := theme.Class(classID)
		if class == nil {
			return fmt.Errorf("%w: %s", ErrClassNotFound, classID)
		}
		class.Name = name
		return nil
	})
}

// CreateTheme adds a theme with placeholder challenges and every known
// student unassigned, and makes it the current week theme
func (w *Workspace) CreateTheme(name string) (models.Theme, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateThemeName(name); err != nil {
		return models.Theme{}, err
	}
	var created models.Theme
	err := w.Mutate(func(state *models.AppState) error {
		if state.ThemeByName(name) != nil {
			return fmt.Errorf("%w: %q", ErrThemeExists, name)
		}
		created = models.NewTheme(name, w.Slots(), state.GlobalStudents())
		state.Themes = append(state.Themes, created)
		state.CurrentWeekTheme = name
		return nil
	})
	return created, err
}

// RenameTheme renames a theme, following it in the settings and re-keying its progress entries
func (w *Workspace) RenameTheme(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := validation.ValidateThemeName(newName); err != nil {
		return err
	}
	return w.Mutate(func(state *models.AppState) error {
		theme := state.ThemeByName(oldName)
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, oldName)
		}
		if oldName == newName {
			return nil
		}
		if state.ThemeByName(newName) != nil {
			return fmt.Errorf("%w: %q", ErrThemeExists, newName)
		}
		theme.Name = newName
		if state.CurrentWeekTheme == oldName {
			state.CurrentWeekTheme = newName
		}
		if state.PublicThemeName == oldName {
			state.PublicThemeName = newName
		}

		rekeyed := make(map[string]models.StudentProgress, len(state.Progress))
		for key, p := range state.Progress {
			classID, studentID, themeName, err := models.SplitProgressKey(key)
			if err == nil && themeName == oldName {
				key = models.ProgressKey(classID, studentID, newName)
			}
			rekeyed[key] = p
		}
		state.Progress = rekeyed
		return nil
	})
}

// RenameChallenge renames one challenge of the current week theme. The list
// is never reordered or shortened, so completed slots keep their meaning.
func (w *Workspace) RenameChallenge(index int, name string) error {
	name = strings.TrimSpace(name)
	if index < 0 || index >= models.ChallengesPerTheme {
		return fmt.Errorf("%w: %d", ErrChallengeIndex, index)
	}
	if err := validation.ValidateChallenge(index, name); err != nil {
		return err
	}
	return w.Mutate(func(state *models.AppState) error {
		theme := state.CurrentTheme()
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
		}
		theme.Challenges[index] = name
		return nil
	})
}

// SetChallengeImage sets or clears the image of one challenge of the current week theme
func (w *Workspace) SetChallengeImage(index int, image string) error {
	if index < 0 || index >= models.ChallengesPerTheme {
		return fmt.Errorf("%w: %d", ErrChallengeIndex, index)
	}
	if err := validation.ValidateImage(image); err != nil {
		return err
	}
	return w.Mutate(func(state *models.AppState) error {
		theme := state.CurrentTheme()
		if theme == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, state.CurrentWeekTheme)
		}
		if len(theme.ChallengeImages) < models.ChallengesPerTheme {
			images := make([]string, models.ChallengesPerTheme)
			copy(images, theme.ChallengeImages)
			theme.ChallengeImages = images
		}
		theme.ChallengeImages[index] = image
		return nil
	})
}

// SelectTheme sets the instructor's current week theme
func (w *Workspace) SelectTheme(name string) error {
	return w.Mutate(func(state *models.AppState) error {
		if state.ThemeByName(name) == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, name)
		}
		state.CurrentWeekTheme = name
		return nil
	})
}

// SelectClass sets the dashboard's selected class
func (w *Workspace) SelectClass(classID string) error {
	return w.Mutate(func(state *models.AppState) error {
		if !w.reconciler.isCanonical(classID) {
			return fmt.Errorf("%w: %s", ErrClassNotFound, classID)
		}
		state.SelectedClassID = classID
		return nil
	})
}

// SetPublicTheme sets the theme shown on public displays
func (w *Workspace) SetPublicTheme(name string) error {
	return w.Mutate(func(state *models.AppState) error {
		if state.ThemeByName(name) == nil {
			return fmt.Errorf("%w: %q", ErrThemeNotFound, name)
		}
		state.PublicThemeName = name
		return nil
	})
}

// SetPublicClass sets the class shown on public displays
func (w *Workspace) SetPublicClass(classID string) error {
	return w.Mutate(func(state *models.AppState) error {
		if !w.reconciler.isCanonical(classID) {
			return fmt.Errorf("%w: %s", ErrClassNotFound, classID)
		}
		state.PublicClassID = classID
		return nil
	})
}

// Import replaces the snapshot with a decoded backup or legacy snapshot.
// Themes already in the store keep their ids so a save updates them in place.
func (w *Workspace) Import(imported *models.AppState) error {
	imported = imported.Clone()
	w.reconciler.Scaffold(imported)
	return w.Mutate(func(state *models.AppState) error {
		for i := range imported.Themes {
			imported.Themes[i].ID = 0
			if existing := state.ThemeByName(imported.Themes[i].Name); existing != nil {
				imported.Themes[i].ID = existing.ID
			}
		}
		*state = *imported
		// Mutate holds w.mu while fn runs
		w.epoch++
		return nil
	})
}

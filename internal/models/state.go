package models

// Settings keys persisted in the key/value table
const (
	SettingCurrentWeekTheme = "currentWeekTheme"
	SettingPublicThemeName  = "publicThemeName"
	SettingPublicClassID    = "publicClassId"
	SettingSelectedClassID  = "selectedClassId"
)

// SettingKeys lists every persisted settings key
var SettingKeys = []string{
	SettingCurrentWeekTheme,
	SettingPublicThemeName,
	SettingPublicClassID,
	SettingSelectedClassID,
}

// AppState is the denormalized snapshot every view works on
type AppState struct {
	Themes           []Theme                    `json:"themes"`
	CurrentWeekTheme string                     `json:"currentWeekTheme"`
	PublicThemeName  string                     `json:"publicThemeName"`
	PublicClassID    string                     `json:"publicClassId"`
	SelectedClassID  string                     `json:"selectedClassId"`
	Progress         map[string]StudentProgress `json:"progress"`
}

// DefaultAppState is the bootstrap snapshot used when the store is empty or unreachable
func DefaultAppState(slots []ClassSlot) *AppState {
	theme := DefaultTheme(slots)
	firstClass := ""
	if len(slots) > 0 {
		firstClass = slots[0].ID
	}
	return &AppState{
		Themes:           []Theme{theme},
		CurrentWeekTheme: theme.Name,
		PublicThemeName:  theme.Name,
		PublicClassID:    firstClass,
		SelectedClassID:  firstClass,
		Progress:         map[string]StudentProgress{},
	}
}

// Setting returns the value of a persisted settings key
func (s *AppState) Setting(key string) string {
	switch key {
	case SettingCurrentWeekTheme:
		return s.CurrentWeekTheme
	case SettingPublicThemeName:
		return s.PublicThemeName
	case SettingPublicClassID:
		return s.PublicClassID
	case SettingSelectedClassID:
		return s.SelectedClassID
	}
	return ""
}

// ThemeByName returns the theme with the given name
func (s *AppState) ThemeByName(name string) *Theme {
	for i := range s.Themes {
		if s.Themes[i].Name == name {
			return &s.Themes[i]
		}
	}
	return nil
}

// CurrentTheme returns the instructor's active theme
func (s *AppState) CurrentTheme() *Theme {
	return s.ThemeByName(s.CurrentWeekTheme)
}

// GlobalStudents returns every distinct student across all themes, in first-seen order
func (s *AppState) GlobalStudents() []Student {
	seen := make(map[string]bool)
	var students []Student
	for _, theme := range s.Themes {
		for _, class := range theme.Classes {
			for _, student := range class.Students {
				if seen[student.ID] {
					continue
				}
				seen[student.ID] = true
				students = append(students, student)
			}
		}
	}
	return students
}

// Clone returns a deep copy so callers can mutate without sharing slices or maps
func (s *AppState) Clone() *AppState {
	clone := &AppState{
		CurrentWeekTheme: s.CurrentWeekTheme,
		PublicThemeName:  s.PublicThemeName,
		PublicClassID:    s.PublicClassID,
		SelectedClassID:  s.SelectedClassID,
		Themes:           make([]Theme, len(s.Themes)),
		Progress:         make(map[string]StudentProgress, len(s.Progress)),
	}
	for i, theme := range s.Themes {
		t := theme
		t.Challenges = append([]string(nil), theme.Challenges...)
		if theme.ChallengeImages != nil {
			t.ChallengeImages = append([]string(nil), theme.ChallengeImages...)
		}
		t.Classes = make([]ClassSession, len(theme.Classes))
		for j, class := range theme.Classes {
			c := class
			c.Students = append([]Student{}, class.Students...)
			t.Classes[j] = c
		}
		clone.Themes[i] = t
	}
	for key, progress := range s.Progress {
		p := progress
		p.ChallengesCompleted = append([]string{}, progress.ChallengesCompleted...)
		clone.Progress[key] = p
	}
	return clone
}

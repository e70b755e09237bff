package handlers

import (
	"time"

	"challengetracker/internal/models"
	"challengetracker/internal/service"
)

// StudentRow is one student line of a class grid
type StudentRow struct {
	ID        string                          `json:"id"`
	Name      string                          `json:"name"`
	Completed [models.ChallengesPerTheme]bool `json:"completed"`
	Percent   int                             `json:"percent"`
}

// ClassView is a class of the selected theme with per-student completion
type ClassView struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Students []StudentRow `json:"students"`
}

// ThemeView carries a theme's challenges and the classes to render
type ThemeView struct {
	Name            string      `json:"name"`
	Challenges      []string    `json:"challenges"`
	ChallengeImages []string    `json:"challengeImages,omitempty"`
	Classes         []ClassView `json:"classes"`
}

type DashboardViewData struct {
	State      *models.AppState   `json:"state"`
	Current    *ThemeView         `json:"current"`
	Slots      []models.ClassSlot `json:"slots"`
	SaveStatus service.SaveStatus `json:"saveStatus"`
}

type PublicViewData struct {
	Themes        []string   `json:"themes"`
	PublicTheme   string     `json:"publicThemeName"`
	PublicClassID string     `json:"publicClassId"`
	Theme         *ThemeView `json:"theme"`
	Class         *ClassView `json:"class"`
	LastError     string     `json:"lastError,omitempty"`
}

type HistoryViewData struct {
	Entries []models.HistoryEntry `json:"entries"`
	Classes []string              `json:"classes"`
}

type LoginResponse struct {
	CSRFToken string    `json:"csrfToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// buildThemeView projects progress onto every class of theme
func buildThemeView(state *models.AppState, theme *models.Theme) *ThemeView {
	if theme == nil {
		return nil
	}
	view := &ThemeView{
		Name:            theme.Name,
		Challenges:      theme.Challenges,
		ChallengeImages: theme.ChallengeImages,
		Classes:         make([]ClassView, 0, len(theme.Classes)),
	}
	for _, class := range theme.Classes {
		view.Classes = append(view.Classes, buildClassView(state, theme.Name, class))
	}
	return view
}

func buildClassView(state *models.AppState, themeName string, class models.ClassSession) ClassView {
	view := ClassView{ID: class.ID, Name: class.Name, Students: make([]StudentRow, 0, len(class.Students))}
	for _, s := range class.Students {
		done := service.Completion(state, class.ID, s.ID, themeName)
		count := 0
		for _, d := range done {
			if d {
				count++
			}
		}
		view.Students = append(view.Students, StudentRow{
			ID:        s.ID,
			Name:      s.Name,
			Completed: done,
			Percent:   service.Percent(count),
		})
	}
	return view
}

func themeNames(state *models.AppState) []string {
	names := make([]string, 0, len(state.Themes))
	for _, t := range state.Themes {
		names = append(names, t.Name)
	}
	return names
}

package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type legacyState struct {
	Themes           *[]legacyTheme            `json:"themes"`
	Classes          []ClassSession            `json:"classes"`
	CurrentWeekTheme string                    `json:"currentWeekTheme"`
	PublicThemeName  string                    `json:"publicThemeName"`
	PublicClassID    string                    `json:"publicClassId"`
	SelectedClassID  string                    `json:"selectedClassId"`
	Progress         map[string]legacyProgress `json:"progress"`
}

type legacyTheme struct {
	Name            string          `json:"name"`
	Challenges      []string        `json:"challenges"`
	ChallengeImages []string        `json:"challengeImages"`
	Classes         *[]ClassSession `json:"classes"`
}

type legacyProgress struct {
	StudentID           string          `json:"studentId"`
	StudentName         string          `json:"studentName"`
	ChallengesCompleted []string        `json:"challengesCompleted"`
	Timestamp           json.RawMessage `json:"timestamp"`
}

// DecodeLegacyState reads a snapshot in any shape the app has ever persisted:
// a flat top-level roster shared by all themes, no themes at all, epoch
// millisecond timestamps, or missing public display fields. The result still
// needs scaffolding against the canonical class slots.
func DecodeLegacyState(raw []byte, slots []ClassSlot) (*AppState, error) {
	var legacy legacyState
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	state := &AppState{
		CurrentWeekTheme: legacy.CurrentWeekTheme,
		PublicThemeName:  legacy.PublicThemeName,
		PublicClassID:    legacy.PublicClassID,
		SelectedClassID:  legacy.SelectedClassID,
		Progress:         make(map[string]StudentProgress, len(legacy.Progress)),
	}

	if legacy.Themes == nil {
		theme := DefaultTheme(slots)
		if legacy.Classes != nil {
			theme.Classes = cloneClasses(legacy.Classes)
		}
		state.Themes = []Theme{theme}
	} else {
		for _, lt := range *legacy.Themes {
			theme := Theme{
				Name:            lt.Name,
				Challenges:      lt.Challenges,
				ChallengeImages: lt.ChallengeImages,
			}
			switch {
			case lt.Classes != nil:
				theme.Classes = *lt.Classes
			case legacy.Classes != nil:
				theme.Classes = cloneClasses(legacy.Classes)
			}
			state.Themes = append(state.Themes, theme)
		}
	}

	if state.CurrentWeekTheme == "" && len(state.Themes) > 0 {
		state.CurrentWeekTheme = state.Themes[0].Name
	}
	if state.PublicThemeName == "" {
		state.PublicThemeName = state.CurrentWeekTheme
	}
	if state.PublicClassID == "" {
		state.PublicClassID = state.SelectedClassID
	}

	for key, lp := range legacy.Progress {
		ts, err := parseLegacyTimestamp(lp.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("progress %q: %w", key, err)
		}
		state.Progress[key] = StudentProgress{
			StudentID:           lp.StudentID,
			StudentName:         lp.StudentName,
			ChallengesCompleted: NormalizeSlots(lp.ChallengesCompleted),
			Timestamp:           ts,
		}
	}

	return state, nil
}

func cloneClasses(classes []ClassSession) []ClassSession {
	cloned := make([]ClassSession, len(classes))
	for i, c := range classes {
		c.Students = append([]Student{}, c.Students...)
		cloned[i] = c
	}
	return cloned
}

// parseLegacyTimestamp accepts epoch milliseconds or an RFC 3339 string
func parseLegacyTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

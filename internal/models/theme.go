package models

import (
	"fmt"
	"strings"
)

// ChallengesPerTheme is the fixed number of challenges in every theme
const ChallengesPerTheme = 5

// UnassignedClassID is the pseudo-slot holding students without a timeslot
const UnassignedClassID = "unassigned"

// ClassSlot is one entry of the canonical class enumeration
type ClassSlot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultClassSlots is the canonical enumeration every theme is scaffolded with
var DefaultClassSlots = []ClassSlot{
	{ID: "sat-am1", Name: "Sat AM1"},
	{ID: "sun-am1", Name: "Sun AM1"},
	{ID: "sun-am2", Name: "Sun AM2"},
	{ID: "sun-pm1", Name: "Sun PM1"},
	{ID: "sun-pm2", Name: "Sun PM2"},
	{ID: UnassignedClassID, Name: "Unassigned"},
}

// ParseClassSlots parses "id:Label" items. The unassigned slot is appended when absent.
func ParseClassSlots(items []string) ([]ClassSlot, error) {
	if len(items) == 0 {
		return DefaultClassSlots, nil
	}

	seen := make(map[string]bool)
	slots := make([]ClassSlot, 0, len(items)+1)
	for _, item := range items {
		id, name, ok := strings.Cut(item, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid class slot %q, want id:Label", item)
		}
		if strings.Contains(id, "_") {
			return nil, fmt.Errorf("class slot id %q must not contain '_'", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate class slot %q", id)
		}
		seen[id] = true
		slots = append(slots, ClassSlot{ID: id, Name: name})
	}
	if !seen[UnassignedClassID] {
		slots = append(slots, ClassSlot{ID: UnassignedClassID, Name: "Unassigned"})
	}
	return slots, nil
}

// Student is a global learner identity shared across themes
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassSession is one timeslot roster inside a theme
type ClassSession struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Students []Student `json:"students"`
}

// HasStudent reports whether the roster contains studentID
func (c *ClassSession) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// Theme is a rotating curriculum unit with its own challenges and roster
type Theme struct {
	ID              int64          `json:"id,omitempty"`
	Name            string         `json:"name"`
	Challenges      []string       `json:"challenges"`
	ChallengeImages []string       `json:"challengeImages,omitempty"`
	Classes         []ClassSession `json:"classes"`
}

// Class returns the class session with the given id
func (t *Theme) Class(classID string) *ClassSession {
	for i := range t.Classes {
		if t.Classes[i].ID == classID {
			return &t.Classes[i]
		}
	}
	return nil
}

// ClassByName returns the first class session with the given display name
func (t *Theme) ClassByName(name string) *ClassSession {
	for i := range t.Classes {
		if t.Classes[i].Name == name {
			return &t.Classes[i]
		}
	}
	return nil
}

// ChallengeName returns the display name for a challenge slot index,
// falling back to the slot id when the theme has no name at that index.
func (t *Theme) ChallengeName(index int) string {
	if index >= 0 && index < len(t.Challenges) && t.Challenges[index] != "" {
		return t.Challenges[index]
	}
	return ChallengeSlotID(index)
}

// DefaultThemeName is used when the store holds no themes
const DefaultThemeName = "Momentum Turning"

// DefaultChallenges are the challenges of the bootstrap theme
var DefaultChallenges = []string{
	"Square Turning Right",
	"Square Turning Left",
	"4 Squares In Butterfly",
	"Triangle",
	"Hexagon",
}

// EmptyClasses builds one empty class session per slot
func EmptyClasses(slots []ClassSlot) []ClassSession {
	classes := make([]ClassSession, len(slots))
	for i, slot := range slots {
		classes[i] = ClassSession{ID: slot.ID, Name: slot.Name, Students: []Student{}}
	}
	return classes
}

// NewTheme builds a theme with placeholder challenges, blank images and every
// given student waiting in the unassigned pool.
func NewTheme(name string, slots []ClassSlot, students []Student) Theme {
	challenges := make([]string, ChallengesPerTheme)
	for i := range challenges {
		challenges[i] = fmt.Sprintf("Challenge %d", i+1)
	}
	classes := EmptyClasses(slots)
	for i := range classes {
		if classes[i].ID == UnassignedClassID {
			classes[i].Students = append(classes[i].Students, students...)
		}
	}
	return Theme{
		Name:            name,
		Challenges:      challenges,
		ChallengeImages: make([]string, ChallengesPerTheme),
		Classes:         classes,
	}
}

// DefaultTheme returns the bootstrap theme
func DefaultTheme(slots []ClassSlot) Theme {
	return Theme{
		Name:       DefaultThemeName,
		Challenges: append([]string(nil), DefaultChallenges...),
		Classes:    EmptyClasses(slots),
	}
}

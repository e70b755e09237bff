package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedProgressKey is returned when a progress map key cannot be split
var ErrMalformedProgressKey = errors.New("malformed progress key")

const progressKeySeparator = "_"

// StudentProgress is the current completion set for one (class, student, theme)
type StudentProgress struct {
	StudentID           string    `json:"studentId"`
	StudentName         string    `json:"studentName"`
	ChallengesCompleted []string  `json:"challengesCompleted"`
	Timestamp           time.Time `json:"timestamp"`
}

// ProgressKey builds the composite progress map key classId_studentId_themeName
func ProgressKey(classID, studentID, themeName string) string {
	return classID + progressKeySeparator + studentID + progressKeySeparator + themeName
}

// SplitProgressKey decomposes a progress map key. The first two segments are
// ids; everything after the second separator is the theme name, which may
// itself contain underscores.
func SplitProgressKey(key string) (classID, studentID, themeName string, err error) {
	parts := strings.SplitN(key, progressKeySeparator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedProgressKey, key)
	}
	return parts[0], parts[1], parts[2], nil
}

// ChallengeSlotID returns the positional id (c1..c5) for a zero-based index
func ChallengeSlotID(index int) string {
	return "c" + strconv.Itoa(index+1)
}

// ChallengeSlotIndex returns the zero-based index of a slot id, or -1
func ChallengeSlotIndex(slotID string) int {
	if !strings.HasPrefix(slotID, "c") {
		return -1
	}
	n, err := strconv.Atoi(slotID[1:])
	if err != nil || n < 1 || n > ChallengesPerTheme {
		return -1
	}
	return n - 1
}

// NormalizeSlots drops unknown and duplicate slot ids and orders the rest c1..c5
func NormalizeSlots(slots []string) []string {
	seen := make(map[int]bool, len(slots))
	indexes := make([]int, 0, len(slots))
	for _, slot := range slots {
		idx := ChallengeSlotIndex(slot)
		if idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	normalized := make([]string, len(indexes))
	for i, idx := range indexes {
		normalized[i] = ChallengeSlotID(idx)
	}
	return normalized
}

// HasSlot reports whether the completed set contains slotID
func (p StudentProgress) HasSlot(slotID string) bool {
	for _, s := range p.ChallengesCompleted {
		if s == slotID {
			return true
		}
	}
	return false
}

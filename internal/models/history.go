package models

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format used in the history natural key
const DayLayout = "2006-01-02"

// HistoryEntry is one day-bucketed completion snapshot in the ledger.
// Its identity for upserts is (StudentName, ClassName, WeekTheme, Day()), not ID.
type HistoryEntry struct {
	ID                     string    `json:"id"`
	StudentName            string    `json:"studentName"`
	ClassName              string    `json:"className"`
	WeekName               string    `json:"weekName"`
	WeekTheme              string    `json:"weekTheme"`
	Challenges             []string  `json:"challenges"`
	AllAvailableChallenges []string  `json:"allAvailableChallenges"`
	Date                   time.Time `json:"date"`
}

// Day returns the UTC calendar day of the entry
func (e HistoryEntry) Day() string {
	return DayOf(e.Date)
}

// DayOf returns the UTC calendar day of t as YYYY-MM-DD
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// SessionLabel builds the generated weekName for a new entry
func SessionLabel(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("Session %d/%d/%d", int(t.Month()), t.Day(), t.Year())
}

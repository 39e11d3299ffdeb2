// Package standup holds the domain types shared by all standupscot packages: channel members,
// standup records, canonical dates and the error taxonomy
package standup

import (
	"fmt"
	"time"
)

// DateLayout is the canonical layout of every date handled by standupscot (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// Member represents a user currently present in the monitored channel, as last refreshed from
// the chat platform
type Member struct {
	Username string `json:"username" db:"username"`
}

// Record represents a single day's standup update for one user. Previous and Blockers
// are optional and a nil value means the user didn't provide one
type Record struct {
	Username   string  `json:"username" db:"username"`
	Team       string  `json:"team" db:"team"`
	DatePosted string  `json:"date_posted" db:"date_posted"`
	Today      string  `json:"standup_today" db:"standup_today"`
	Previous   *string `json:"standup_previous" db:"standup_previous"`
	Blockers   *string `json:"blockers" db:"blockers"`
}

// String returns a short description of the record suitable for logging
func (r Record) String() string {
	return fmt.Sprintf("%s@%s (%s)", r.Username, r.DatePosted, r.Team)
}

// Optional returns a pointer to s or nil if s is empty. It's meant to convert
// free-form input where an empty value means "not specified"
func Optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// ParseDate validates a date value and returns it in its canonical form
func ParseDate(value string) (date string, err error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid date [%s], expected format YYYY-MM-DD: %v", value, err)
	}

	return t.Format(DateLayout), nil
}

// FormatDate returns the canonical date for the instant t as seen in the time location loc
func FormatDate(t time.Time, loc *time.Location) (date string) {
	return t.In(loc).Format(DateLayout)
}

// DaysBefore returns the canonical date n days before date
func DaysBefore(date string, n int) (before string, err error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date [%s], expected format YYYY-MM-DD: %v", date, err)
	}

	return t.AddDate(0, 0, -n).Format(DateLayout), nil
}

// HumanDate renders a canonical date the way it's shown in channel messages (i.e. "Jan 2nd 2024").
// Invalid dates are returned untouched
func HumanDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}

	return fmt.Sprintf("%s %d%s %d", t.Format("Jan"), t.Day(), ordinalSuffix(t.Day()), t.Year())
}

// ordinalSuffix returns the english ordinal suffix for a day of the month
func ordinalSuffix(day int) string {
	switch {
	case day >= 11 && day <= 13:
		return "th"
	case day%10 == 1:
		return "st"
	case day%10 == 2:
		return "nd"
	case day%10 == 3:
		return "rd"
	default:
		return "th"
	}
}

package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// NormalizeDate truncates t to its UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}

// DaysBetween counts whole calendar days from -> to. Negative when to is earlier.
func DaysBetween(from, to time.Time) int {
	// Unix seconds, not time.Duration, which overflows past ~292 years
	return int((NormalizeDate(to).Unix() - NormalizeDate(from).Unix()) / secondsPerDay)
}

// DueDate is issueDate + loanPeriodDays.
func DueDate(issueDate time.Time, loanPeriodDays int) time.Time {
	return NormalizeDate(issueDate).AddDate(0, 0, loanPeriodDays)
}

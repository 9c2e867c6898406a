// Package timeutil provides calendar-day utilities for streak accounting.
// Streaks count consecutive UTC days with at least one learning activity,
// so every comparison here is done on day boundaries in UTC.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// StartOfDay returns the start of the day (00:00:00 UTC) for t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DaysBetween returns the number of whole UTC days from a to b.
// Positive when b is after a, negative when before.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// IsYesterday reports whether t falls on the UTC day before ref.
func IsYesterday(t, ref time.Time) bool {
	return DaysBetween(t, ref) == 1
}

// EndOfDay returns the last nanosecond of the UTC day for t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// FormatDate formats t as an ISO date (YYYY-MM-DD) in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses an ISO date (YYYY-MM-DD) as a UTC day start.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

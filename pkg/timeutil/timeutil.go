// Package timeutil provides calendar-date utilities for the clinical program.
// Attendance, makeup due dates and clinical logs are all keyed by a local
// calendar date (YYYY-MM-DD) in the program's timezone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DateLayout is the canonical calendar-date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// FormatHuman is a report-friendly date (Mon, Jan 2 2006).
const FormatHuman = "Mon, Jan 2 2006"

// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("timeutil: invalid date, expected YYYY-MM-DD")

var (
	locMu    sync.RWMutex
	location = time.UTC
)

// SetLocation sets the program timezone used for "today" and date math.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	locMu.Lock()
	location = loc
	locMu.Unlock()
}

// Location returns the program timezone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return location
}

// Now returns the current time in the program timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Today returns the current calendar date as YYYY-MM-DD.
func Today() string {
	return Now().Format(DateLayout)
}

// ParseDate parses a calendar date (YYYY-MM-DD) in the program timezone.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// IsValidDate reports whether value is a well-formed calendar date.
func IsValidDate(value string) bool {
	_, err := ParseDate(value)
	return err == nil
}

// FormatDate formats t as YYYY-MM-DD in the program timezone.
func FormatDate(t time.Time) string {
	return t.In(Location()).Format(DateLayout)
}

// AddDays returns the calendar date n days after date.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DaysBetween returns the whole number of days from a to b (negative when b is before a).
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// InRange reports whether date lies within [from, to]. Empty bounds are open.
// YYYY-MM-DD strings order lexically, so no parsing is needed.
func InRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}

// FormatHumanDate renders a YYYY-MM-DD date for reports. Invalid input is returned as is.
func FormatHumanDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format(FormatHuman)
}

// Package attendance models daily attendance outcomes for classroom and
// clinical sessions. A record is keyed by (student, date, type) and a day's
// submission replaces whatever was recorded for the same keys before.
package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Type is the kind of session attendance was taken for.
type Type string

const (
	TypeClassroom Type = "classroom"
	TypeClinical  Type = "clinical"
)

// ParseType accepts any casing.
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeClassroom:
		return TypeClassroom, true
	case TypeClinical:
		return TypeClinical, true
	}
	return "", false
}

// Status is the attendance outcome.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusTardy   Status = "Tardy"
	StatusExcused Status = "Excused"
	StatusPartial Status = "Partial"
)

// ParseStatus accepts any casing.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return StatusPresent, true
	case "absent":
		return StatusAbsent, true
	case "tardy":
		return StatusTardy, true
	case "excused":
		return StatusExcused, true
	case "partial":
		return StatusPartial, true
	}
	return "", false
}

// Record is one attendance outcome for one student on one day.
type Record struct {
	ID            string
	StudentID     string
	Date          string // YYYY-MM-DD
	Type          Type
	Status        Status
	HoursRequired float64
	// HoursAttended is set iff Status is Partial.
	HoursAttended *float64
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordID derives the deterministic id for (student, date, type).
func RecordID(studentID, date string, t Type) string {
	return fmt.Sprintf("ATT-%s-%s-%s", studentID, date, t)
}

// Attended returns the hours attended, 0 when not Partial.
func (r *Record) Attended() float64 {
	if r.HoursAttended == nil {
		return 0
	}
	return *r.HoursAttended
}

// Shortfall is the clinical time the student missed.
// Present, Tardy and Excused never have a shortfall.
func (r *Record) Shortfall() float64 {
	switch r.Status {
	case StatusAbsent:
		return r.HoursRequired
	case StatusPartial:
		return r.HoursRequired - r.Attended()
	default:
		return 0
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	if r.HoursAttended != nil {
		h := *r.HoursAttended
		c.HoursAttended = &h
	}
	return &c
}

// Hours is a small helper for building optional hour values.
func Hours(h float64) *float64 {
	return &h
}

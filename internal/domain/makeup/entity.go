// Package makeup models makeup-hours obligations: clinical time a student
// owes after an absence or a partial shift, and the hours logged against it.
//
// The status of a record is never stored independently; it is always the
// result of comparing hoursCompleted with hoursOwed.
package makeup

import (
	"fmt"
	"math"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// Status is the progress state of an obligation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// StatusFor is the only way a status is computed.
func StatusFor(completed, owed float64) Status {
	switch {
	case completed >= owed:
		return StatusCompleted
	case completed > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// IDPrefix prefixes every makeup record id.
const IDPrefix = "MKP-"

// Record is one makeup obligation.
type Record struct {
	ID        string
	StudentID string
	// OriginalAbsenceID is a weak reference to the attendance record that
	// produced this obligation. Empty for manually created obligations.
	OriginalAbsenceID string
	HoursOwed         float64
	HoursCompleted    float64
	Status            Status
	Reason            string
	DueDate           string // YYYY-MM-DD
	CompletionDate    *time.Time
	Notes             string
	// Version is bumped on every write and guards compare-and-set updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is the balance left on this obligation.
func (r *Record) Remaining() float64 {
	return round2(r.HoursOwed - r.HoursCompleted)
}

// IsOverdue reports whether the obligation is open past its due date.
func (r *Record) IsOverdue(today string) bool {
	return r.Status != StatusCompleted && r.DueDate != "" && r.DueDate < today
}

// LogHours applies completed hours. hoursToAdd must be positive, a whole
// number of hundredths, and must not exceed the remaining balance; on
// rejection the record is left untouched.
func (r *Record) LogHours(hoursToAdd float64, now time.Time) error {
	if math.IsNaN(hoursToAdd) || math.IsInf(hoursToAdd, 0) || hoursToAdd <= 0 {
		return shared.NewValidationError("makeup.LogHours", -1, r.StudentID, "hours", "must be greater than zero")
	}
	if !inHundredths(hoursToAdd) {
		return shared.NewValidationError("makeup.LogHours", -1, r.StudentID, "hours", "must be a multiple of 0.01")
	}
	remaining := r.Remaining()
	if hoursToAdd-remaining > ledgerTolerance {
		return &shared.BalanceError{RecordID: r.ID, Requested: hoursToAdd, Remaining: remaining}
	}

	r.HoursCompleted = math.Min(round2(r.HoursCompleted+hoursToAdd), r.HoursOwed)
	r.settle(now)
	r.UpdatedAt = now
	return nil
}

// settle recomputes status and completion date from the hour counts.
func (r *Record) settle(now time.Time) {
	r.Status = StatusFor(r.HoursCompleted, r.HoursOwed)
	if r.Status == StatusCompleted {
		if r.CompletionDate == nil {
			t := now
			r.CompletionDate = &t
		}
	} else {
		r.CompletionDate = nil
	}
}

// CheckInvariants verifies the balance invariant.
func (r *Record) CheckInvariants() error {
	switch {
	case r.HoursOwed <= 0:
		return fmt.Errorf("makeup %s: hours owed %.2f must be positive", r.ID, r.HoursOwed)
	case r.HoursCompleted < 0 || r.HoursCompleted > r.HoursOwed:
		return fmt.Errorf("makeup %s: hours completed %.2f outside [0, %.2f]", r.ID, r.HoursCompleted, r.HoursOwed)
	case r.Status != StatusFor(r.HoursCompleted, r.HoursOwed):
		return fmt.Errorf("makeup %s: status %s does not match %.2f/%.2f", r.ID, r.Status, r.HoursCompleted, r.HoursOwed)
	case (r.Status == StatusCompleted) != (r.CompletionDate != nil):
		return fmt.Errorf("makeup %s: completion date must be set iff completed", r.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	if r.CompletionDate != nil {
		t := *r.CompletionDate
		c.CompletionDate = &t
	}
	return &c
}

// ledgerTolerance absorbs float noise when comparing hundredth amounts.
const ledgerTolerance = 1e-9

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func inHundredths(f float64) bool {
	return math.Abs(f*100-math.Round(f*100)) < 1e-6
}

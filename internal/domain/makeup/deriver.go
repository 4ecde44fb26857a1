package makeup

import (
	"strconv"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAKEUP-HOURS DERIVER
// Computes the obligation implied by the current state of one clinical
// attendance record. The result is a plan; applying it is the caller's job.
// Running the deriver again on the same record and the obligation it
// produced always yields ActionNone, so re-derivation converges.
// ══════════════════════════════════════════════════════════════════════════════

// Action is what the store must do to reach the derived state.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionRemove
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

// Plan is the outcome of deriving one attendance record.
type Plan struct {
	Action Action
	// Record is the obligation after the action. For ActionRemove it is the
	// obligation being removed; for ActionNone it is the existing obligation
	// or nil.
	Record *Record
}

// ReasonClinicalAbsence is the default reason for a full absence.
const ReasonClinicalAbsence = "Clinical absence"

// DeriveOptions carries the non-deterministic inputs of derivation.
type DeriveOptions struct {
	Now       time.Time
	DueInDays int
	NewID     func() string
}

// Derive returns the plan for rec given the obligation currently keyed by
// rec.ID (nil when none). Classroom records never derive.
func Derive(rec *attendance.Record, existing *Record, opts DeriveOptions) Plan {
	shortfall := round2(rec.Shortfall())

	if rec.Type != attendance.TypeClinical || shortfall <= 0 {
		if existing != nil {
			return Plan{Action: ActionRemove, Record: existing}
		}
		return Plan{Action: ActionNone}
	}

	reason := DerivedReason(rec)

	if existing == nil {
		due, err := timeutil.AddDays(rec.Date, opts.DueInDays)
		if err != nil {
			due = ""
		}
		r := &Record{
			ID:                opts.NewID(),
			StudentID:         rec.StudentID,
			OriginalAbsenceID: rec.ID,
			HoursOwed:         shortfall,
			Reason:            reason,
			DueDate:           due,
			CreatedAt:         opts.Now,
			UpdatedAt:         opts.Now,
		}
		r.settle(opts.Now)
		return Plan{Action: ActionCreate, Record: r}
	}

	if existing.HoursOwed == shortfall && existing.Reason == reason {
		return Plan{Action: ActionNone, Record: existing}
	}

	updated := existing.Clone()
	updated.HoursOwed = shortfall
	updated.Reason = reason
	// A smaller shortfall after a correction must not leave more hours
	// completed than are owed.
	if updated.HoursCompleted > updated.HoursOwed {
		updated.HoursCompleted = updated.HoursOwed
	}
	updated.settle(opts.Now)
	updated.UpdatedAt = opts.Now
	return Plan{Action: ActionUpdate, Record: updated}
}

// DerivedReason is the notes of the record, or a default describing the miss.
func DerivedReason(rec *attendance.Record) string {
	if rec.Notes != "" {
		return rec.Notes
	}
	if rec.Status == attendance.StatusPartial {
		return formatPartial(rec.Attended(), rec.HoursRequired)
	}
	return ReasonClinicalAbsence
}

func formatPartial(attended, required float64) string {
	a := strconv.FormatFloat(attended, 'f', -1, 64)
	r := strconv.FormatFloat(required, 'f', -1, 64)
	return "Partial attendance - " + a + "/" + r + " hours"
}

// Package clinical contains the clinical-log domain: the hours a student
// reports per shift at a clinical site, their review status and the pure
// aggregation that folds them into per-student hour breakdowns.
// This is a pure domain layer with zero external dependencies.
package clinical

import (
	"math"
	"strings"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// LogStatus is the review state of a clinical log entry.
type LogStatus string

const (
	LogStatusPending  LogStatus = "Pending"
	LogStatusApproved LogStatus = "Approved"
	LogStatusRejected LogStatus = "Rejected"
)

// IsValid reports whether s is a known status.
func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusPending, LogStatusApproved, LogStatusRejected:
		return true
	}
	return false
}

// ParseLogStatus accepts any casing of a status name.
func ParseLogStatus(s string) (LogStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return LogStatusPending, true
	case "approved":
		return LogStatusApproved, true
	case "rejected":
		return LogStatusRejected, true
	}
	return "", false
}

// UnspecifiedSite groups entries logged without a site name.
const UnspecifiedSite = "Unspecified"

// LogEntry is one clinical shift reported by a student.
// Entries are never deleted; the only mutation is a status transition.
type LogEntry struct {
	ID           string
	StudentID    string
	Date         string // YYYY-MM-DD
	SiteName     string
	Hours        float64
	IsSimulation bool
	IsMakeup     bool
	Status       LogStatus
	Description  string
	Feedback     string
	ReviewedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Site returns the normalized site name used for grouping.
func (e *LogEntry) Site() string {
	name := strings.TrimSpace(e.SiteName)
	if name == "" {
		return UnspecifiedSite
	}
	return name
}

// HasPositiveHours reports whether the entry can be accumulated.
func (e *LogEntry) HasPositiveHours() bool {
	return e.Hours > 0 && !math.IsInf(e.Hours, 1) && !math.IsNaN(e.Hours)
}

// Approve moves a pending entry to Approved.
func (e *LogEntry) Approve(reviewer string, now time.Time) error {
	return e.transition(LogStatusApproved, reviewer, "", now)
}

// Reject moves a pending entry to Rejected. Feedback is mandatory.
func (e *LogEntry) Reject(reviewer, feedback string, now time.Time) error {
	if strings.TrimSpace(feedback) == "" {
		return shared.NewValidationError("clinical.Reject", -1, e.StudentID, "feedback", "is required when rejecting a log")
	}
	return e.transition(LogStatusRejected, reviewer, feedback, now)
}

func (e *LogEntry) transition(to LogStatus, reviewer, feedback string, now time.Time) error {
	if e.Status != LogStatusPending {
		return shared.NewDomainError("clinical", "Review", shared.ErrStateTransition,
			"log "+e.ID+" was already reviewed ("+string(e.Status)+")")
	}
	e.Status = to
	e.ReviewedBy = reviewer
	e.Feedback = feedback
	e.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNTING POLICY
// ══════════════════════════════════════════════════════════════════════════════

// CountingPolicy decides which review states contribute hours.
// Rejected entries never count.
type CountingPolicy int

const (
	// CountPendingAndApproved counts every entry that was not rejected.
	CountPendingAndApproved CountingPolicy = iota
	// CountApprovedOnly counts only instructor-approved entries.
	CountApprovedOnly
)

// Counts reports whether an entry with status s contributes hours.
func (p CountingPolicy) Counts(s LogStatus) bool {
	switch s {
	case LogStatusApproved:
		return true
	case LogStatusPending, "":
		return p == CountPendingAndApproved
	default:
		return false
	}
}

// PolicyFor maps the approved-only switch to a policy.
func PolicyFor(approvedOnly bool) CountingPolicy {
	if approvedOnly {
		return CountApprovedOnly
	}
	return CountPendingAndApproved
}

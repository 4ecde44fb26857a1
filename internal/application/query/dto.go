// Package query contains read operations (CQRS - Queries).
package query

import (
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// Read models handed to the interface layer. Domain records are mapped here so
// handlers never serialize domain types directly.
// ══════════════════════════════════════════════════════════════════════════════

// StudentHoursDTO is the hours summary of one student with its classification.
type StudentHoursDTO struct {
	clinical.Breakdown
	compliance.Assessment

	// RequiredHours is the program total the progress is measured against.
	RequiredHours float64 `json:"required_hours"`

	// ApprovedOnly reports the counting policy in effect.
	ApprovedOnly bool `json:"approved_only"`
}

// MakeupRecordDTO is one makeup obligation.
type MakeupRecordDTO struct {
	ID                string     `json:"id"`
	StudentID         string     `json:"student_id"`
	OriginalAbsenceID string     `json:"original_absence_id,omitempty"`
	HoursOwed         float64    `json:"hours_owed"`
	HoursCompleted    float64    `json:"hours_completed"`
	HoursRemaining    float64    `json:"hours_remaining"`
	Status            string     `json:"status"`
	Reason            string     `json:"reason"`
	DueDate           string     `json:"due_date,omitempty"`
	IsOverdue         bool       `json:"is_overdue"`
	CompletionDate    *time.Time `json:"completion_date,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// MakeupRecordFromDomain maps a record. today drives IsOverdue.
func MakeupRecordFromDomain(r *makeup.Record, today string) MakeupRecordDTO {
	return MakeupRecordDTO{
		ID:                r.ID,
		StudentID:         r.StudentID,
		OriginalAbsenceID: r.OriginalAbsenceID,
		HoursOwed:         r.HoursOwed,
		HoursCompleted:    r.HoursCompleted,
		HoursRemaining:    r.Remaining(),
		Status:            string(r.Status),
		Reason:            r.Reason,
		DueDate:           r.DueDate,
		IsOverdue:         r.IsOverdue(today),
		CompletionDate:    r.CompletionDate,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// MakeupRecordsFromDomain maps a slice of records.
func MakeupRecordsFromDomain(records []*makeup.Record, today string) []MakeupRecordDTO {
	out := make([]MakeupRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, MakeupRecordFromDomain(r, today))
	}
	return out
}

// MakeupSummaryDTO is the ledger view of one student.
type MakeupSummaryDTO struct {
	StudentID           string            `json:"student_id"`
	TotalHoursOwed      float64           `json:"total_hours_owed"`
	TotalHoursCompleted float64           `json:"total_hours_completed"`
	BalanceRemaining    float64           `json:"balance_remaining"`
	OpenCount           int               `json:"open_count"`
	OverdueCount        int               `json:"overdue_count"`
	Records             []MakeupRecordDTO `json:"records"`
}

// MakeupSummaryFromDomain maps a summary.
func MakeupSummaryFromDomain(s makeup.Summary, today string) MakeupSummaryDTO {
	return MakeupSummaryDTO{
		StudentID:           s.StudentID,
		TotalHoursOwed:      s.TotalHoursOwed,
		TotalHoursCompleted: s.TotalHoursCompleted,
		BalanceRemaining:    s.BalanceRemaining,
		OpenCount:           s.OpenCount,
		OverdueCount:        s.OverdueCount,
		Records:             MakeupRecordsFromDomain(s.Records, today),
	}
}

// AttendanceRecordDTO is one attendance record.
type AttendanceRecordDTO struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	Date          string    `json:"date"`
	Type          string    `json:"attendance_type"`
	Status        string    `json:"status"`
	HoursRequired float64   `json:"hours_required"`
	HoursAttended *float64  `json:"hours_attended,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AttendanceRecordsFromDomain maps attendance records.
func AttendanceRecordsFromDomain(records []*attendance.Record) []AttendanceRecordDTO {
	out := make([]AttendanceRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, AttendanceRecordDTO{
			ID:            r.ID,
			StudentID:     r.StudentID,
			Date:          r.Date,
			Type:          string(r.Type),
			Status:        string(r.Status),
			HoursRequired: r.HoursRequired,
			HoursAttended: r.HoursAttended,
			Notes:         r.Notes,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
		})
	}
	return out
}

// ClinicalLogDTO is one clinical log entry.
type ClinicalLogDTO struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Date         string    `json:"date"`
	SiteName     string    `json:"site_name"`
	Hours        float64   `json:"hours"`
	IsSimulation bool      `json:"is_simulation"`
	IsMakeup     bool      `json:"is_makeup"`
	Status       string    `json:"status"`
	Description  string    `json:"description,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	ReviewedBy   string    `json:"reviewed_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClinicalLogFromDomain maps a log entry.
func ClinicalLogFromDomain(e *clinical.LogEntry) ClinicalLogDTO {
	return ClinicalLogDTO{
		ID:           e.ID,
		StudentID:    e.StudentID,
		Date:         e.Date,
		SiteName:     e.SiteName,
		Hours:        e.Hours,
		IsSimulation: e.IsSimulation,
		IsMakeup:     e.IsMakeup,
		Status:       string(e.Status),
		Description:  e.Description,
		Feedback:     e.Feedback,
		ReviewedBy:   e.ReviewedBy,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// StudentFlagsDTO lists the alerts raised for one student.
type StudentFlagsDTO struct {
	StudentID string            `json:"student_id"`
	Flags     []compliance.Flag `json:"flags"`
	// Highest is the most severe level raised, empty when there are no flags.
	Highest compliance.Severity `json:"highest,omitempty"`
}

// AttendanceIssueDTO is one student's attendance tally.
type AttendanceIssueDTO struct {
	attendance.StudentTally
	Severity compliance.Severity `json:"severity,omitempty"`
}

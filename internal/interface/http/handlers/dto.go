package handlers

import (
	"github.com/nursetrack/clinical-hours/internal/application/command"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
)

// Request bodies. Struct tags carry shape checks only; business rules are
// enforced by the commands so every violation is reported with its entry.

// AttendanceEntryRequest is one student's outcome.
type AttendanceEntryRequest struct {
	StudentID     string   `json:"student_id"`
	Status        string   `json:"status"`
	HoursAttended *float64 `json:"hours_attended,omitempty"`
	HoursRequired *float64 `json:"hours_required,omitempty"`
	Notes         string   `json:"notes,omitempty" validate:"max=2000"`
}

// RecordAttendanceRequest is the body of POST /attendance/:date/:type.
type RecordAttendanceRequest struct {
	Entries []AttendanceEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

func (r RecordAttendanceRequest) toCommand(date, attType, correlationID string) command.RecordAttendanceDayCommand {
	entries := make([]attendance.Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, attendance.Entry{
			StudentID:     e.StudentID,
			Status:        attendance.Status(e.Status),
			HoursAttended: e.HoursAttended,
			HoursRequired: e.HoursRequired,
			Notes:         e.Notes,
		})
	}
	return command.RecordAttendanceDayCommand{
		Date:          date,
		Type:          attType,
		Entries:       entries,
		CorrelationID: correlationID,
	}
}

// LogMakeupHoursRequest is the body of POST /makeup/:id/log.
type LogMakeupHoursRequest struct {
	Hours float64 `json:"hours" validate:"gt=0"`
	Notes string  `json:"notes,omitempty" validate:"max=2000"`
}

// AddClinicalLogRequest is the body of POST /clinical-logs.
type AddClinicalLogRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	SiteName     string  `json:"site_name" validate:"required,max=200"`
	Hours        float64 `json:"hours" validate:"gt=0,lte=24"`
	IsSimulation bool    `json:"is_simulation"`
	IsMakeup     bool    `json:"is_makeup"`
	Description  string  `json:"description,omitempty" validate:"max=2000"`
}

// ReviewClinicalLogRequest is the body of POST /clinical-logs/:id/review.
type ReviewClinicalLogRequest struct {
	Status     string `json:"status" validate:"required"`
	Feedback   string `json:"feedback,omitempty" validate:"max=2000"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
}

// ReconcileRequest is the body of POST /makeup/reconcile.
type ReconcileRequest struct {
	From string `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

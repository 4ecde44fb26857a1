package query

import (
	"context"
	"sort"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ListClinicalLogsQuery selects logs of one student or, when StudentID is
// empty, the review queue of one status.
type ListClinicalLogsQuery struct {
	StudentID string
	Status    string
}

// ListClinicalLogsHandler handles the ListClinicalLogsQuery.
type ListClinicalLogsHandler struct {
	store uow.Store
}

// NewListClinicalLogsHandler creates a new handler.
func NewListClinicalLogsHandler(store uow.Store) *ListClinicalLogsHandler {
	return &ListClinicalLogsHandler{store: store}
}

// Handle returns logs ordered by date then id.
func (h *ListClinicalLogsHandler) Handle(ctx context.Context, q ListClinicalLogsQuery) ([]ClinicalLogDTO, error) {
	var status clinical.LogStatus
	if q.Status != "" {
		parsed, ok := clinical.ParseLogStatus(q.Status)
		if !ok {
			return nil, shared.NewValidationError("query.ListClinicalLogs", -1, "", "status", "must be Pending, Approved or Rejected")
		}
		status = parsed
	}

	var (
		entries []*clinical.LogEntry
		err     error
	)
	switch studentID := strings.TrimSpace(q.StudentID); {
	case studentID != "":
		entries, err = h.store.ClinicalLogs().ListByStudent(ctx, studentID)
	case status != "":
		entries, err = h.store.ClinicalLogs().ListByStatus(ctx, status)
	default:
		return nil, shared.NewValidationError("query.ListClinicalLogs", -1, "", "student_id", "is required unless status is given")
	}
	if err != nil {
		return nil, err
	}

	out := make([]ClinicalLogDTO, 0, len(entries))
	for _, e := range entries {
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, ClinicalLogFromDomain(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

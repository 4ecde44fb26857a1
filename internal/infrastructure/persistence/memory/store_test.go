package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

func TestMakeupCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	rec := &makeup.Record{ID: "MKP-1", StudentID: "s1", OriginalAbsenceID: "ATT-1", HoursOwed: 8, Status: makeup.StatusPending}
	require.NoError(t, s.Makeup().Create(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	first, err := s.Makeup().GetByID(ctx, "MKP-1")
	require.NoError(t, err)
	second, err := s.Makeup().GetByID(ctx, "MKP-1")
	require.NoError(t, err)

	first.HoursCompleted = 2
	require.NoError(t, s.Makeup().Update(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.HoursCompleted = 5
	err = s.Makeup().Update(ctx, second, second.Version)
	assert.True(t, shared.IsConflict(err))

	stored, err := s.Makeup().GetByID(ctx, "MKP-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, stored.HoursCompleted)
}

func TestMakeupCreateRejectsDuplicateAbsence(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Makeup().Create(ctx, &makeup.Record{ID: "MKP-1", StudentID: "s1", OriginalAbsenceID: "ATT-1"}))
	err := s.Makeup().Create(ctx, &makeup.Record{ID: "MKP-2", StudentID: "s1", OriginalAbsenceID: "ATT-1"})
	assert.True(t, shared.IsAlreadyExists(err))

	require.NoError(t, s.Makeup().Create(ctx, &makeup.Record{ID: "MKP-3", StudentID: "s1"}))
	require.NoError(t, s.Makeup().Create(ctx, &makeup.Record{ID: "MKP-4", StudentID: "s1"}))
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx uow.Store) error {
		require.NoError(t, tx.Attendance().UpsertBatch(ctx, []*attendance.Record{{
			ID: "ATT-1", StudentID: "s1", Date: "2024-03-01", Type: attendance.TypeClinical, Status: attendance.StatusAbsent,
		}}))
		require.NoError(t, tx.Makeup().Create(ctx, &makeup.Record{ID: "MKP-1", StudentID: "s1", OriginalAbsenceID: "ATT-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	att, err := s.Attendance().ListByStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, att)
	all, err := s.Makeup().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx uow.Store) error {
		return tx.Makeup().Create(ctx, &makeup.Record{ID: "MKP-1", StudentID: "s1"})
	}))
	_, err = s.Makeup().GetByID(ctx, "MKP-1")
	assert.NoError(t, err)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.ClinicalLogs().Create(ctx, &clinical.LogEntry{ID: "l1", StudentID: "s1", Hours: 8, Status: clinical.LogStatusPending}))

	got, err := s.ClinicalLogs().GetByID(ctx, "l1")
	require.NoError(t, err)
	got.Hours = 100

	again, err := s.ClinicalLogs().GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, again.Hours)
}

func TestLogStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.ClinicalLogs().Create(ctx, &clinical.LogEntry{ID: "l1", StudentID: "s1", Hours: 8, Status: clinical.LogStatusPending}))

	e, err := s.ClinicalLogs().GetByID(ctx, "l1")
	require.NoError(t, err)
	e.Status = clinical.LogStatusApproved
	require.NoError(t, s.ClinicalLogs().UpdateStatus(ctx, e, clinical.LogStatusPending))

	e.Status = clinical.LogStatusRejected
	err = s.ClinicalLogs().UpdateStatus(ctx, e, clinical.LogStatusPending)
	assert.True(t, shared.IsConflict(err))

	_, err = s.ClinicalLogs().GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestAttendanceListRangeBounds(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var recs []*attendance.Record
	for _, d := range []string{"2024-03-01", "2024-03-05", "2024-03-09"} {
		recs = append(recs, &attendance.Record{
			ID:        attendance.RecordID("s1", d, attendance.TypeClinical),
			StudentID: "s1",
			Date:      d,
			Type:      attendance.TypeClinical,
			Status:    attendance.StatusPresent,
		})
	}
	require.NoError(t, s.Attendance().UpsertBatch(ctx, recs))

	got, err := s.Attendance().ListRange(ctx, attendance.TypeClinical, "2024-03-02", "2024-03-09")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-05", got[0].Date)

	got, err = s.Attendance().ListRange(ctx, attendance.TypeClinical, "", "2024-03-05")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Attendance().ListRange(ctx, attendance.TypeClassroom, "", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

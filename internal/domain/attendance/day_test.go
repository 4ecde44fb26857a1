package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

var defaults = ShiftDefaults{Clinical: 8, Classroom: 4}

func TestRecordID_Deterministic(t *testing.T) {
	assert.Equal(t, "ATT-s1-2024-03-01-clinical", RecordID("s1", "2024-03-01", TypeClinical))
	assert.Equal(t, RecordID("s1", "2024-03-01", TypeClinical), RecordID("s1", "2024-03-01", TypeClinical))
	assert.NotEqual(t, RecordID("s1", "2024-03-01", TypeClinical), RecordID("s1", "2024-03-01", TypeClassroom))
}

func TestBuildDay_DefaultsByType(t *testing.T) {
	now := time.Now()
	day, err := BuildDay("2024-03-01", TypeClinical, []Entry{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: "absent", Notes: "  flu "},
	}, nil, defaults, now)
	require.NoError(t, err)
	require.Len(t, day.Records, 2)

	assert.Equal(t, 8.0, day.Records[0].HoursRequired)
	assert.Equal(t, StatusAbsent, day.Records[1].Status)
	assert.Equal(t, "flu", day.Records[1].Notes)
	assert.True(t, day.Derives())

	day, err = BuildDay("2024-03-01", "Classroom", []Entry{{StudentID: "s1", Status: StatusAbsent}}, nil, defaults, now)
	require.NoError(t, err)
	assert.Equal(t, 4.0, day.Records[0].HoursRequired)
	assert.Equal(t, TypeClassroom, day.Type)
	assert.False(t, day.Derives())
}

func TestBuildDay_RequiredHoursPrecedence(t *testing.T) {
	id := RecordID("s1", "2024-03-01", TypeClinical)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	prior := map[string]*Record{id: {ID: id, HoursRequired: 12, CreatedAt: created}}

	day, err := BuildDay("2024-03-01", TypeClinical, []Entry{{StudentID: "s1", Status: StatusAbsent}}, prior, defaults, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 12.0, day.Records[0].HoursRequired, "prior record overrides default")
	assert.Equal(t, created, day.Records[0].CreatedAt)

	day, err = BuildDay("2024-03-01", TypeClinical, []Entry{
		{StudentID: "s1", Status: StatusAbsent, HoursRequired: Hours(10)},
	}, prior, defaults, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10.0, day.Records[0].HoursRequired, "entry override wins")
}

func TestBuildDay_PartialValidation(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		field string
	}{
		{"partial without hours", Entry{StudentID: "s1", Status: StatusPartial}, "hours_attended"},
		{"partial above required", Entry{StudentID: "s1", Status: StatusPartial, HoursAttended: Hours(9)}, "hours_attended"},
		{"partial negative", Entry{StudentID: "s1", Status: StatusPartial, HoursAttended: Hours(-1)}, "hours_attended"},
		{"present with hours", Entry{StudentID: "s1", Status: StatusPresent, HoursAttended: Hours(8)}, "hours_attended"},
		{"unknown status", Entry{StudentID: "s1", Status: "Sick"}, "status"},
		{"missing student", Entry{Status: StatusPresent}, "student_id"},
		{"zero override", Entry{StudentID: "s1", Status: StatusAbsent, HoursRequired: Hours(0)}, "hours_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDay("2024-03-01", TypeClinical, []Entry{tt.entry}, nil, defaults, time.Now())

			var ve *shared.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.True(t, errors.Is(err, shared.ErrValidation))
			require.Len(t, ve.Violations, 1)
			assert.Equal(t, 0, ve.Violations[0].Index)
			assert.Equal(t, tt.field, ve.Violations[0].Field)
		})
	}
}

func TestBuildDay_PartialBounds(t *testing.T) {
	day, err := BuildDay("2024-03-01", TypeClinical, []Entry{
		{StudentID: "a", Status: StatusPartial, HoursAttended: Hours(0)},
		{StudentID: "b", Status: StatusPartial, HoursAttended: Hours(8)},
	}, nil, defaults, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 8.0, day.Records[0].Shortfall())
	assert.Equal(t, 0.0, day.Records[1].Shortfall())
}

func TestBuildDay_RejectsWholeBatchAndReportsEveryEntry(t *testing.T) {
	_, err := BuildDay("2024-03-01", TypeClinical, []Entry{
		{StudentID: "ok", Status: StatusPresent},
		{StudentID: "bad1", Status: StatusPartial},
		{StudentID: "ok2", Status: StatusAbsent},
		{StudentID: "bad1", Status: StatusPresent},
	}, nil, defaults, time.Now())

	var ve *shared.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Violations, 2)
	assert.Equal(t, 1, ve.Violations[0].Index)
	assert.Equal(t, "bad1", ve.Violations[0].StudentID)
	assert.Equal(t, 3, ve.Violations[1].Index)
	assert.Contains(t, ve.Violations[1].Reason, "more than once")
}

func TestBuildDay_HeaderValidation(t *testing.T) {
	_, err := BuildDay("03/01/2024", "lab", nil, nil, defaults, time.Now())

	var ve *shared.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Violations, 3)
}

func TestRecord_Shortfall(t *testing.T) {
	assert.Equal(t, 8.0, (&Record{Status: StatusAbsent, HoursRequired: 8}).Shortfall())
	assert.Equal(t, 3.0, (&Record{Status: StatusPartial, HoursRequired: 8, HoursAttended: Hours(5)}).Shortfall())
	assert.Zero(t, (&Record{Status: StatusTardy, HoursRequired: 8}).Shortfall())
	assert.Zero(t, (&Record{Status: StatusExcused, HoursRequired: 8}).Shortfall())
}

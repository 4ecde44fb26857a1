package clinical

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, site string, hours float64, sim, makeup bool) *LogEntry {
	return &LogEntry{
		ID:           id,
		StudentID:    "s1",
		Date:         "2024-02-01",
		SiteName:     site,
		Hours:        hours,
		IsSimulation: sim,
		IsMakeup:     makeup,
		Status:       LogStatusApproved,
		UpdatedAt:    time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAggregate_SplitsDirectSimAndMakeup(t *testing.T) {
	entries := []*LogEntry{
		entry("a", "Mercy General", 8, false, false),
		entry("b", "Mercy General", 4, false, true),
		entry("c", "Sim Lab", 6, true, false),
		entry("d", "Sim Lab", 2, true, true),
	}

	b := Aggregate("s1", entries, CountPendingAndApproved)

	assert.Equal(t, 20.0, b.TotalHours)
	assert.Equal(t, 12.0, b.DirectHours)
	assert.Equal(t, 8.0, b.SimHours)
	assert.Equal(t, 6.0, b.MakeupHours)
	assert.Equal(t, 40, b.SimPercentage)
	assert.Equal(t, 4, b.Counted)

	require.Len(t, b.HoursBySite, 2)
	assert.Equal(t, SiteHours{SiteName: "Mercy General", DirectHours: 12, TotalHours: 12, IsMakeup: true}, b.HoursBySite[0])
	assert.Equal(t, SiteHours{SiteName: "Sim Lab", SimHours: 8, TotalHours: 8, IsMakeup: true}, b.HoursBySite[1])
}

func TestAggregate_Empty(t *testing.T) {
	b := Aggregate("s1", nil, CountPendingAndApproved)

	assert.Zero(t, b.TotalHours)
	assert.Zero(t, b.SimPercentage)
	assert.Empty(t, b.HoursBySite)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	entries := []*LogEntry{
		entry("1", "A", 0.1, false, false),
		entry("2", "B", 0.2, true, false),
		entry("3", "A", 7.35, false, true),
		entry("4", "C", 12.5, true, true),
		entry("5", "B", 3.3, false, false),
		entry("6", "C", 0.05, false, false),
		entry("7", "A", 9.99, true, false),
	}
	want := Aggregate("s1", entries, CountPendingAndApproved)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]*LogEntry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		assert.Equal(t, want, Aggregate("s1", shuffled, CountPendingAndApproved))
	}
}

func TestAggregate_SkipsNonPositiveHours(t *testing.T) {
	entries := []*LogEntry{
		entry("ok", "A", 8, false, false),
		entry("zero", "A", 0, false, false),
		entry("neg", "A", -4, true, false),
	}

	b := Aggregate("s1", entries, CountPendingAndApproved)

	assert.Equal(t, 8.0, b.TotalHours)
	assert.Zero(t, b.SimHours)
	require.Len(t, b.Skipped, 2)
	assert.Equal(t, "neg", b.Skipped[0].ID)
	assert.Equal(t, "zero", b.Skipped[1].ID)
}

func TestAggregate_KeepsSubHundredthPrecision(t *testing.T) {
	entries := []*LogEntry{
		entry("a", "A", 0.333, false, false),
		entry("b", "A", 0.333, false, false),
		entry("c", "A", 0.333, true, false),
		entry("d", "A", 0.004, false, true),
	}

	b := Aggregate("s1", entries, CountPendingAndApproved)

	assert.InDelta(t, 1.003, b.TotalHours, 1e-9)
	assert.InDelta(t, 0.67, b.DirectHours, 1e-9)
	assert.InDelta(t, 0.333, b.SimHours, 1e-9)
	assert.InDelta(t, 0.004, b.MakeupHours, 1e-9)
	assert.Equal(t, 4, b.Counted)
	assert.Empty(t, b.Skipped)
}

func TestAggregate_ReportsEntriesBelowPrecision(t *testing.T) {
	entries := []*LogEntry{
		entry("ok", "A", 2, false, false),
		entry("dust", "A", 1e-8, false, false),
	}

	b := Aggregate("s1", entries, CountPendingAndApproved)

	assert.Equal(t, 2.0, b.TotalHours)
	assert.Equal(t, 1, b.Counted)
	require.Len(t, b.Skipped, 1)
	assert.Equal(t, "dust", b.Skipped[0].ID)
	assert.Equal(t, "hours below recording precision", b.Skipped[0].Reason)
}

func TestAggregate_CountingPolicy(t *testing.T) {
	pending := entry("p", "A", 5, false, false)
	pending.Status = LogStatusPending
	rejected := entry("r", "A", 7, false, false)
	rejected.Status = LogStatusRejected
	approved := entry("a", "A", 3, false, false)

	entries := []*LogEntry{pending, rejected, approved}

	b := Aggregate("s1", entries, CountPendingAndApproved)
	assert.Equal(t, 8.0, b.TotalHours)
	assert.Equal(t, 1, b.Excluded)

	b = Aggregate("s1", entries, CountApprovedOnly)
	assert.Equal(t, 3.0, b.TotalHours)
	assert.Equal(t, 2, b.Excluded)
}

func TestAggregate_IgnoresOtherStudentsAndTracksWatermark(t *testing.T) {
	mine := entry("m", "A", 4, false, false)
	later := entry("l", "A", 4, false, false)
	later.UpdatedAt = later.UpdatedAt.Add(time.Hour)
	other := entry("o", "A", 100, false, false)
	other.StudentID = "s2"
	other.UpdatedAt = other.UpdatedAt.Add(48 * time.Hour)

	b := Aggregate("s1", []*LogEntry{mine, other, later}, CountPendingAndApproved)

	assert.Equal(t, 8.0, b.TotalHours)
	assert.Equal(t, later.UpdatedAt, b.Watermark)
}

func TestAggregate_BlankSiteGrouped(t *testing.T) {
	b := Aggregate("s1", []*LogEntry{entry("x", "  ", 2, false, false)}, CountPendingAndApproved)

	require.Len(t, b.HoursBySite, 1)
	assert.Equal(t, UnspecifiedSite, b.HoursBySite[0].SiteName)
}

func TestSimPercentage(t *testing.T) {
	assert.Equal(t, 0, SimPercentage(10, 0))
	assert.Equal(t, 27, SimPercentage(110, 410))
	assert.Equal(t, 25, SimPercentage(100, 400))
	assert.Equal(t, 33, SimPercentage(1, 3))
}

func TestLogEntry_Review(t *testing.T) {
	now := time.Now()
	e := entry("x", "A", 8, false, false)
	e.Status = LogStatusPending

	require.Error(t, e.Reject("instructor", " ", now))
	assert.Equal(t, LogStatusPending, e.Status)

	require.NoError(t, e.Approve("instructor", now))
	assert.Equal(t, LogStatusApproved, e.Status)
	assert.Equal(t, "instructor", e.ReviewedBy)

	assert.Error(t, e.Approve("instructor", now))
}

func TestParseLogStatus(t *testing.T) {
	s, ok := ParseLogStatus("approved")
	assert.True(t, ok)
	assert.Equal(t, LogStatusApproved, s)

	_, ok = ParseLogStatus("done")
	assert.False(t, ok)
}

package clinical

import (
	"math"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HOUR AGGREGATOR
// Folds a student's clinical log entries into totals split by
// direct / simulation / makeup and per site. Pure and order-independent:
// hours are accumulated as integer micro-hours so the result does not
// depend on the order entries arrive in.
// ══════════════════════════════════════════════════════════════════════════════

// SiteHours is the per-site breakdown.
type SiteHours struct {
	SiteName    string  `json:"site_name"`
	DirectHours float64 `json:"direct_hours"`
	SimHours    float64 `json:"sim_hours"`
	TotalHours  float64 `json:"total_hours"`
	// IsMakeup is true if any counted entry at this site was a makeup shift.
	IsMakeup bool `json:"is_makeup"`
}

// SkippedEntry identifies an entry that was not accumulated.
type SkippedEntry struct {
	ID     string  `json:"id"`
	Hours  float64 `json:"hours"`
	Reason string  `json:"reason"`
}

// Breakdown is the aggregated view of one student's clinical hours.
type Breakdown struct {
	StudentID     string      `json:"student_id"`
	TotalHours    float64     `json:"total_hours"`
	DirectHours   float64     `json:"direct_hours"`
	SimHours      float64     `json:"sim_hours"`
	MakeupHours   float64     `json:"makeup_hours"`
	SimPercentage int         `json:"sim_percentage"`
	HoursBySite   []SiteHours `json:"hours_by_site"`

	// Skipped lists entries whose hours are not positive or too small to
	// register as a micro-hour. They are reported, never summed.
	Skipped []SkippedEntry `json:"skipped,omitempty"`
	// Excluded counts entries left out by the counting policy.
	Excluded int `json:"excluded"`
	// Counted is the number of entries that contributed hours.
	Counted int `json:"counted"`
	// Watermark is the latest UpdatedAt among all entries, used for cache keys.
	Watermark time.Time `json:"watermark"`
}

type siteAcc struct {
	direct, sim int64
	makeup      bool
}

// Aggregate folds entries into a Breakdown. Entries belonging to other
// students are ignored when studentID is not empty.
func Aggregate(studentID string, entries []*LogEntry, policy CountingPolicy) Breakdown {
	var (
		direct, sim, makeup int64
		sites               = make(map[string]*siteAcc)
		b                   = Breakdown{StudentID: studentID}
	)

	for _, e := range entries {
		if e == nil || (studentID != "" && e.StudentID != studentID) {
			continue
		}
		if e.UpdatedAt.After(b.Watermark) {
			b.Watermark = e.UpdatedAt
		}
		if !policy.Counts(e.Status) {
			b.Excluded++
			continue
		}
		if !e.HasPositiveHours() {
			b.Skipped = append(b.Skipped, SkippedEntry{ID: e.ID, Hours: e.Hours, Reason: "hours must be greater than zero"})
			continue
		}

		h := toMicros(e.Hours)
		if h <= 0 {
			b.Skipped = append(b.Skipped, SkippedEntry{ID: e.ID, Hours: e.Hours, Reason: "hours below recording precision"})
			continue
		}
		acc, ok := sites[e.Site()]
		if !ok {
			acc = &siteAcc{}
			sites[e.Site()] = acc
		}
		if e.IsSimulation {
			sim += h
			acc.sim += h
		} else {
			direct += h
			acc.direct += h
		}
		if e.IsMakeup {
			makeup += h
			acc.makeup = true
		}
		b.Counted++
	}

	total := direct + sim
	b.TotalHours = fromMicros(total)
	b.DirectHours = fromMicros(direct)
	b.SimHours = fromMicros(sim)
	b.MakeupHours = fromMicros(makeup)
	b.SimPercentage = SimPercentage(b.SimHours, b.TotalHours)

	b.HoursBySite = make([]SiteHours, 0, len(sites))
	for name, acc := range sites {
		b.HoursBySite = append(b.HoursBySite, SiteHours{
			SiteName:    name,
			DirectHours: fromMicros(acc.direct),
			SimHours:    fromMicros(acc.sim),
			TotalHours:  fromMicros(acc.direct + acc.sim),
			IsMakeup:    acc.makeup,
		})
	}
	sort.Slice(b.HoursBySite, func(i, j int) bool {
		return b.HoursBySite[i].SiteName < b.HoursBySite[j].SiteName
	})
	sort.Slice(b.Skipped, func(i, j int) bool {
		return b.Skipped[i].ID < b.Skipped[j].ID
	})

	return b
}

// SimPercentage returns round(sim/total*100), or 0 when total is 0.
func SimPercentage(sim, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(sim / total * 100))
}

const microsPerHour = 1e6

func toMicros(h float64) int64 {
	return int64(math.Round(h * microsPerHour))
}

func fromMicros(v int64) float64 {
	return float64(v) / microsPerHour
}

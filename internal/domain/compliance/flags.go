package compliance

import (
	"fmt"
	"sort"
)

// Severity is the alert level of a flag.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FlagType identifies the rule that raised a flag.
type FlagType string

const (
	FlagClinicalBehind    FlagType = "clinical_behind"
	FlagAtRisk            FlagType = "at_risk"
	FlagSimulationOver    FlagType = "simulation_over"
	FlagSimulationWarning FlagType = "simulation_warning"
	FlagAttendance        FlagType = "attendance"
	FlagMakeupOutstanding FlagType = "makeup_outstanding"
	FlagMakeupOverdue     FlagType = "makeup_overdue"
)

// Flag is one alert for one student.
type Flag struct {
	Type     FlagType `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// FlagInput gathers the facts the alert rules look at.
type FlagInput struct {
	TotalHours     float64
	SimHours       float64
	SimPercentage  int
	Absences       int
	MakeupBalance  float64
	OverdueMakeups int
}

// Flags evaluates every alert rule independently. The result is ordered
// critical first, then by type, so it is stable for a given input.
func (c *Classifier) Flags(in FlagInput) []Flag {
	flags := make([]Flag, 0, 4)

	switch {
	case in.TotalHours < c.t.BehindHoursThreshold:
		flags = append(flags, Flag{
			Type:     FlagClinicalBehind,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("%.1f clinical hours logged, below the %.0f-hour behind threshold",
				in.TotalHours, c.t.BehindHoursThreshold),
		})
	case in.TotalHours < c.t.AtRiskHoursThreshold:
		flags = append(flags, Flag{
			Type:     FlagAtRisk,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("%.1f clinical hours logged, below the %.0f-hour at-risk threshold",
				in.TotalHours, c.t.AtRiskHoursThreshold),
		})
	}

	if !c.IsCompliant(in.SimHours, in.SimPercentage) {
		flags = append(flags, Flag{
			Type:     FlagSimulationOver,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("simulation %.1f hours (%d%%) exceeds the %.0f-hour / %d%% cap",
				in.SimHours, in.SimPercentage, c.t.SimulationCapHours, c.t.SimulationCapPercent),
		})
	} else if c.SimStatus(in.SimHours) == SimStatusWarning {
		flags = append(flags, Flag{
			Type:     FlagSimulationWarning,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("simulation %.1f hours is approaching the %.0f-hour cap",
				in.SimHours, c.t.SimulationCapHours),
		})
	}

	switch {
	case in.Absences >= c.t.AbsenceCriticalCount:
		flags = append(flags, Flag{
			Type:     FlagAttendance,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d absences recorded", in.Absences),
		})
	case in.Absences >= c.t.AbsenceWarningCount:
		flags = append(flags, Flag{
			Type:     FlagAttendance,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d absences recorded", in.Absences),
		})
	}

	if in.MakeupBalance > 0 {
		flags = append(flags, Flag{
			Type:     FlagMakeupOutstanding,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%.1f makeup hours outstanding", in.MakeupBalance),
		})
	}
	if in.OverdueMakeups > 0 {
		flags = append(flags, Flag{
			Type:     FlagMakeupOverdue,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d makeup obligations past their due date", in.OverdueMakeups),
		})
	}

	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Severity != flags[j].Severity {
			return flags[i].Severity == SeverityCritical
		}
		return flags[i].Type < flags[j].Type
	})
	return flags
}

// Package compliance classifies aggregated clinical hours against the
// regulatory thresholds of the program's governing body.
//
// Everything here is a pure function of a clinical.Breakdown and a
// Thresholds value: no I/O and no mutation. Thresholds are data, loaded from
// configuration, never constants baked into the rules.
package compliance

import (
	"fmt"
	"strings"
)

// Thresholds holds every regulatory number the classifier and the
// attendance recorder depend on.
type Thresholds struct {
	RequiredTotalHours     float64
	SimulationCapHours     float64
	SimulationCapPercent   int
	SimulationWarningHours float64
	AtRiskHoursThreshold   float64
	BehindHoursThreshold   float64
	NearCompletionProgress float64
	ClinicalShiftHours     float64
	ClassroomShiftHours    float64

	// Absence counts that raise attendance alerts.
	AbsenceWarningCount  int
	AbsenceCriticalCount int
}

// DefaultThresholds returns the values mandated by the board of nursing.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RequiredTotalHours:     400,
		SimulationCapHours:     100,
		SimulationCapPercent:   25,
		SimulationWarningHours: 80,
		AtRiskHoursThreshold:   300,
		BehindHoursThreshold:   200,
		NearCompletionProgress: 0.90,
		ClinicalShiftHours:     8,
		ClassroomShiftHours:    4,
		AbsenceWarningCount:    3,
		AbsenceCriticalCount:   5,
	}
}

// Validate checks internal consistency.
func (t Thresholds) Validate() error {
	var errs []string

	if t.RequiredTotalHours <= 0 {
		errs = append(errs, "required total hours must be positive")
	}
	if t.SimulationCapHours <= 0 {
		errs = append(errs, "simulation cap hours must be positive")
	}
	if t.SimulationCapPercent <= 0 || t.SimulationCapPercent > 100 {
		errs = append(errs, "simulation cap percent must be in (0, 100]")
	}
	if t.SimulationWarningHours < 0 || t.SimulationWarningHours > t.SimulationCapHours {
		errs = append(errs, "simulation warning hours must be within [0, cap]")
	}
	if t.BehindHoursThreshold < 0 || t.AtRiskHoursThreshold < t.BehindHoursThreshold {
		errs = append(errs, "at-risk threshold must not be below the behind threshold")
	}
	if t.NearCompletionProgress <= 0 || t.NearCompletionProgress > 1 {
		errs = append(errs, "near completion progress must be in (0, 1]")
	}
	if t.ClinicalShiftHours <= 0 || t.ClassroomShiftHours <= 0 {
		errs = append(errs, "default shift hours must be positive")
	}
	if t.AbsenceWarningCount <= 0 || t.AbsenceCriticalCount < t.AbsenceWarningCount {
		errs = append(errs, "absence critical count must not be below the warning count")
	}

	if len(errs) > 0 {
		return fmt.Errorf("compliance thresholds:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package compliance

import (
	"math"

	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
)

// SimStatus labels simulation usage against the cap.
type SimStatus string

const (
	SimStatusSafe    SimStatus = "Safe"
	SimStatusWarning SimStatus = "Warning"
	SimStatusOverCap SimStatus = "Over Cap"
)

// ProgressStatus labels overall progress toward the required hours.
type ProgressStatus string

const (
	ProgressComplianceRisk ProgressStatus = "COMPLIANCE RISK"
	ProgressBehind         ProgressStatus = "Behind"
	ProgressNearCompletion ProgressStatus = "Near Completion"
	ProgressOnTrack        ProgressStatus = "On Track"
)

// Assessment is the classifier output for one student.
type Assessment struct {
	SimStatus      SimStatus      `json:"sim_status"`
	IsCompliant    bool           `json:"is_compliant"`
	ProgressStatus ProgressStatus `json:"progress_status"`
	// Progress is totalHours / requiredHours, not capped at 1.
	Progress       float64 `json:"progress"`
	RemainingHours float64 `json:"remaining_hours"`
	IsAtRisk       bool    `json:"is_at_risk"`
}

// Classifier applies Thresholds to aggregated hours.
type Classifier struct {
	t Thresholds
}

// NewClassifier creates a Classifier.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Thresholds returns the thresholds in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.t
}

// SimStatus classifies simulation hours.
func (c *Classifier) SimStatus(simHours float64) SimStatus {
	switch {
	case simHours > c.t.SimulationCapHours:
		return SimStatusOverCap
	case simHours >= c.t.SimulationWarningHours:
		return SimStatusWarning
	default:
		return SimStatusSafe
	}
}

// IsCompliant requires both the hour cap and the percentage cap to hold.
func (c *Classifier) IsCompliant(simHours float64, simPercentage int) bool {
	return simHours <= c.t.SimulationCapHours && simPercentage <= c.t.SimulationCapPercent
}

// ProgressStatus evaluates the first matching label in precedence order.
// A simulation cap breach overrides every progress-based label.
func (c *Classifier) ProgressStatus(totalHours, simHours float64) ProgressStatus {
	switch {
	case simHours > c.t.SimulationCapHours:
		return ProgressComplianceRisk
	case totalHours < c.t.BehindHoursThreshold:
		return ProgressBehind
	case c.progress(totalHours) >= c.t.NearCompletionProgress:
		return ProgressNearCompletion
	default:
		return ProgressOnTrack
	}
}

// Assess classifies a full breakdown.
func (c *Classifier) Assess(b clinical.Breakdown) Assessment {
	return Assessment{
		SimStatus:      c.SimStatus(b.SimHours),
		IsCompliant:    c.IsCompliant(b.SimHours, b.SimPercentage),
		ProgressStatus: c.ProgressStatus(b.TotalHours, b.SimHours),
		Progress:       c.progress(b.TotalHours),
		RemainingHours: math.Max(0, c.t.RequiredTotalHours-b.TotalHours),
		IsAtRisk:       b.TotalHours < c.t.AtRiskHoursThreshold,
	}
}

func (c *Classifier) progress(totalHours float64) float64 {
	if c.t.RequiredTotalHours <= 0 {
		return 0
	}
	return totalHours / c.t.RequiredTotalHours
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

var reportStudent string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a student's compliance report",
	Long: `Print the hours breakdown, classification, makeup ledger and alerts of
one student. Colors are disabled when the output is not a terminal.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportStudent, "student", "", "student id")
	_ = reportCmd.MarkFlagRequired("student")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, appOptions{output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := buildReport(cmd.Context(), a.deps.StudentHours, a.deps.MakeupSummary, a.deps.StudentFlags, reportStudent)
	if err != nil {
		return err
	}
	renderReport(cmd.OutOrStdout(), r)
	return nil
}

// studentReport bundles the three read models of one student.
type studentReport struct {
	Hours  *query.StudentHoursDTO
	Makeup *query.MakeupSummaryDTO
	Flags  *query.StudentFlagsDTO
	Today  string
}

func buildReport(
	ctx context.Context,
	hours *query.GetStudentHoursSummaryHandler,
	makeup *query.GetMakeupHoursSummaryHandler,
	flags *query.GetStudentFlagsHandler,
	studentID string,
) (*studentReport, error) {
	h, err := hours.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: studentID, SkipCache: true})
	if err != nil {
		return nil, err
	}
	m, err := makeup.Handle(ctx, query.GetMakeupHoursSummaryQuery{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	f, err := flags.Handle(ctx, query.GetStudentFlagsQuery{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	return &studentReport{Hours: h, Makeup: m, Flags: f, Today: timeutil.Today()}, nil
}

func renderReport(w io.Writer, r *studentReport) {
	bold := color.New(color.Bold)
	h := r.Hours

	bold.Fprintf(w, "Student %s\n\n", h.StudentID)

	bold.Fprintln(w, "Clinical hours")
	fmt.Fprintf(w, "  total      %7.2f / %.0f  (%.0f%%)\n", h.TotalHours, h.RequiredHours, h.Progress*100)
	fmt.Fprintf(w, "  direct     %7.2f\n", h.DirectHours)
	fmt.Fprintf(w, "  simulation %7.2f  (%d%%)  %s\n", h.SimHours, h.SimPercentage, simColor(h.SimStatus).Sprint(h.SimStatus))
	fmt.Fprintf(w, "  makeup     %7.2f\n", h.MakeupHours)
	fmt.Fprintf(w, "  progress   %s\n", progressColor(h.ProgressStatus).Sprint(h.ProgressStatus))
	if h.IsCompliant {
		fmt.Fprintf(w, "  compliant  %s\n", color.GreenString("yes"))
	} else {
		fmt.Fprintf(w, "  compliant  %s\n", color.RedString("no"))
	}
	for _, site := range h.HoursBySite {
		fmt.Fprintf(w, "    %-24s %7.2f\n", site.SiteName, site.TotalHours)
	}
	if len(h.Skipped) > 0 {
		fmt.Fprintf(w, "  %s %d log(s) skipped\n", color.YellowString("!"), len(h.Skipped))
	}

	m := r.Makeup
	fmt.Fprintln(w)
	bold.Fprintln(w, "Makeup ledger")
	fmt.Fprintf(w, "  owed %.2f  completed %.2f  remaining %.2f\n", m.TotalHoursOwed, m.TotalHoursCompleted, m.BalanceRemaining)
	for _, rec := range m.Records {
		line := fmt.Sprintf("    %-12s %-10s %6.2f left  due %s",
			rec.ID, rec.Status, rec.HoursRemaining, timeutil.FormatHumanDate(rec.DueDate))
		if rec.IsOverdue {
			if late, err := timeutil.DaysBetween(rec.DueDate, r.Today); err == nil {
				line += fmt.Sprintf("  OVERDUE by %d day(s)", late)
			}
			line = color.RedString(line)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Alerts")
	if len(r.Flags.Flags) == 0 {
		fmt.Fprintf(w, "  %s none\n", color.GreenString("✓"))
		return
	}
	for _, f := range r.Flags.Flags {
		fmt.Fprintf(w, "  %s %s\n", severityColor(f.Severity).Sprint("●"), f.Message)
	}
}

func simColor(s compliance.SimStatus) *color.Color {
	switch s {
	case compliance.SimStatusOverCap:
		return color.New(color.FgRed)
	case compliance.SimStatusWarning:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgGreen)
}

func progressColor(p compliance.ProgressStatus) *color.Color {
	switch p {
	case compliance.ProgressComplianceRisk:
		return color.New(color.FgRed, color.Bold)
	case compliance.ProgressBehind:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgGreen)
}

func severityColor(s compliance.Severity) *color.Color {
	if s == compliance.SeverityCritical {
		return color.New(color.FgRed)
	}
	return color.New(color.FgYellow)
}

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/internal/application/command"
)

var reconcileFrom, reconcileTo string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-derive makeup obligations from clinical attendance",
	Long: `Recompute the makeup obligation of every clinical attendance record in
the window. Obligations whose absence no longer exists are removed; logged
hours on surviving obligations are kept. Both bounds are inclusive and optional.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFrom, "from", "", "first date, YYYY-MM-DD")
	reconcileCmd.Flags().StringVar(&reconcileTo, "to", "", "last date, YYYY-MM-DD")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, appOptions{migrate: true, output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.deps.ReconcileMakeupHours.Handle(cmd.Context(), command.ReconcileMakeupHoursCommand{
		From: reconcileFrom,
		To:   reconcileTo,
	})
	if result == nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "students: %d  records: %d\n", result.Students, result.Records)
	fmt.Fprintf(out, "created:  %d  updated: %d  removed: %d\n", result.Created, result.Updated, result.Removed)
	if len(result.Failed) > 0 {
		fmt.Fprintf(out, "%s %v\n", color.RedString("failed:"), result.Failed)
	}
	return err
}

package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE MAKEUP HOURS COMMAND
// Re-runs the deriver over every clinical attendance record in a date range
// so the ledger converges to the attendance truth. Students are independent:
// each one is processed in its own transaction by a bounded worker pool.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileMakeupHoursCommand selects the attendance range. Empty bounds are open.
type ReconcileMakeupHoursCommand struct {
	From string
	To   string
}

// Validate validates the command.
func (c ReconcileMakeupHoursCommand) Validate() error {
	ve := &shared.ValidationError{Op: "makeup.Reconcile"}
	if c.From != "" && !timeutil.IsValidDate(c.From) {
		ve.Add(-1, "", "from", "must be a calendar date in YYYY-MM-DD format")
	}
	if c.To != "" && !timeutil.IsValidDate(c.To) {
		ve.Add(-1, "", "to", "must be a calendar date in YYYY-MM-DD format")
	}
	if c.From != "" && c.To != "" && c.From > c.To {
		ve.Add(-1, "", "from", "must not be after to")
	}
	return ve.OrNil()
}

// ReconcileMakeupHoursResult summarizes a reconciliation run.
type ReconcileMakeupHoursResult struct {
	From     string
	To       string
	Students int
	Records  int
	Created  int
	Updated  int
	Removed  int
	// Failed lists students whose transaction rolled back.
	Failed   []string
	Duration time.Duration
}

// ReconcileMakeupHoursHandler handles the ReconcileMakeupHoursCommand.
type ReconcileMakeupHoursHandler struct {
	store          uow.Transactor
	eventPublisher shared.EventPublisher
	derivation     DerivationConfig
	workers        int
	log            *logger.Logger
}

// NewReconcileMakeupHoursHandler creates a new handler. workers bounds the
// number of students processed at once.
func NewReconcileMakeupHoursHandler(
	store uow.Transactor,
	eventPublisher shared.EventPublisher,
	derivation DerivationConfig,
	workers int,
	log *logger.Logger,
) *ReconcileMakeupHoursHandler {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logger.Default()
	}
	return &ReconcileMakeupHoursHandler{
		store:          store,
		eventPublisher: eventPublisher,
		derivation:     derivation.withDefaults(),
		workers:        workers,
		log:            log.With(logger.Component("reconcile_makeup_hours")),
	}
}

// Handle executes the command. Per-student failures do not stop other
// students; they are joined into the returned error alongside the result.
func (h *ReconcileMakeupHoursHandler) Handle(ctx context.Context, cmd ReconcileMakeupHoursCommand) (*ReconcileMakeupHoursResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	records, err := h.store.Attendance().ListRange(ctx, attendance.TypeClinical, cmd.From, cmd.To)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list attendance: %w", err)
	}

	byStudent := make(map[string][]*attendance.Record)
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}
	students := make([]string, 0, len(byStudent))
	for id := range byStudent {
		students = append(students, id)
	}
	sort.Strings(students)

	var (
		mu    sync.Mutex
		total derivation
		errs  []error
	)
	result := &ReconcileMakeupHoursResult{
		From:     cmd.From,
		To:       cmd.To,
		Students: len(students),
		Records:  len(records),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for _, studentID := range students {
		studentID := studentID
		g.Go(func() error {
			var d derivation
			err := h.store.WithinTx(gctx, func(ctx context.Context, tx uow.Store) error {
				var err error
				d, err = deriveAndApply(ctx, tx, byStudent[studentID], h.derivation, h.derivation.Now())
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, studentID)
				errs = append(errs, fmt.Errorf("student %s: %w", studentID, err))
				h.log.Error("reconcile failed for student", logger.StudentID(studentID), logger.Err(err))
				return nil
			}
			total.merge(d)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Failed)
	result.Created, result.Updated, result.Removed = total.Created, total.Updated, total.Removed
	result.Duration = time.Since(start)

	events := append(total.Events, shared.NewReconciliationCompletedEvent(
		cmd.From, cmd.To, result.Students, result.Created, result.Updated, result.Removed))
	if err := publishAll(h.eventPublisher, events); err != nil {
		h.log.Warn("failed to publish reconcile events", logger.Err(err))
	}

	h.log.Info("makeup reconciliation finished",
		logger.String("from", cmd.From),
		logger.String("to", cmd.To),
		logger.Count("students", result.Students),
		logger.Count("created", result.Created),
		logger.Count("updated", result.Updated),
		logger.Count("removed", result.Removed),
		logger.Count("failed", len(result.Failed)),
		logger.Latency(result.Duration),
	)

	return result, errors.Join(errs...)
}

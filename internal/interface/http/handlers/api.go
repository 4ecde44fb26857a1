package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nursetrack/clinical-hours/internal/application/command"
	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// Dependencies contains the application handlers behind the API.
type Dependencies struct {
	RecordAttendanceDay  *command.RecordAttendanceDayHandler
	LogMakeupHours       *command.LogMakeupHoursHandler
	DeleteMakeupHours    *command.DeleteMakeupHoursHandler
	AddClinicalLog       *command.AddClinicalLogHandler
	ReviewClinicalLog    *command.ReviewClinicalLogHandler
	ReconcileMakeupHours *command.ReconcileMakeupHoursHandler

	StudentHours     *query.GetStudentHoursSummaryHandler
	MakeupSummary    *query.GetMakeupHoursSummaryHandler
	MakeupSummaries  *query.ListMakeupSummariesHandler
	StudentFlags     *query.GetStudentFlagsHandler
	AttendanceDay    *query.ListAttendanceDayHandler
	AttendanceIssues *query.GetAttendanceIssuesHandler
	ClinicalLogs     *query.ListClinicalLogsHandler

	// Today returns the current calendar date. Defaults to timeutil.Today.
	Today func() string
}

// API serves the /api/v1 routes.
type API struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewAPI creates the API.
func NewAPI(deps Dependencies) *API {
	if deps.Today == nil {
		deps.Today = timeutil.Today
	}
	return &API{deps: deps, validate: validator.New()}
}

// Register mounts the routes on r.
func (a *API) Register(r fiber.Router) {
	students := r.Group("/students/:id")
	students.Get("/hours", a.GetStudentHours)
	students.Get("/makeup", a.GetStudentMakeup)
	students.Get("/flags", a.GetStudentFlags)

	att := r.Group("/attendance")
	att.Get("/issues", a.GetAttendanceIssues)
	att.Get("/:date", a.ListAttendanceDay)
	att.Post("/:date/:type", a.RecordAttendanceDay)

	mk := r.Group("/makeup")
	mk.Get("/", a.ListMakeupSummaries)
	mk.Post("/reconcile", a.Reconcile)
	mk.Post("/:id/log", a.LogMakeupHours)
	mk.Delete("/:id", a.DeleteMakeupHours)

	logs := r.Group("/clinical-logs")
	logs.Get("/", a.ListClinicalLogs)
	logs.Post("/", a.AddClinicalLog)
	logs.Post("/:id/review", a.ReviewClinicalLog)
}

// bind parses and shape-checks a JSON body.
func (a *API) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return a.validate.Struct(dst)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentHours handles GET /students/:id/hours.
func (a *API) GetStudentHours(c *fiber.Ctx) error {
	summary, err := a.deps.StudentHours.Handle(c.UserContext(), query.GetStudentHoursSummaryQuery{
		StudentID: c.Params("id"),
		SkipCache: c.QueryBool("fresh", false),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "hours summary", summary)
}

// GetStudentMakeup handles GET /students/:id/makeup.
func (a *API) GetStudentMakeup(c *fiber.Ctx) error {
	summary, err := a.deps.MakeupSummary.Handle(c.UserContext(), query.GetMakeupHoursSummaryQuery{StudentID: c.Params("id")})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "makeup summary", summary)
}

// GetStudentFlags handles GET /students/:id/flags.
func (a *API) GetStudentFlags(c *fiber.Ctx) error {
	flags, err := a.deps.StudentFlags.Handle(c.UserContext(), query.GetStudentFlagsQuery{StudentID: c.Params("id")})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "student flags", flags)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceDay handles POST /attendance/:date/:type.
func (a *API) RecordAttendanceDay(c *fiber.Ctx) error {
	var req RecordAttendanceRequest
	if err := a.bind(c, &req); err != nil {
		return FromError(c, err)
	}

	result, err := a.deps.RecordAttendanceDay.Handle(c.UserContext(), req.toCommand(c.Params("date"), c.Params("type"), correlationID(c)))
	if err != nil {
		return FromError(c, err)
	}

	today := a.deps.Today()
	return Success(c, "attendance recorded", fiber.Map{
		"saved":               query.AttendanceRecordsFromDomain(result.Saved),
		"derived_obligations": query.MakeupRecordsFromDomain(result.DerivedObligations, today),
		"created":             result.Created,
		"updated":             result.Updated,
		"removed":             result.Removed,
	})
}

// ListAttendanceDay handles GET /attendance/:date?type=.
func (a *API) ListAttendanceDay(c *fiber.Ctx) error {
	records, err := a.deps.AttendanceDay.Handle(c.UserContext(), query.ListAttendanceDayQuery{
		Date: c.Params("date"),
		Type: c.Query("type"),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "attendance", records)
}

// GetAttendanceIssues handles GET /attendance/issues?min_absences=&type=.
func (a *API) GetAttendanceIssues(c *fiber.Ctx) error {
	minAbsences := 0
	if raw := c.Query("min_absences"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Error(c, fiber.StatusBadRequest, "min_absences must be an integer")
		}
		minAbsences = n
	}

	issues, err := a.deps.AttendanceIssues.Handle(c.UserContext(), query.GetAttendanceIssuesQuery{
		MinAbsences: minAbsences,
		Type:        c.Query("type"),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "attendance issues", issues)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAKEUP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// ListMakeupSummaries handles GET /makeup?outstanding=&limit=.
func (a *API) ListMakeupSummaries(c *fiber.Ctx) error {
	summaries, err := a.deps.MakeupSummaries.Handle(c.UserContext(), query.ListMakeupSummariesQuery{
		OutstandingOnly: c.QueryBool("outstanding", false),
		Limit:           c.QueryInt("limit", 0),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "makeup summaries", summaries)
}

// LogMakeupHours handles POST /makeup/:id/log.
func (a *API) LogMakeupHours(c *fiber.Ctx) error {
	var req LogMakeupHoursRequest
	if err := a.bind(c, &req); err != nil {
		return FromError(c, err)
	}

	rec, err := a.deps.LogMakeupHours.Handle(c.UserContext(), command.LogMakeupHoursCommand{
		RecordID:      c.Params("id"),
		Hours:         req.Hours,
		Notes:         req.Notes,
		CorrelationID: correlationID(c),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "makeup hours logged", query.MakeupRecordFromDomain(rec, a.deps.Today()))
}

// DeleteMakeupHours handles DELETE /makeup/:id.
func (a *API) DeleteMakeupHours(c *fiber.Ctx) error {
	err := a.deps.DeleteMakeupHours.Handle(c.UserContext(), command.DeleteMakeupHoursCommand{
		RecordID:      c.Params("id"),
		CorrelationID: correlationID(c),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "makeup record deleted", fiber.Map{"id": c.Params("id")})
}

// Reconcile handles POST /makeup/reconcile.
func (a *API) Reconcile(c *fiber.Ctx) error {
	var req ReconcileRequest
	if len(c.Body()) > 0 {
		if err := a.bind(c, &req); err != nil {
			return FromError(c, err)
		}
	}

	result, err := a.deps.ReconcileMakeupHours.Handle(c.UserContext(), command.ReconcileMakeupHoursCommand{From: req.From, To: req.To})
	if result == nil {
		return FromError(c, err)
	}

	message := "reconciliation completed"
	if err != nil {
		message = "reconciliation completed with failures"
	}
	return Success(c, message, fiber.Map{
		"from":        result.From,
		"to":          result.To,
		"students":    result.Students,
		"records":     result.Records,
		"created":     result.Created,
		"updated":     result.Updated,
		"removed":     result.Removed,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CLINICAL LOGS
// ══════════════════════════════════════════════════════════════════════════════

// ListClinicalLogs handles GET /clinical-logs?student_id=&status=.
func (a *API) ListClinicalLogs(c *fiber.Ctx) error {
	logs, err := a.deps.ClinicalLogs.Handle(c.UserContext(), query.ListClinicalLogsQuery{
		StudentID: c.Query("student_id"),
		Status:    c.Query("status"),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "clinical logs", logs)
}

// AddClinicalLog handles POST /clinical-logs.
func (a *API) AddClinicalLog(c *fiber.Ctx) error {
	var req AddClinicalLogRequest
	if err := a.bind(c, &req); err != nil {
		return FromError(c, err)
	}

	entry, err := a.deps.AddClinicalLog.Handle(c.UserContext(), command.AddClinicalLogCommand{
		StudentID:     req.StudentID,
		Date:          req.Date,
		SiteName:      req.SiteName,
		Hours:         req.Hours,
		IsSimulation:  req.IsSimulation,
		IsMakeup:      req.IsMakeup,
		Description:   req.Description,
		CorrelationID: correlationID(c),
	})
	if err != nil {
		return FromError(c, err)
	}
	return SuccessWithCode(c, fiber.StatusCreated, "clinical log added", query.ClinicalLogFromDomain(entry))
}

// ReviewClinicalLog handles POST /clinical-logs/:id/review.
func (a *API) ReviewClinicalLog(c *fiber.Ctx) error {
	var req ReviewClinicalLogRequest
	if err := a.bind(c, &req); err != nil {
		return FromError(c, err)
	}

	entry, err := a.deps.ReviewClinicalLog.Handle(c.UserContext(), command.ReviewClinicalLogCommand{
		LogID:         c.Params("id"),
		Status:        req.Status,
		Feedback:      req.Feedback,
		ReviewedBy:    req.ReviewedBy,
		CorrelationID: correlationID(c),
	})
	if err != nil {
		return FromError(c, err)
	}
	return Success(c, "clinical log reviewed", query.ClinicalLogFromDomain(entry))
}

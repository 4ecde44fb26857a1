package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/application/command"
	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/memory"
	"github.com/nursetrack/clinical-hours/internal/interface/http/handlers"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

var fixedNow = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, hashes ...string) *Server {
	t.Helper()
	store := memory.NewStore()
	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelFatal})
	pub := shared.NopPublisher{}
	thresholds := compliance.DefaultThresholds()
	classifier := compliance.NewClassifier(thresholds)
	now := func() time.Time { return fixedNow }
	today := func() string { return "2024-03-15" }

	var (
		mu sync.Mutex
		n  int
	)
	derivation := command.DerivationConfig{
		DueInDays: 30,
		Now:       now,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("MKP-%03d", n)
		},
	}

	deps := handlers.Dependencies{
		RecordAttendanceDay:  command.NewRecordAttendanceDayHandler(store, pub, attendance.DefaultShiftDefaults(), derivation, log),
		LogMakeupHours:       command.NewLogMakeupHoursHandler(store, pub, now, log),
		DeleteMakeupHours:    command.NewDeleteMakeupHoursHandler(store, pub, log),
		AddClinicalLog:       command.NewAddClinicalLogHandler(store, pub, now, log),
		ReviewClinicalLog:    command.NewReviewClinicalLogHandler(store, pub, now, log),
		ReconcileMakeupHours: command.NewReconcileMakeupHoursHandler(store, pub, derivation, 2, log),
		StudentHours:         query.NewGetStudentHoursSummaryHandler(store, classifier, clinical.CountPendingAndApproved, nil, log),
		MakeupSummary:        query.NewGetMakeupHoursSummaryHandler(store, today),
		MakeupSummaries:      query.NewListMakeupSummariesHandler(store, today),
		StudentFlags:         query.NewGetStudentFlagsHandler(store, classifier, clinical.CountPendingAndApproved, today),
		AttendanceDay:        query.NewListAttendanceDayHandler(store),
		AttendanceIssues:     query.NewGetAttendanceIssuesHandler(store, thresholds),
		ClinicalLogs:         query.NewListClinicalLogsHandler(store),
		Today:                today,
	}

	cfg := DefaultConfig()
	cfg.APIKeyHashes = hashes
	health := handlers.NewHealthChecker("test")
	health.AddPinger("store", store)
	return NewServer(cfg, deps, health, log)
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, sonic.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is %T", body["data"])
	return d
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, nethttp.MethodGet, "/health", "")
	assert.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, true, body["healthy"])
	assert.Contains(t, body["checks"], "store")
}

func TestAttendanceAndMakeupFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, nethttp.MethodPost, "/api/v1/attendance/2024-03-01/clinical", `{"entries":[
		{"student_id":"s1","status":"Absent"},
		{"student_id":"s2","status":"Partial","hours_attended":5},
		{"student_id":"s3","status":"Present"}
	]}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	d := data(t, body)
	assert.Len(t, d["saved"], 3)
	assert.Len(t, d["derived_obligations"], 2)
	assert.Equal(t, float64(2), d["created"])

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/students/s1/makeup", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, 8.0, data(t, body)["balance_remaining"])

	code, body = do(t, s, nethttp.MethodPost, "/api/v1/makeup/MKP-001/log", `{"hours":3}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Equal(t, 5.0, data(t, body)["hours_remaining"])

	code, body = do(t, s, nethttp.MethodPost, "/api/v1/makeup/MKP-001/log", `{"hours":6}`)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, code)
	assert.Equal(t, 5.0, body["errors"].(map[string]any)["remaining"])

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/makeup/MKP-999/log", `{"hours":1}`)
	assert.Equal(t, nethttp.StatusNotFound, code)

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/makeup?outstanding=true", "")
	require.Equal(t, nethttp.StatusOK, code)
	list := body["data"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].(map[string]any)["student_id"])

	code, _ = do(t, s, nethttp.MethodDelete, "/api/v1/makeup/MKP-002", "")
	assert.Equal(t, nethttp.StatusOK, code)
	code, _ = do(t, s, nethttp.MethodDelete, "/api/v1/makeup/MKP-002", "")
	assert.Equal(t, nethttp.StatusNotFound, code)

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/attendance/2024-03-01?type=clinical", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Len(t, body["data"], 3)
}

func TestRecordAttendanceValidation(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, nethttp.MethodPost, "/api/v1/attendance/2024-03-01/clinical", `{"entries":[
		{"student_id":"s1","status":"Absent"},
		{"student_id":"s1","status":"Present"},
		{"student_id":"s2","status":"Sleeping"}
	]}`)
	require.Equal(t, nethttp.StatusBadRequest, code)
	violations := body["errors"].([]any)
	require.Len(t, violations, 2)
	assert.Equal(t, float64(1), violations[0].(map[string]any)["index"])
	assert.Equal(t, "status", violations[1].(map[string]any)["field"])

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/attendance/2024-03-01", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Empty(t, body["data"])

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/attendance/2024-03-01/clinical", `{"entries":[]}`)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/attendance/2024-03-01/clinical", `{not json`)
	assert.Equal(t, nethttp.StatusBadRequest, code)
}

func TestClinicalLogsAndHours(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, nethttp.MethodPost, "/api/v1/clinical-logs",
		`{"student_id":"s1","date":"2024-03-01","site_name":"General","hours":8}`)
	require.Equal(t, nethttp.StatusCreated, code, body)
	id := data(t, body)["id"].(string)
	assert.Equal(t, "Pending", data(t, body)["status"])

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/clinical-logs",
		`{"student_id":"s1","date":"03/01/2024","site_name":"General","hours":8}`)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/students/s1/hours", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, 8.0, data(t, body)["total_hours"])

	code, body = do(t, s, nethttp.MethodPost, "/api/v1/clinical-logs/"+id+"/review", `{"status":"Approved"}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Equal(t, "Approved", data(t, body)["status"])

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/clinical-logs/"+id+"/review", `{"status":"Rejected","feedback":"late"}`)
	assert.Equal(t, nethttp.StatusConflict, code)

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/clinical-logs?student_id=s1", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, _ = do(t, s, nethttp.MethodGet, "/api/v1/students/nobody/hours", "")
	assert.Equal(t, nethttp.StatusNotFound, code)

	code, body = do(t, s, nethttp.MethodGet, "/api/v1/students/s1/flags", "")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "s1", data(t, body)["student_id"])
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := handlers.HashAPIKey("secret-key")
	require.NoError(t, err)
	s := newTestServer(t, hash)

	code, _ := do(t, s, nethttp.MethodGet, "/api/v1/makeup", "")
	assert.Equal(t, nethttp.StatusUnauthorized, code)

	code, _ = do(t, s, nethttp.MethodGet, "/api/v1/makeup", "", "X-API-Key", "wrong")
	assert.Equal(t, nethttp.StatusUnauthorized, code)

	code, _ = do(t, s, nethttp.MethodGet, "/api/v1/makeup", "", "X-API-Key", "secret-key")
	assert.Equal(t, nethttp.StatusOK, code)

	code, _ = do(t, s, nethttp.MethodGet, "/api/v1/makeup", "", "Authorization", "Bearer secret-key")
	assert.Equal(t, nethttp.StatusOK, code)

	code, _ = do(t, s, nethttp.MethodGet, "/health", "")
	assert.Equal(t, nethttp.StatusOK, code)
}

func TestReconcileAndIssues(t *testing.T) {
	s := newTestServer(t)

	for _, date := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		code, body := do(t, s, nethttp.MethodPost, "/api/v1/attendance/"+date+"/clinical", `{"entries":[{"student_id":"s1","status":"Absent"}]}`)
		require.Equal(t, nethttp.StatusOK, code, body)
	}

	code, body := do(t, s, nethttp.MethodGet, "/api/v1/attendance/issues?min_absences=3", "")
	require.Equal(t, nethttp.StatusOK, code)
	issues := body["data"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "warning", issues[0].(map[string]any)["severity"])

	code, _ = do(t, s, nethttp.MethodGet, "/api/v1/attendance/issues?min_absences=x", "")
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, body = do(t, s, nethttp.MethodPost, "/api/v1/makeup/reconcile", `{"from":"2024-03-01","to":"2024-03-31"}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	d := data(t, body)
	assert.Equal(t, float64(1), d["students"])
	assert.Equal(t, float64(0), d["created"])

	code, _ = do(t, s, nethttp.MethodPost, "/api/v1/makeup/reconcile", `{"from":"2024-04-01","to":"2024-03-01"}`)
	assert.Equal(t, nethttp.StatusBadRequest, code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, nethttp.MethodGet, "/api/v2/nothing", "")
	assert.Equal(t, nethttp.StatusNotFound, code)
	assert.Equal(t, "error", body["status"])
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsFailingDependency(t *testing.T) {
	health := handlers.NewHealthChecker("test")
	health.AddPinger("store", memory.NewStore())
	health.AddPinger("redis", downPinger{})

	status := health.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "unavailable: redis", status.Message)
	assert.True(t, status.Checks["store"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Error)
}

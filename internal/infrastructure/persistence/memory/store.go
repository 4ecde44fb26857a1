// Package memory is an in-process record store. It backs tests, demos and the
// single-binary "memory" mode. Every read and write copies records so callers
// never share mutable state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

type state struct {
	logs       map[string]*clinical.LogEntry
	attendance map[string]*attendance.Record
	makeup     map[string]*makeup.Record
}

func newState() *state {
	return &state{
		logs:       make(map[string]*clinical.LogEntry),
		attendance: make(map[string]*attendance.Record),
		makeup:     make(map[string]*makeup.Record),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.logs {
		e := *v
		c.logs[k] = &e
	}
	for k, v := range s.attendance {
		c.attendance[k] = v.Clone()
	}
	for k, v := range s.makeup {
		c.makeup[k] = v.Clone()
	}
	return c
}

// Store is a mutex-guarded in-memory implementation of uow.Transactor.
// Transactions hold the store lock for their whole duration and restore a
// snapshot on error.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ uow.Transactor = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// ClinicalLogs implements uow.Store.
func (s *Store) ClinicalLogs() clinical.Repository { return &logRepo{s: s} }

// Attendance implements uow.Store.
func (s *Store) Attendance() attendance.Repository { return &attendanceRepo{s: s} }

// Makeup implements uow.Store.
func (s *Store) Makeup() makeup.Repository { return &makeupRepo{s: s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WithinTx implements uow.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx uow.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &txStore{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// guard locks the store unless the caller already runs inside WithinTx.
func (s *Store) guard(locked bool) func() {
	if locked {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type txStore struct {
	s *Store
}

func (t *txStore) ClinicalLogs() clinical.Repository { return &logRepo{s: t.s, locked: true} }
func (t *txStore) Attendance() attendance.Repository { return &attendanceRepo{s: t.s, locked: true} }
func (t *txStore) Makeup() makeup.Repository         { return &makeupRepo{s: t.s, locked: true} }

// ══════════════════════════════════════════════════════════════════════════════
// CLINICAL LOGS
// ══════════════════════════════════════════════════════════════════════════════

type logRepo struct {
	s      *Store
	locked bool
}

func (r *logRepo) Create(ctx context.Context, entry *clinical.LogEntry) error {
	defer r.s.guard(r.locked)()
	if _, ok := r.s.st.logs[entry.ID]; ok {
		return shared.NewDomainError("clinical", "Create", shared.ErrAlreadyExists, "log "+entry.ID+" already exists")
	}
	e := *entry
	r.s.st.logs[entry.ID] = &e
	return nil
}

func (r *logRepo) GetByID(ctx context.Context, id string) (*clinical.LogEntry, error) {
	defer r.s.guard(r.locked)()
	e, ok := r.s.st.logs[id]
	if !ok {
		return nil, shared.NotFound("clinical", "GetByID", "clinical log", id)
	}
	c := *e
	return &c, nil
}

func (r *logRepo) ListByStudent(ctx context.Context, studentID string) ([]*clinical.LogEntry, error) {
	defer r.s.guard(r.locked)()
	out := make([]*clinical.LogEntry, 0)
	for _, e := range r.s.st.logs {
		if e.StudentID == studentID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *logRepo) ListByStatus(ctx context.Context, status clinical.LogStatus) ([]*clinical.LogEntry, error) {
	defer r.s.guard(r.locked)()
	out := make([]*clinical.LogEntry, 0)
	for _, e := range r.s.st.logs {
		if e.Status == status {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *logRepo) UpdateStatus(ctx context.Context, entry *clinical.LogEntry, expected clinical.LogStatus) error {
	defer r.s.guard(r.locked)()
	stored, ok := r.s.st.logs[entry.ID]
	if !ok {
		return shared.NotFound("clinical", "UpdateStatus", "clinical log", entry.ID)
	}
	if stored.Status != expected {
		return shared.NewDomainError("clinical", "UpdateStatus", shared.ErrOptimisticLock,
			"log "+entry.ID+" changed concurrently")
	}
	stored.Status = entry.Status
	stored.Feedback = entry.Feedback
	stored.ReviewedBy = entry.ReviewedBy
	stored.UpdatedAt = entry.UpdatedAt
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

type attendanceRepo struct {
	s      *Store
	locked bool
}

func (r *attendanceRepo) ListByDate(ctx context.Context, date string, t attendance.Type) ([]*attendance.Record, error) {
	defer r.s.guard(r.locked)()
	return r.collect(func(rec *attendance.Record) bool {
		return rec.Date == date && (t == "" || rec.Type == t)
	}), nil
}

func (r *attendanceRepo) ListByStudent(ctx context.Context, studentID string) ([]*attendance.Record, error) {
	defer r.s.guard(r.locked)()
	return r.collect(func(rec *attendance.Record) bool {
		return rec.StudentID == studentID
	}), nil
}

func (r *attendanceRepo) ListRange(ctx context.Context, t attendance.Type, from, to string) ([]*attendance.Record, error) {
	defer r.s.guard(r.locked)()
	return r.collect(func(rec *attendance.Record) bool {
		return (t == "" || rec.Type == t) && timeutil.InRange(rec.Date, from, to)
	}), nil
}

func (r *attendanceRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*attendance.Record, error) {
	defer r.s.guard(r.locked)()
	out := make(map[string]*attendance.Record, len(ids))
	for _, id := range ids {
		if rec, ok := r.s.st.attendance[id]; ok {
			out[id] = rec.Clone()
		}
	}
	return out, nil
}

func (r *attendanceRepo) UpsertBatch(ctx context.Context, records []*attendance.Record) error {
	defer r.s.guard(r.locked)()
	for _, rec := range records {
		r.s.st.attendance[rec.ID] = rec.Clone()
	}
	return nil
}

func (r *attendanceRepo) collect(match func(*attendance.Record) bool) []*attendance.Record {
	out := make([]*attendance.Record, 0)
	for _, rec := range r.s.st.attendance {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// MAKEUP
// ══════════════════════════════════════════════════════════════════════════════

type makeupRepo struct {
	s      *Store
	locked bool
}

func (r *makeupRepo) GetByID(ctx context.Context, id string) (*makeup.Record, error) {
	defer r.s.guard(r.locked)()
	rec, ok := r.s.st.makeup[id]
	if !ok {
		return nil, shared.NotFound("makeup", "GetByID", "makeup record", id)
	}
	return rec.Clone(), nil
}

func (r *makeupRepo) ListByStudent(ctx context.Context, studentID string) ([]*makeup.Record, error) {
	defer r.s.guard(r.locked)()
	return r.collect(func(rec *makeup.Record) bool { return rec.StudentID == studentID }), nil
}

func (r *makeupRepo) ListAll(ctx context.Context) ([]*makeup.Record, error) {
	defer r.s.guard(r.locked)()
	return r.collect(func(*makeup.Record) bool { return true }), nil
}

func (r *makeupRepo) GetByAbsenceIDs(ctx context.Context, absenceIDs []string) (map[string]*makeup.Record, error) {
	defer r.s.guard(r.locked)()
	want := make(map[string]struct{}, len(absenceIDs))
	for _, id := range absenceIDs {
		want[id] = struct{}{}
	}
	out := make(map[string]*makeup.Record)
	for _, rec := range r.s.st.makeup {
		if rec.OriginalAbsenceID == "" {
			continue
		}
		if _, ok := want[rec.OriginalAbsenceID]; ok {
			out[rec.OriginalAbsenceID] = rec.Clone()
		}
	}
	return out, nil
}

func (r *makeupRepo) Create(ctx context.Context, rec *makeup.Record) error {
	defer r.s.guard(r.locked)()
	if _, ok := r.s.st.makeup[rec.ID]; ok {
		return shared.NewDomainError("makeup", "Create", shared.ErrAlreadyExists, "makeup record "+rec.ID+" already exists")
	}
	if rec.OriginalAbsenceID != "" {
		for _, other := range r.s.st.makeup {
			if other.OriginalAbsenceID == rec.OriginalAbsenceID {
				return shared.NewDomainError("makeup", "Create", shared.ErrAlreadyExists,
					"an obligation for absence "+rec.OriginalAbsenceID+" already exists")
			}
		}
	}
	rec.Version = 1
	r.s.st.makeup[rec.ID] = rec.Clone()
	return nil
}

func (r *makeupRepo) Update(ctx context.Context, rec *makeup.Record, expectedVersion int64) error {
	defer r.s.guard(r.locked)()
	stored, ok := r.s.st.makeup[rec.ID]
	if !ok {
		return shared.NotFound("makeup", "Update", "makeup record", rec.ID)
	}
	if stored.Version != expectedVersion {
		return shared.NewDomainError("makeup", "Update", shared.ErrOptimisticLock,
			"makeup record "+rec.ID+" changed concurrently")
	}
	rec.Version = expectedVersion + 1
	r.s.st.makeup[rec.ID] = rec.Clone()
	return nil
}

func (r *makeupRepo) Delete(ctx context.Context, id string) error {
	defer r.s.guard(r.locked)()
	if _, ok := r.s.st.makeup[id]; !ok {
		return shared.NotFound("makeup", "Delete", "makeup record", id)
	}
	delete(r.s.st.makeup, id)
	return nil
}

func (r *makeupRepo) collect(match func(*makeup.Record) bool) []*makeup.Record {
	out := make([]*makeup.Record, 0)
	for _, rec := range r.s.st.makeup {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

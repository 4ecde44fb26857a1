package eventhandler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

type fakeCache struct {
	invalidated []string
	err         error
}

func (c *fakeCache) GetHoursSummary(context.Context, string) (*query.StudentHoursDTO, bool, error) {
	return nil, false, nil
}

func (c *fakeCache) SetHoursSummary(context.Context, *query.StudentHoursDTO) error { return nil }

func (c *fakeCache) InvalidateStudent(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	return c.err
}

type subscriptions map[shared.EventType][]shared.EventHandler

func (s subscriptions) Subscribe(t shared.EventType, h shared.EventHandler) error {
	s[t] = append(s[t], h)
	return nil
}

func (s subscriptions) SubscribeAll(shared.EventHandler) error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOnClinicalLogChanged_InvalidatesStudent(t *testing.T) {
	cache := &fakeCache{}
	h := NewOnClinicalLogChangedHandler(cache, discard())

	require.NoError(t, h.Handle(shared.NewClinicalLogAddedEvent("l1", "s1", "General", 8, false)))
	require.NoError(t, h.Handle(shared.NewClinicalLogReviewedEvent("l1", "s2", "Approved")))
	assert.Equal(t, []string{"s1", "s2"}, cache.invalidated)

	cache.err = errors.New("redis down")
	assert.Error(t, h.Handle(shared.NewClinicalLogAddedEvent("l2", "s1", "General", 8, false)))
}

func TestRegister(t *testing.T) {
	subs := subscriptions{}
	require.NoError(t, Register(subs,
		NewOnClinicalLogChangedHandler(&fakeCache{}, discard()),
		NewLedgerAuditHandler(discard()),
	))

	assert.Len(t, subs[shared.EventClinicalLogAdded], 1)
	assert.Len(t, subs[shared.EventClinicalLogReviewed], 1)
	assert.Len(t, subs[shared.EventMakeupHoursLogged], 1)
	assert.Len(t, subs[shared.EventReconciliationCompleted], 1)
}

func TestLedgerAudit_WritesPayload(t *testing.T) {
	var buf bytes.Buffer
	h := NewLedgerAuditHandler(slog.New(slog.NewJSONHandler(&buf, nil)))

	e := shared.NewMakeupObligationDeletedEvent("MKP-1", "s1")
	e.BaseEvent = e.WithCorrelationID("req-9")
	require.NoError(t, h.Handle(e))

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"aggregate_id":"MKP-1"`)
	assert.Contains(t, out, `"student_id":"s1"`)
	assert.Contains(t, out, `"correlation_id":"req-9"`)
}

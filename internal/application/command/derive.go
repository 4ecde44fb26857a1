package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DERIVATION
// Shared by RecordAttendanceDay and ReconcileMakeupHours: runs the deriver
// over saved clinical records and applies each plan through the store.
// ══════════════════════════════════════════════════════════════════════════════

// DerivationConfig holds the inputs of makeup derivation.
type DerivationConfig struct {
	// DueInDays is added to the attendance date to get the due date.
	DueInDays int

	// NewID generates makeup record ids.
	NewID func() string

	// Now returns the current time.
	Now func() time.Time
}

// DefaultDerivationConfig returns the production configuration.
func DefaultDerivationConfig() DerivationConfig {
	return DerivationConfig{
		DueInDays: 30,
		NewID:     NewMakeupID,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c DerivationConfig) withDefaults() DerivationConfig {
	d := DefaultDerivationConfig()
	if c.DueInDays <= 0 {
		c.DueInDays = d.DueInDays
	}
	if c.NewID == nil {
		c.NewID = d.NewID
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// NewMakeupID returns a fresh makeup record id.
func NewMakeupID() string {
	return makeup.IDPrefix + uuid.NewString()
}

// derivation is what applying the plans of one batch did.
type derivation struct {
	// Obligations holds the current obligation of every record in the batch
	// that has one, in batch order.
	Obligations []*makeup.Record
	Created     int
	Updated     int
	Removed     int
	Events      []shared.Event
}

func (d *derivation) merge(o derivation) {
	d.Obligations = append(d.Obligations, o.Obligations...)
	d.Created += o.Created
	d.Updated += o.Updated
	d.Removed += o.Removed
	d.Events = append(d.Events, o.Events...)
}

// deriveAndApply must run inside a transaction so the batch commits as a whole.
func deriveAndApply(ctx context.Context, tx uow.Store, records []*attendance.Record, cfg DerivationConfig, now time.Time) (derivation, error) {
	var out derivation

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Type == attendance.TypeClinical {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	existing, err := tx.Makeup().GetByAbsenceIDs(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("load obligations: %w", err)
	}

	opts := makeup.DeriveOptions{Now: now, DueInDays: cfg.DueInDays, NewID: cfg.NewID}

	for _, rec := range records {
		if rec.Type != attendance.TypeClinical {
			continue
		}
		current := existing[rec.ID]
		plan := makeup.Derive(rec, current, opts)

		switch plan.Action {
		case makeup.ActionCreate:
			if err := tx.Makeup().Create(ctx, plan.Record); err != nil {
				return out, fmt.Errorf("create obligation for %s: %w", rec.ID, err)
			}
			out.Created++
			out.Obligations = append(out.Obligations, plan.Record)
			out.Events = append(out.Events, shared.NewMakeupObligationDerivedEvent(
				plan.Record.ID, plan.Record.StudentID, rec.ID, plan.Record.HoursOwed, true))

		case makeup.ActionUpdate:
			if err := tx.Makeup().Update(ctx, plan.Record, current.Version); err != nil {
				return out, fmt.Errorf("update obligation %s: %w", current.ID, err)
			}
			out.Updated++
			out.Obligations = append(out.Obligations, plan.Record)
			out.Events = append(out.Events, shared.NewMakeupObligationDerivedEvent(
				plan.Record.ID, plan.Record.StudentID, rec.ID, plan.Record.HoursOwed, false))

		case makeup.ActionRemove:
			if err := tx.Makeup().Delete(ctx, current.ID); err != nil {
				return out, fmt.Errorf("remove obligation %s: %w", current.ID, err)
			}
			out.Removed++
			out.Events = append(out.Events, shared.NewMakeupObligationRemovedEvent(
				current.ID, current.StudentID, rec.ID))

		default:
			if plan.Record != nil {
				out.Obligations = append(out.Obligations, plan.Record)
			}
		}
	}

	return out, nil
}

// publishAll publishes events after a commit. Publish failures never undo a
// committed write; they are returned for logging only.
func publishAll(p shared.EventPublisher, events []shared.Event) error {
	if p == nil {
		return nil
	}
	var firstErr error
	for _, e := range events {
		if err := p.Publish(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

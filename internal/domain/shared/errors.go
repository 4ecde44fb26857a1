// Package shared holds the error kinds, events and ports used by every
// domain package. It imports nothing outside the standard library.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is or the Is* helpers below.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrValidation          = errors.New("validation failed")
	ErrStateTransition     = errors.New("invalid state transition")
	ErrInsufficientBalance = errors.New("insufficient makeup balance")
	ErrOptimisticLock      = errors.New("record changed concurrently")
	ErrServiceUnavailable  = errors.New("service unavailable")
)

// DomainError attaches the failing domain and operation to an error kind.
type DomainError struct {
	Domain  string // attendance, makeup, clinical
	Op      string
	Kind    error
	Message string
	Err     error // cause, optional
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain)
	b.WriteByte('.')
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// NotFound builds an ErrNotFound error for one entity id.
func NotFound(domain, op, entity, id string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION ERROR
// ══════════════════════════════════════════════════════════════════════════════

// FieldViolation describes one rejected field of one input entry.
type FieldViolation struct {
	// Index is the position of the entry in the submitted batch, -1 for
	// violations that are not tied to a single entry.
	Index     int    `json:"index"`
	StudentID string `json:"student_id,omitempty"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
}

// ValidationError reports every violation found in a submission.
// A batch carrying a ValidationError was rejected before any write.
type ValidationError struct {
	Op         string
	Violations []FieldViolation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		switch {
		case v.StudentID != "":
			parts = append(parts, fmt.Sprintf("entry %d (student %s): %s %s", v.Index, v.StudentID, v.Field, v.Reason))
		case v.Index >= 0:
			parts = append(parts, fmt.Sprintf("entry %d: %s %s", v.Index, v.Field, v.Reason))
		default:
			parts = append(parts, fmt.Sprintf("%s %s", v.Field, v.Reason))
		}
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Op, strings.Join(parts, "; "))
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a violation.
func (e *ValidationError) Add(index int, studentID, field, reason string) {
	e.Violations = append(e.Violations, FieldViolation{
		Index:     index,
		StudentID: studentID,
		Field:     field,
		Reason:    reason,
	})
}

// HasViolations reports whether anything was recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// OrNil returns e when it carries violations and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasViolations() {
		return nil
	}
	return e
}

// NewValidationError creates a ValidationError with a single violation.
func NewValidationError(op string, index int, studentID, field, reason string) *ValidationError {
	ve := &ValidationError{Op: op}
	ve.Add(index, studentID, field, reason)
	return ve
}

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE ERROR
// ══════════════════════════════════════════════════════════════════════════════

// BalanceError is returned when logged makeup hours exceed the remaining balance.
type BalanceError struct {
	RecordID  string
	Requested float64
	Remaining float64
}

// Error implements the error interface.
func (e *BalanceError) Error() string {
	return fmt.Sprintf("makeup.LogHours: cannot log %.2f hours on %s: only %.2f hours remaining",
		e.Requested, e.RecordID, e.Remaining)
}

// Is makes BalanceError match ErrInsufficientBalance.
func (e *BalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsBalance(err error) bool       { return errors.Is(err, ErrInsufficientBalance) }

// IsConflict reports a lost race with another writer: a stale version or a
// status that moved on since it was read.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock) || errors.Is(err, ErrStateTransition)
}

package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("lead was modified concurrently")
	ErrDuplicateDelivery = errors.New("duplicate delivery")
)

// ValidationError means a required canonical field could not be resolved.
// No documents are attempted once it is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move lead from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ExternalServiceError wraps a failed collaborator call.
type ExternalServiceError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *ExternalServiceError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("%s (retryable): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError classifies err; deadline and cancellation
// failures are retryable.
func NewExternalServiceError(op string, err error) *ExternalServiceError {
	var ese *ExternalServiceError
	if errors.As(err, &ese) {
		return ese
	}
	return &ExternalServiceError{
		Op:        op,
		Err:       err,
		Retryable: errors.Is(err, context.DeadlineExceeded),
	}
}

// RecordStoreError wraps a failed read/modify/write against the lead store.
type RecordStoreError struct {
	Op     string
	LeadID string
	Err    error
}

func (e *RecordStoreError) Error() string {
	if e.LeadID == "" {
		return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("record store %s %s: %v", e.Op, e.LeadID, e.Err)
}

func (e *RecordStoreError) Unwrap() error { return e.Err }

// PartialMaterializationError describes a batch where some, but not all,
// documents failed. It is informational; the batch still succeeded.
type PartialMaterializationError struct {
	Failed    []string
	Attempted int
}

func (e *PartialMaterializationError) Error() string {
	return fmt.Sprintf("%d of %d documents failed: %s", len(e.Failed), e.Attempted, strings.Join(e.Failed, ", "))
}

// TotalMaterializationFailure means no document in the batch was produced.
type TotalMaterializationFailure struct {
	Attempted int
	Err       error
}

func (e *TotalMaterializationFailure) Error() string {
	return fmt.Sprintf("all %d documents failed: %v", e.Attempted, e.Err)
}

func (e *TotalMaterializationFailure) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth re-running the same entrypoint for.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	var ese *ExternalServiceError
	return errors.As(err, &ese) && ese.Retryable
}

package analysis

import (
	"errors"
	"fmt"
)

// Sentinel error kinds from the error taxonomy (§7). Each is wrapped with
// context via the Kind* error types below rather than used bare.
var (
	ErrValidation         = errors.New("validation error")
	ErrAuth               = errors.New("authentication error")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrNotFound           = errors.New("analysis not found")
	ErrStage              = errors.New("stage error")
	ErrExternalUnavailable = errors.New("external collaborator unavailable")
	ErrCache              = errors.New("cache backend error")
	ErrTimeout            = errors.New("operation timed out")
	ErrFatal              = errors.New("fatal error")
	ErrQueueFull          = errors.New("dispatcher queue full")
)

// ValidationError carries the specific field/reason for a rejected Submit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StageErr wraps a failure raised inside a single stage. The engine is the
// only catcher (§7 propagation policy: "within a stage, errors raise; the
// engine catches at stage boundary").
type StageErr struct {
	Stage StageName
	Err   error
	// Timeout marks this as a TimeoutError per the taxonomy table.
	Timeout bool
}

func (e *StageErr) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s: timeout: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageErr) Unwrap() error { return ErrStage }

// NewStageError wraps err as a StageError for the given stage.
func NewStageError(stage StageName, err error) *StageErr {
	return &StageErr{Stage: stage, Err: err}
}

// NewStageTimeout wraps err as a TimeoutError-flavored StageError.
func NewStageTimeout(stage StageName, err error) *StageErr {
	return &StageErr{Stage: stage, Err: err, Timeout: true}
}

package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a classified run error.
type ErrorCode string

const (
	ErrCodeInterrupted        ErrorCode = "interrupted"
	ErrCodeTimeout            ErrorCode = "timeout"
	ErrCodeScorerFailed       ErrorCode = "scorer_failed"
	ErrCodeInvariantViolation ErrorCode = "invariant_violation"
	ErrCodeIO                 ErrorCode = "io_failure"
	ErrCodeInvalidConfig      ErrorCode = "invalid_config"
	ErrCodeProcessingError    ErrorCode = "processing_error"
)

// RunError is a structured error for a failed resolution run.
type RunError struct {
	Code       ErrorCode
	Stage      string
	DocumentID string
	Message    string
	Cause      error
}

func (e *RunError) Error() string {
	switch {
	case e.DocumentID != "" && e.Stage != "":
		return fmt.Sprintf("%s: document %s: %s: %s", e.Code, e.DocumentID, e.Stage, e.Message)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns a *RunError with the appropriate code.
// An error that is already a *RunError is returned unchanged apart from filling in
// an empty stage. Unknown errors map to ErrCodeProcessingError.
func ClassifyError(err error, stage string) *RunError {
	if err == nil {
		return nil
	}

	var existing *RunError
	if errors.As(err, &existing) {
		if existing.Stage == "" {
			existing.Stage = stage
		}
		return existing
	}

	re := &RunError{
		Stage:   stage,
		Message: err.Error(),
		Cause:   err,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		re.Code = ErrCodeTimeout
		re.Message = "run deadline exceeded"
	case errors.Is(err, context.Canceled), errors.Is(err, ErrInterrupted):
		re.Code = ErrCodeInterrupted
		re.Message = "run interrupted"
	case errors.Is(err, ErrScorerFailed):
		re.Code = ErrCodeScorerFailed
	case errors.Is(err, ErrInvariantViolation):
		re.Code = ErrCodeInvariantViolation
	case errors.Is(err, ErrIO):
		re.Code = ErrCodeIO
	case errors.Is(err, ErrValidation):
		re.Code = ErrCodeInvalidConfig
	default:
		re.Code = ErrCodeProcessingError
	}
	return re
}

// CodeOf returns the error code carried by err, classifying it when needed.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return ClassifyError(err, "").Code
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return IsRetryable(re.Code)
	}
	return false
}

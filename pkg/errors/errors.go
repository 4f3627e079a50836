// Package errors provides common domain error types for the coreference engine.
//
// This package defines sentinel errors for conditions that callers are expected to
// branch on, such as a cancelled resolution run or a broken cluster-store contract.
// Using typed errors enables consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("cluster %d: %w", id, corerrors.ErrNotFound)
//
//	// Check for domain errors
//	if corerrors.IsInterrupted(err) {
//	    // the run was cancelled, nothing was committed
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInterrupted indicates a run was cancelled cooperatively before completion.
	// No partial result is visible when this is returned.
	ErrInterrupted = errors.New("interrupted")

	// ErrInvariantViolation indicates a programming-contract violation, such as
	// merging a cluster that is no longer live.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrScorerFailed indicates the pair scorer returned an error.
	ErrScorerFailed = errors.New("scorer failed")

	// ErrIO indicates a required external I/O operation failed during a run.
	ErrIO = errors.New("i/o failure")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsInterrupted reports whether any error in err's chain is ErrInterrupted.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// IsInvariantViolation reports whether any error in err's chain is ErrInvariantViolation.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsScorerFailed reports whether any error in err's chain is ErrScorerFailed.
func IsScorerFailed(err error) bool {
	return errors.Is(err, ErrScorerFailed)
}

// IsIO reports whether any error in err's chain is ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

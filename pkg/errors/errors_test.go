package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsInterrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrInterrupted, true},
		{"wrapped once", fmt.Errorf("link: %w", ErrInterrupted), true},
		{"wrapped twice", fmt.Errorf("resolve: %w", fmt.Errorf("link: %w", ErrInterrupted)), true},
		{"different error", ErrInvariantViolation, false},
		{"nil error", nil, false},
		{"unrelated error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInterrupted(tt.err); got != tt.want {
				t.Errorf("IsInterrupted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInvariantViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrInvariantViolation, true},
		{"wrapped", fmt.Errorf("merge 3 into 4: %w", ErrInvariantViolation), true},
		{"different error", ErrInterrupted, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvariantViolation(tt.err); got != tt.want {
				t.Errorf("IsInvariantViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrNotFound, true},
		{"wrapped", fmt.Errorf("cluster 7: %w", ErrNotFound), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinelHelpers(t *testing.T) {
	if !IsScorerFailed(fmt.Errorf("pair 1->2: %w", ErrScorerFailed)) {
		t.Error("IsScorerFailed() = false for wrapped ErrScorerFailed")
	}
	if !IsIO(fmt.Errorf("scratch: %w", ErrIO)) {
		t.Error("IsIO() = false for wrapped ErrIO")
	}
	if !IsValidation(fmt.Errorf("thresholds: %w", ErrValidation)) {
		t.Error("IsValidation() = false for wrapped ErrValidation")
	}
	if !IsInvalidState(ErrInvalidState) {
		t.Error("IsInvalidState() = false for ErrInvalidState")
	}
}

package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		ErrCodeInterrupted,
		ErrCodeTimeout,
		ErrCodeScorerFailed,
		ErrCodeInvariantViolation,
		ErrCodeIO,
		ErrCodeInvalidConfig,
		ErrCodeProcessingError,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code, "Registry entry should have matching code")
			assert.NotEmpty(t, info.Description, "Description should not be empty")
			assert.NotEmpty(t, info.SuggestedAction, "SuggestedAction should not be empty")
		})
	}
}

func TestIsRetryable_ErrorCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected bool
	}{
		{ErrCodeInterrupted, true},
		{ErrCodeTimeout, true},
		{ErrCodeIO, true},
		{ErrCodeScorerFailed, false},
		{ErrCodeInvariantViolation, false},
		{ErrCodeInvalidConfig, false},
		{ErrCodeProcessingError, false},
		{ErrorCode("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.code))
		})
	}
}

func TestGetDescription_Unknown(t *testing.T) {
	assert.Equal(t, "Unknown error", GetDescription(ErrorCode("nope")))
	assert.NotEmpty(t, GetSuggestedAction(ErrorCode("nope")))
}

package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrCodeInterrupted: {
		Code:            ErrCodeInterrupted,
		Retryable:       true,
		Description:     "Resolution run cancelled before completion; nothing was committed",
		SuggestedAction: "Re-run the document: penf-coref resolve <document>",
	},
	ErrCodeTimeout: {
		Code:            ErrCodeTimeout,
		Retryable:       true,
		Description:     "Resolution run exceeded its deadline",
		SuggestedAction: "Raise the run timeout: penf-coref resolve --timeout 5m",
	},
	ErrCodeScorerFailed: {
		Code:            ErrCodeScorerFailed,
		Retryable:       false,
		Description:     "Pair scorer failed and is configured as total",
		SuggestedAction: "Check the document's score table or model weights, or set scorer_total: false",
	},
	ErrCodeInvariantViolation: {
		Code:            ErrCodeInvariantViolation,
		Retryable:       false,
		Description:     "Cluster store contract violated (stale or unknown cluster)",
		SuggestedAction: "This is a bug; capture the document and the scratch database",
	},
	ErrCodeIO: {
		Code:            ErrCodeIO,
		Retryable:       true,
		Description:     "Required external I/O failed (scratch store or partition repository)",
		SuggestedAction: "Check the scratch path and database connectivity: penf-coref config show",
	},
	ErrCodeInvalidConfig: {
		Code:            ErrCodeInvalidConfig,
		Retryable:       false,
		Description:     "Configuration or input document is invalid",
		SuggestedAction: "Validate thresholds and distance bounds: penf-coref config show",
	},
	ErrCodeProcessingError: {
		Code:            ErrCodeProcessingError,
		Retryable:       false,
		Description:     "Unclassified processing error",
		SuggestedAction: "Re-run with --debug and inspect the log output",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug and inspect the log output"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}

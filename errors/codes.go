package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a transcription backend is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Input errors
const (
	// ErrCodeNoInputs indicates input resolution produced zero files.
	ErrCodeNoInputs ErrorCode = "NO_INPUTS"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Processing errors
const (
	// ErrCodeTranscriptionFailed indicates a single file could not be transcribed.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// Process exit codes used by the command line.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNoInputs = 3
)

var exitCodes = map[ErrorCode]int{
	ErrCodeNoInputs:     ExitNoInputs,
	ErrCodeInvalidInput: ExitUsage,
	ErrCodeMissingField: ExitUsage,
	ErrCodeNotFound:     ExitUsage,
}

// ExitCodeFor returns the process exit code for an error code.
func ExitCodeFor(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitFailure
}

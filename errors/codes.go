package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Job setup errors (fatal, the job never starts)
const (
	// ErrCodeConfigInvalid indicates bad job or provider parameters.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrCodeProviderUnknown indicates the requested provider is not registered.
	ErrCodeProviderUnknown ErrorCode = "PROVIDER_UNKNOWN"
	// ErrCodeSourceUnreadable indicates the audio source cannot be opened or decoded.
	ErrCodeSourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
)

// Chunk-level transcription errors
const (
	// ErrCodeProviderTransient indicates a transient provider failure (retryable).
	ErrCodeProviderTransient ErrorCode = "PROVIDER_TRANSIENT"
	// ErrCodeProviderPermanent indicates a permanent provider failure (malformed input, unsupported audio).
	ErrCodeProviderPermanent ErrorCode = "PROVIDER_PERMANENT"
	// ErrCodeAuthFailed indicates the provider rejected our credentials.
	ErrCodeAuthFailed ErrorCode = "AUTH_FAILED"
	// ErrCodeRateLimited indicates the provider is throttling us.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeTimeout indicates a unit of work exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeStagingFailed indicates a chunk could not be staged to blob storage.
	ErrCodeStagingFailed ErrorCode = "STAGING_FAILED"
)

// Job lifecycle errors
const (
	// ErrCodeJobCancelled indicates the job was cancelled before completion.
	ErrCodeJobCancelled ErrorCode = "JOB_CANCELLED"
	// ErrCodeJobUnknown indicates no job exists under the given handle.
	ErrCodeJobUnknown ErrorCode = "JOB_UNKNOWN"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeProviderTransient: true,
	ErrCodeRateLimited:       true,
	ErrCodeTimeout:           true,
	ErrCodeStagingFailed:     true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the backend is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a backend.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the backend is rate limiting us.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested record was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the record already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeConflict indicates a conflict with the current state of the record.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication/Authorization errors
const (
	// ErrCodeUnauthorized indicates the caller is not signed in or the credentials are wrong.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
)

// Provider configuration errors. These are programmer/ops errors and are
// never retryable.
const (
	// ErrCodeProviderNotRegistered indicates no factory exists for a provider name.
	ErrCodeProviderNotRegistered ErrorCode = "PROVIDER_NOT_REGISTERED"
	// ErrCodeNoProviderInitialized indicates the cloud service has not been initialized.
	ErrCodeNoProviderInitialized ErrorCode = "NO_PROVIDER_INITIALIZED"
	// ErrCodeNoActiveProvider indicates the registry holds neither an active nor a fallback provider.
	ErrCodeNoActiveProvider ErrorCode = "NO_ACTIVE_PROVIDER"
	// ErrCodeAllProvidersFailed indicates every candidate provider failed to initialize.
	ErrCodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
	// ErrCodeCapabilityMissing indicates a provider lacks an optional capability.
	ErrCodeCapabilityMissing ErrorCode = "CAPABILITY_MISSING"
	// ErrCodeUnsupported indicates the backend cannot perform the operation at all.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error returned by a hosted backend.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

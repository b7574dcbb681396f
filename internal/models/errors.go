package models

import "fmt"

// ErrorCode identifies a failure class at a component boundary.
// Codes are owned by exactly one layer: REPOSITORY_* by persistence,
// SERVICE_* by business rules, WORKER_* by processing.
type ErrorCode string

const (
	// Validation and admission
	ErrCodeInvalidURL         ErrorCode = "INVALID_URL"
	ErrCodeDomainMismatch     ErrorCode = "DOMAIN_MISMATCH"
	ErrCodeUnsupportedScheme  ErrorCode = "UNSUPPORTED_SCHEME"
	ErrCodePrivateAddress     ErrorCode = "PRIVATE_ADDRESS"
	ErrCodeUsageLimitExceeded ErrorCode = "USAGE_LIMIT_EXCEEDED"

	// Discovery
	ErrCodeDiscoveryNotFound       ErrorCode = "DISCOVERY_NOT_FOUND"
	ErrCodeDiscoveryAlreadyRunning ErrorCode = "DISCOVERY_ALREADY_RUNNING"
	ErrCodeDiscoveryCancelled      ErrorCode = "DISCOVERY_CANCELLED"
	ErrCodePageAlreadyExists       ErrorCode = "PAGE_ALREADY_EXISTS"
	ErrCodeSitemapFetchFailed      ErrorCode = "SITEMAP_FETCH_FAILED"
	ErrCodeNavExtractionFailed     ErrorCode = "NAVIGATION_EXTRACTION_FAILED"

	// Inference
	ErrCodeTimeout        ErrorCode = "TIMEOUT"
	ErrCodeRateLimit      ErrorCode = "RATE_LIMIT"
	ErrCodeProcessCrash   ErrorCode = "PROCESS_CRASH"
	ErrCodeInvalidOutput  ErrorCode = "INVALID_OUTPUT"
	ErrCodeURLUnreachable ErrorCode = "URL_UNREACHABLE"
	ErrCodeUnknown        ErrorCode = "UNKNOWN"

	// Processors
	ErrCodeScanNotFound  ErrorCode = "SCAN_NOT_FOUND"
	ErrCodeBatchNotFound ErrorCode = "BATCH_NOT_FOUND"
	ErrCodeNoResults     ErrorCode = "NO_RESULTS"
	ErrCodeSendFailed    ErrorCode = "SEND_FAILED"
)

// AppError is the structured error carried across component boundaries.
// It wraps an optional cause and free-form details for logging.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError with the given code and message.
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WrapError creates an AppError wrapping a cause.
func WrapError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return CodeOf(u.Unwrap())
	}
	return ErrCodeUnknown
}

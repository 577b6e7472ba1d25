package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures surfaced by the harvesting pipeline
type ErrorType string

const (
	ErrorTypeAuthExpired       ErrorType = "auth_expired"
	ErrorTypeMalformedContent  ErrorType = "malformed_content"
	ErrorTypeTransient         ErrorType = "transient"
	ErrorTypeParseFallbackUsed ErrorType = "parse_fallback_used"
	ErrorTypeDownloadFailed    ErrorType = "download_failed"
	ErrorTypeFormatMismatch    ErrorType = "format_mismatch"
	ErrorTypeInvalidInput      ErrorType = "invalid_input"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error carries a failure category, an optional HTTP status code and the
// underlying cause.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error.
func New(t ErrorType, message string, code int) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// Wrap creates a typed error around cause.
func Wrap(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// TypeOf returns the category of the first *Error in err's chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// StatusCode returns the HTTP status recorded in err's chain, if any.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

func IsAuthExpired(err error) bool      { return TypeOf(err) == ErrorTypeAuthExpired }
func IsMalformedContent(err error) bool { return TypeOf(err) == ErrorTypeMalformedContent }
func IsTransient(err error) bool        { return TypeOf(err) == ErrorTypeTransient }

// IsRetryable checks if an error type should be retried by the caller.
// Only transient upstream failures qualify; an expired session or a
// challenge page will not fix itself.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransient:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

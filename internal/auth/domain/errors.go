package domain

import "fmt"

// ErrorCode classifies authentication failures so the caller can map them to
// inline form messages.
type ErrorCode string

const (
	ErrCodeEmailInUse         ErrorCode = "EMAIL_IN_USE"
	ErrCodeWeakPassword       ErrorCode = "WEAK_PASSWORD"
	ErrCodeInvalidEmail       ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserDisabled       ErrorCode = "USER_DISABLED"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCodeTooManyAttempts    ErrorCode = "TOO_MANY_ATTEMPTS"
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// Error is a classified authentication error with a user-readable message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified auth error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf extracts the classification from an error, defaulting to Unknown.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrCodeUnknown
}

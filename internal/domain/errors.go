package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrPlatformUnavailable is returned when a platform API is unavailable
	// for the whole batch, e.g. rejected credentials
	ErrPlatformUnavailable = errors.New("platform temporarily unavailable")

	// ErrChannelNotFound is returned when a platform reports that a channel
	// does not exist. Only adapters that treat this as a ban signal map it
	// to a banned record.
	ErrChannelNotFound = errors.New("channel not found")
)

// UserFriendlyError wraps an error with a user-friendly message
type UserFriendlyError struct {
	Err            error
	UserMessage    string
	HTTPStatusCode int
}

// Error implements the error interface
func (e *UserFriendlyError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMessage
}

// Unwrap returns the underlying error
func (e *UserFriendlyError) Unwrap() error {
	return e.Err
}

// NewUserFriendlyError creates a new user-friendly error
func NewUserFriendlyError(err error, userMessage string, statusCode int) *UserFriendlyError {
	return &UserFriendlyError{
		Err:            err,
		UserMessage:    userMessage,
		HTTPStatusCode: statusCode,
	}
}

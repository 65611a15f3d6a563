// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Input errors.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	// Storage errors.
	ErrPersistence = errors.New("persistence failure")

	// Provider errors.
	ErrProvider          = errors.New("provider request failed")
	ErrPlaidRateLimit    = errors.New("plaid rate limit exceeded")
	ErrCursorRepeated    = errors.New("provider returned a repeated cursor")
	ErrMaxPagesExhausted = errors.New("sync page limit reached")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Validationf builds an ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

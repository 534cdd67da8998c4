// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors. These always abort the import of a file.
	ErrInvalidAccount    = errors.New("invalid account")
	ErrMergeConflict     = errors.New("conflicting classification results")
	ErrInvalidClassifier = errors.New("invalid classifier")
	ErrMissingField      = errors.New("missing required field")
	ErrHeaderMismatch    = errors.New("header mismatch")
	ErrMissingConfig     = errors.New("missing configuration")
	ErrInvalidConfig     = errors.New("invalid configuration")

	// Data errors.
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")

	// Price source errors.
	ErrMissingAPIKey  = errors.New("missing API key")
	ErrPriceNotFound  = errors.New("price not found")
	ErrPriceAPIFailed = errors.New("price API request failed")
)

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

// IsConfigError reports whether err stems from importer or classifier
// configuration rather than from the data being imported.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrMergeConflict) ||
		errors.Is(err, ErrInvalidClassifier) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrHeaderMismatch) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

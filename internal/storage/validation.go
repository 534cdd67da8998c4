// Package storage persists price API responses in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrEmptyPayload = errors.New("payload cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateKey(function, ticker string) error {
	if err := validateString(function, "function"); err != nil {
		return err
	}
	return validateString(ticker, "ticker")
}

func validatePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

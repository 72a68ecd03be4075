package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidAlias        = errors.New("invalid alias")
	ErrInvalidExpiration   = errors.New("invalid expiration")
	ErrAliasTaken          = errors.New("alias already taken")
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
	ErrNotFound            = errors.New("link not found")
	ErrExpired             = errors.New("link expired")
	ErrStore               = errors.New("link store failure")

	ErrEmptyCode       = errors.New("short code is required")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied: not the owner of this link")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// IsValidationError reports whether err was raised before any store access.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidAlias) ||
		errors.Is(err, ErrInvalidExpiration) ||
		errors.Is(err, ErrEmptyCode)
}

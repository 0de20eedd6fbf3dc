// Package errs holds the error taxonomy shared by the store, the domain engines and the
// HTTP layer. Callers test with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks caller mistakes. Nothing has been written when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks a failed store round-trip. Retrying may succeed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTrackNotFound is returned by lookups and deletes addressing an unknown track id.
	ErrTrackNotFound = errors.New("track not found")
)

// Invalid builds an ErrInvalidArgument with a client-facing message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Store wraps a driver error as ErrStoreUnavailable, keeping both in the chain.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

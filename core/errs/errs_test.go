package errs

import (
	"errors"
	"testing"
)

func TestInvalidWrapsSentinel(t *testing.T) {
	err := Invalid("trackId must be positive, got %d", 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("errors.Is(%v, ErrInvalidArgument) = false", err)
	}
	if got, want := err.Error(), "invalid argument: trackId must be positive, got 0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Store("increment clap", cause)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("expected ErrStoreUnavailable in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected driver error in chain")
	}
	if Store("noop", nil) != nil {
		t.Error("Store(op, nil) should be nil")
	}
}

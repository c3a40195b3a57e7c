package store

import (
	"errors"
	"fmt"
)

// ErrConflict is returned by Save when the stored record is not the direct
// predecessor of the record being saved.
var ErrConflict = errors.New("store: record version conflict")

// UnavailableError reports a failed read or write against a backend.
// The engine hands it to its caller unmodified.
type UnavailableError struct {
	Backend string // "sqlite", "badger", "redis", "postgres"
	Op      string // "load", "save", "list", "open"
	Key     string
	Err     error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable returns true if err is or wraps an *UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// SchemeMismatchError is returned when opening a database whose records were
// keyed under a different identity scheme.
type SchemeMismatchError struct {
	Stored string
	Want   string
}

// Error implements the error interface.
func (e *SchemeMismatchError) Error() string {
	return fmt.Sprintf("identity scheme mismatch: database has %q, this build derives %q", e.Stored, e.Want)
}

// checkVersion enforces the versioned-save rule shared by every backend.
func checkVersion(stored uint64, found bool, next uint64) error {
	if !found {
		if next != 1 {
			return fmt.Errorf("%w: new record saved at version %d", ErrConflict, next)
		}
		return nil
	}
	if stored+1 != next {
		return fmt.Errorf("%w: stored version %d, saving %d", ErrConflict, stored, next)
	}
	return nil
}

package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/limitidx/internal/order"
)

// RunError reports why Run stopped early.
//
// Err is the cause as produced by the failing component; a store failure
// still satisfies store.IsUnavailable through Unwrap.
type RunError struct {
	// Code identifies the failing stage.
	Code RunErrorCode

	// RunID identifies the run.
	RunID string

	// Origin locates the event being handled, if any.
	Origin string

	// Key is the identity of that event, if derived.
	Key string

	Err error
}

// RunErrorCode categorizes run failures.
type RunErrorCode string

const (
	// ErrCodeStore indicates a load or save failed; the event was not acked.
	ErrCodeStore RunErrorCode = "STORE_FAILED"

	// ErrCodeSource indicates the source could not produce the next event.
	ErrCodeSource RunErrorCode = "SOURCE_FAILED"

	// ErrCodeAck indicates the upstream rejected an acknowledgement.
	ErrCodeAck RunErrorCode = "ACK_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	switch {
	case e.Origin != "" && e.Key != "":
		return fmt.Sprintf("%s: %v (run=%s, origin=%s, key=%s)", e.Code, e.Err, e.RunID, e.Origin, e.Key)
	case e.Origin != "":
		return fmt.Sprintf("%s: %v (run=%s, origin=%s)", e.Code, e.Err, e.RunID, e.Origin)
	default:
		return fmt.Sprintf("%s: %v (run=%s)", e.Code, e.Err, e.RunID)
	}
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsStoreError returns true if err stopped a run in the store stage.
func IsStoreError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStore
	}
	return false
}

// IsSourceError returns true if err stopped a run in the source stage.
func IsSourceError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSource
	}
	return false
}

// Result classifies how one event was handled.
type Result string

const (
	ResultCreated    Result = "created"
	ResultUpdated    Result = "updated"
	ResultMalformed  Result = "malformed"
	ResultEncoding   Result = "encoding"
	ResultStoreError Result = "store_error"
)

// Classify maps a Process error to its Result.
// Errors that are neither malformed nor encoding errors count as store errors.
func Classify(err error) Result {
	switch {
	case order.IsMalformed(err):
		return ResultMalformed
	case order.IsEncodingError(err):
		return ResultEncoding
	default:
		return ResultStoreError
	}
}

// skippable reports whether err is a property of the event itself.
// Such events are logged, acknowledged and skipped.
func skippable(err error) bool {
	return order.IsMalformed(err) || order.IsEncodingError(err)
}

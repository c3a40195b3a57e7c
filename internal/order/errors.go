package order

import (
	"errors"
	"fmt"
)

// EncodingError reports an identity field that cannot be rendered at its
// fixed width. Processing of the event stops before any store access.
type EncodingError struct {
	// Field is the JSON name of the offending field (e.g. "makerAmount").
	Field string

	// Value is the input as received, for logging and replay.
	Value string

	// Width is the fixed hex width of the field (40 or 64).
	Width int

	// Reason is a short human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s (value=%q, width=%d)", e.Field, e.Reason, e.Value, e.Width)
}

// MalformedEventError reports an event that is missing a required field or
// carries a value that does not parse. It is raised before encoding.
type MalformedEventError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *MalformedEventError) Error() string {
	msg := "malformed event"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// IsEncodingError returns true if err is or wraps an *EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// IsMalformed returns true if err is or wraps a *MalformedEventError.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

func missing(field string) *MalformedEventError {
	return &MalformedEventError{Field: field, Reason: "required field is missing"}
}

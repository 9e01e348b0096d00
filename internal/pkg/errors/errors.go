package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotReady marks work that cannot proceed until a profile is enriched.
	// Callers treat it as a silent no-op, never as a failure.
	ErrNotReady = errors.New("descriptor not enriched")
	// ErrBlocked marks a pair excluded by a block in either direction.
	ErrBlocked = errors.New("pair is blocked")
)

// ValidationError is returned synchronously for bad radius/coordinates/ids.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// OracleError covers timeouts, non-success responses and malformed output
// from the scoring oracle. The pipeline degrades instead of retrying.
type OracleError struct {
	Op     string
	Status int
	Err    error
}

func (e *OracleError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("oracle %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// StoreError wraps a transient persistence failure; the job queue retries it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func IsOracle(err error) bool {
	var oe *OracleError
	return errors.As(err, &oe)
}

func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

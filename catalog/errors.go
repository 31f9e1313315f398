// Package catalog defines the error types returned by metadata, planning
// and execution.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrMissingIdentity  = errors.New("catalog: missing identity")
	ErrUnknownParameter = errors.New("catalog: unknown parameter")
	ErrTypeMismatch     = errors.New("catalog: type mismatch")
	ErrExecution        = errors.New("catalog: execution failed")
	ErrUnsupported      = errors.New("catalog: unsupported by dialect")
	// ErrUnsetIdentity is returned when a row must be addressed by an
	// identity that is zero, nil or a "no value" sentinel.
	ErrUnsetIdentity = errors.New("catalog: identity is unset")
	// ErrBatchAborted is the cause recorded for result sets that were never
	// read because an earlier statement of the same batch failed.
	ErrBatchAborted = errors.New("catalog: batch aborted")
)

// MissingIdentityError is returned when an operation needs an identity
// column on a type that has none.
type MissingIdentityError struct {
	TypeName  string
	Operation string
}

// Error returns the error message for MissingIdentityError.
func (e *MissingIdentityError) Error() string {
	return fmt.Sprintf("catalog: %s %s: type has no identity field", e.Operation, e.TypeName)
}

// Is reports whether target is ErrMissingIdentity.
func (e *MissingIdentityError) Is(target error) bool { return target == ErrMissingIdentity }

// UnknownParameterError is returned when a filter names a column the root
// entity does not have.
type UnknownParameterError struct {
	Table  string
	Column string
}

// Error returns the error message for UnknownParameterError.
func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("catalog: parameter not found: %s.%s", e.Table, e.Column)
}

// Is reports whether target is ErrUnknownParameter.
func (e *UnknownParameterError) Is(target error) bool { return target == ErrUnknownParameter }

// TypeMismatchError is returned when the first result type of a procedure
// call does not match the requested type.
type TypeMismatchError struct {
	Want string
	Got  string
}

// Error returns the error message for TypeMismatchError.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("catalog: first result type %s does not match %s", e.Got, e.Want)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ExecutionError wraps a failure reported by the database.
type ExecutionError struct {
	// Op is the operation: "find", "insert", "update", "delete" or "call".
	Op    string
	Table string
	SQL   string
	// Constraint is true when the dialect classified Cause as an integrity
	// constraint violation.
	Constraint bool
	Cause      error
}

// Error returns the error message for ExecutionError.
func (e *ExecutionError) Error() string {
	kind := "execution"
	if e.Constraint {
		kind = "constraint violation"
	}
	return fmt.Sprintf("catalog: %s %s: %s: %v", e.Op, e.Table, kind, e.Cause)
}

// Unwrap returns the underlying cause of the ExecutionError.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrExecution.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// ResultSetError records a contained failure while loading one result set
// or resolving one association.
type ResultSetError struct {
	// Index is the plan step, or -1 for lazy fetches.
	Index int
	Table string
	Cause error
}

// Error returns the error message for ResultSetError.
func (e *ResultSetError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("catalog: lazy load %s: %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("catalog: result set %d (%s): %v", e.Index, e.Table, e.Cause)
}

// Unwrap returns the underlying cause of the ResultSetError.
func (e *ResultSetError) Unwrap() error { return e.Cause }

// PartialResultError is returned alongside results when some non-root
// result sets or lazy loads failed. The returned objects are valid; the
// associations fed by the failed sets are left unset.
type PartialResultError struct {
	Failures []*ResultSetError
}

// Error returns the error message for PartialResultError.
func (e *PartialResultError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("catalog: partial result, %d failure(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap returns the individual failures.
func (e *PartialResultError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// UnsupportedError is returned when the configured dialect lacks a feature.
type UnsupportedError struct {
	Dialect string
	Feature string
}

// Error returns the error message for UnsupportedError.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("catalog: dialect %s does not support %s", e.Dialect, e.Feature)
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// IsPartial reports whether err only describes contained failures, meaning
// the accompanying results are usable.
func IsPartial(err error) bool {
	var pe *PartialResultError
	return errors.As(err, &pe)
}

// HydrationError is returned when a column value cannot be stored in its
// struct field.
type HydrationError struct {
	TypeName string
	Field    string
	Cause    error
}

// Error returns the error message for HydrationError.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("catalog: hydrating %s.%s: %v", e.TypeName, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the HydrationError.
func (e *HydrationError) Unwrap() error {
	return e.Cause
}

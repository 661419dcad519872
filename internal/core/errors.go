package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing client input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	ErrInvalidBody = &ValidationError{Reason: "invalid body"}
	ErrInvalidDate = &ValidationError{Reason: "invalid date"}
	ErrInvalidItem = &ValidationError{Reason: "invalid item"}
)

// NotFoundError reports a query that matched nothing. All is set when the
// whole store was empty rather than a single date missing.
type NotFoundError struct {
	Date Date
	All  bool
}

func (e *NotFoundError) Error() string {
	if e.All {
		return "no records found"
	}
	return fmt.Sprintf("no record found for %s", e.Date)
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Package errors provides the failure taxonomy for bus-correlated calls,
// error categorization, and retry with backoff.
//
// The package implements a layered error handling approach:
//   - Taxonomy: every failed call is one of four Kinds
//   - Categorization: Classify errors as transient or permanent
//   - Retry: Handle transient failures (e.g. a bus socket that is not up yet)
//     with exponential backoff
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a member of the call failure taxonomy.
type Kind int

const (
	// KindNone marks a successful call.
	KindNone Kind = iota

	// KindBusUnavailable means the event transport or subscription could
	// not be established, or the request could not be sent.
	KindBusUnavailable

	// KindTimeout means no reply arrived before the deadline.
	KindTimeout

	// KindRemoteRejected means the remote side replied with complete=false
	// or an explicit failure.
	KindRemoteRejected

	// KindValidationFailed means the remote pre-check rejected the
	// configuration before any mutation was requested.
	KindValidationFailed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBusUnavailable:
		return "bus_unavailable"
	case KindTimeout:
		return "timeout"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindValidationFailed:
		return "validation_failed"
	default:
		return "unknown"
	}
}

// KindOf maps an error onto the taxonomy. Unknown errors are reported as
// KindRemoteRejected since the failure happened after the request left.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var busErr *BusUnavailableError
	if errors.As(err, &busErr) {
		return KindBusUnavailable
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidationFailed
	}

	return KindRemoteRejected
}

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: bus socket not yet listening, connection refused.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: rejected configuration, closed bus.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// A bus that is not up yet may come up on the next attempt.
	var busErr *BusUnavailableError
	if errors.As(err, &busErr) {
		return CategoryTransient
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

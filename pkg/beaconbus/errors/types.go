package errors

import (
	"fmt"
	"strconv"
	"time"
)

// BusUnavailableError indicates the event bus could not be reached.
type BusUnavailableError struct {
	Scope string
	Err   error
}

// Error implements the error interface.
func (e *BusUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event bus unavailable for scope %q: %v", e.Scope, e.Err)
	}
	return fmt.Sprintf("event bus unavailable for scope %q", e.Scope)
}

// Unwrap returns the transport error.
func (e *BusUnavailableError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates no reply arrived within the deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %ss: %s", FormatSeconds(e.Timeout), e.Operation)
}

// RemoteRejectedError indicates the remote side refused or did not finish.
type RemoteRejectedError struct {
	Operation string
	Comment   string
}

// Error implements the error interface.
func (e *RemoteRejectedError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s rejected by remote", e.Operation)
	}
	return fmt.Sprintf("%s rejected by remote: %s", e.Operation, e.Comment)
}

// ValidationError indicates a configuration failed the remote pre-check.
type ValidationError struct {
	Name    string
	Comment string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Name, e.Comment)
	}
	return fmt.Sprintf("validation error: %s", e.Comment)
}

// FormatSeconds renders d as a plain number of seconds ("60", "0.25").
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

package event

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable is returned by Connect when the bus cannot be reached.
	ErrUnavailable = errors.New("event bus unavailable")

	// ErrClosed is returned by operations on a closed bus or handle.
	ErrClosed = errors.New("event bus closed")

	// ErrTimeout is returned by WaitFor when no matching envelope arrives
	// before the deadline.
	ErrTimeout = errors.New("timed out waiting for event")
)

// EventError represents an error during envelope processing.
type EventError struct {
	Envelope  *Envelope // The envelope that failed
	Handler   string    // Handler that failed (if known)
	Message   string    // Error message
	Err       error     // Underlying error
	Attempt   int       // Which attempt this was
	Timestamp time.Time // When the error occurred
}

// Error implements error interface.
func (e *EventError) Error() string {
	id := ""
	if e.Envelope != nil {
		id = e.Envelope.ID
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", id, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", id, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}

// FailedEnvelope records an envelope whose handler failed.
type FailedEnvelope struct {
	EnvelopeID    string         `json:"envelope_id"`
	Tag           Tag            `json:"tag"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`

	ErrorMessage string `json:"error_message"`
	Handler      string `json:"handler,omitempty"`

	AttemptCount  int       `json:"attempt_count"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastFailedAt  time.Time `json:"last_failed_at"`
}

// NewFailedEnvelope creates a FailedEnvelope from an error.
func NewFailedEnvelope(env *Envelope, err error, handler string) *FailedEnvelope {
	now := time.Now()
	return &FailedEnvelope{
		EnvelopeID:    env.ID,
		Tag:           env.Tag,
		CorrelationID: env.CorrelationID,
		Data:          env.Data,
		ErrorMessage:  err.Error(),
		Handler:       handler,
		FirstFailedAt: now,
		LastFailedAt:  now,
	}
}

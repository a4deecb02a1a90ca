package modq

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned by Submit when the filename extension is not allowed.
	ErrInvalidFormat = errors.New("unsupported file format")

	// ErrTooLarge is returned by Submit when the declared size exceeds MaxFileSize.
	ErrTooLarge = errors.New("file too large")

	// ErrUnauthorized is returned when a non-reviewer attempts a reviewer-only operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a submission is not in the table the operation expects.
	// Already-decided and never-existing ids are indistinguishable.
	ErrNotFound = errors.New("submission not found")
)

// DeliveryError reports a failed outbound notification. It is logged, never surfaced to the actor.
type DeliveryError struct {
	Recipient int64
	Kind      EventKind
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering %s notification to %d: %v", e.Kind, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError reports a failed table write. The in-memory state stays authoritative
// and the next flush retries.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting table %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

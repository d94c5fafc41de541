package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error produced by the framework matches exactly one of
// these through errors.Is.
var (
	// ErrConfiguration is returned for fatal setup mistakes. It is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrConcurrencyConflict is returned when a write presents a stale eTag.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrProtocolViolation is returned when an API is used out of order.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrDelivery is returned when the adapter fails to deliver an outbound activity.
	ErrDelivery = errors.New("delivery failed")
)

var (
	// ErrDialogNotFound is returned when a dialog id is not registered.
	ErrDialogNotFound = fmt.Errorf("%w: dialog not found", ErrConfiguration)

	// ErrMissingArgument is returned when a required argument is empty.
	ErrMissingArgument = fmt.Errorf("%w: missing required argument", ErrConfiguration)

	// ErrNextCalledTwice is returned when a continuation is invoked more than once.
	ErrNextCalledTwice = fmt.Errorf("%w: next called more than once", ErrProtocolViolation)

	// ErrStateNotLoaded is returned when state properties are used before Load.
	ErrStateNotLoaded = fmt.Errorf("%w: state not loaded", ErrProtocolViolation)

	// ErrInvalidActivity is returned when an activity lacks fields needed to route it.
	ErrInvalidActivity = errors.New("invalid activity")

	// ErrNotFound is returned when a storage key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported is returned by adapters for operations their channel lacks.
	ErrNotSupported = errors.New("operation not supported")
)

// ConflictError reports an eTag mismatch on a storage write.
type ConflictError struct {
	Key      string
	Expected string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on %q: eTag %q is stale", e.Key, e.Expected)
}

// Is lets errors.Is match ErrConcurrencyConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// DeliveryError wraps an adapter failure when sending, updating or deleting.
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrDelivery.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

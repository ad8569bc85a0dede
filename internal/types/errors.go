package types

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence error")
	// ErrStaleTransition marks an acknowledgement that no longer applies,
	// such as a second delivered ack. It is logged and never sent to clients.
	ErrStaleTransition = errors.New("stale status transition")
	ErrUnavailable     = errors.New("service unavailable")
)

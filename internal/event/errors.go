package event

import "errors"

// ErrNotFound is returned when an event id is not present in the store.
// Handlers map it to HTTP 404.
var ErrNotFound = errors.New("event not found")

// ErrValidation is returned when a draft fails business rule validation.
// Handlers map it to HTTP 422.
var ErrValidation = errors.New("validation error")

// ErrPersist wraps failures of the underlying key-value store. The in-memory
// state already reflects the attempted change when it is returned.
var ErrPersist = errors.New("failed to persist events")

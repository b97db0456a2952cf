package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the referenced
// attraction or queue entry does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when attraction input fails
// business rule validation (e.g. blank name).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrDuplicateName is returned when an attraction name is already taken by a
// different attraction. Names are compared case-sensitively.
// Handlers should map this to HTTP 409 Conflict.
var ErrDuplicateName = errors.New("duplicate attraction name")

// ErrInvalidName is returned when a person's name is empty or shorter than
// MinPersonNameLength after trimming.
var ErrInvalidName = errors.New("invalid person name")

// ErrEmptyQueue is returned by DequeueNext when nobody is waiting.
var ErrEmptyQueue = errors.New("queue is empty")

// ErrStorage marks failures of the storage backend that are not one of the
// errors above (connectivity, unexpected constraint violations, ...).
// The original cause stays in the chain.
var ErrStorage = errors.New("storage error")

// Kind returns a stable snake_case label for err, used as the error code in
// HTTP responses and as the outcome label in metrics. A nil error is "ok".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrEmptyQueue):
		return "empty_queue"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "internal_error"
	}
}

// IsDomainError reports whether err is one of the caller-recoverable domain
// errors, as opposed to a storage or programming failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrEmptyQueue) ||
		errors.Is(err, ErrValidation)
}

package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

var (
	// ErrInvalidSearchParameter marks a query parameter that could not be parsed.
	ErrInvalidSearchParameter = errors.New("invalid search parameter")
	// ErrInvalidEntity marks a tag, logbook or property that cannot be stored as submitted.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrInvalidLog marks a submitted log entry that references unknown or inactive entities.
	ErrInvalidLog = errors.New("invalid log entry")
	// ErrSequenceUnavailable is returned when no id could be drawn from the counter store.
	ErrSequenceUnavailable = errors.New("sequence unavailable")
	// ErrAttachmentPersistFailed is returned when an attachment could not be stored.
	ErrAttachmentPersistFailed = errors.New("attachment persist failed")
	// ErrIndexingFailed is returned when a log document could not be written or read back.
	ErrIndexingFailed = errors.New("indexing failed")
)

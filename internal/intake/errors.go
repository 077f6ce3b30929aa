package intake

import "errors"

var (
	// ErrFormNotFound is returned when a stored form does not exist.
	ErrFormNotFound = errors.New("intake: form not found")

	// ErrMissingFormID is returned when saving a form without an id.
	ErrMissingFormID = errors.New("intake: form id is required")
)

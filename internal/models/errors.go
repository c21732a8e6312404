package models

import "errors"

// Domain errors shared across repositories and services. Handlers map these to
// HTTP statuses; they never escape as 500s for expected conditions.
var (
	// ErrNotFound signals an unknown certificate, workshop, or template.
	ErrNotFound = errors.New("not found")
	// ErrCodeExists signals a certificate code collision on create.
	ErrCodeExists = errors.New("certificate code already exists")
	// ErrNotReady signals a send attempt against a certificate that has not
	// been generated yet.
	ErrNotReady = errors.New("certificate not generated yet")
	// ErrNoTemplate signals a generation run for a workshop with no saved template.
	ErrNoTemplate = errors.New("no template for workshop")
	// ErrInvalidCSV signals a recipients upload whose header is unusable.
	ErrInvalidCSV = errors.New("invalid csv")
)

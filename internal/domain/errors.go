package domain

import "errors"

// ErrNotFound is returned when the requested page, row or session does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a business rule before any
// network call is made (e.g. missing required field, duplicate key, bad sheet).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnauthorized is returned when the caller has no signed-in session.
// Handlers should map this to HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when the signed-in role may not perform the action.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot run in the page's current
// state, e.g. editing while an import decision is pending or before load.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates invalid caller-supplied input.
var ErrValidation = errors.New("validation failed")

// ErrRateLimited indicates an upstream service throttled the request.
var ErrRateLimited = errors.New("rate limited")

// ErrUnavailable indicates an upstream service is temporarily unreachable.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrMalformed indicates upstream output that does not match the expected schema.
var ErrMalformed = errors.New("malformed upstream response")

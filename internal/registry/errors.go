package registry

import "errors"

var (
	// ErrUnauthorized is returned when anyone but the administrator mutates the registry.
	// Callers match on its message, so it must stay verbatim.
	ErrUnauthorized = errors.New("Not allowed, only owner") //nolint:staticcheck // fixed external message

	// ErrNotFound is returned for pair IDs at or beyond Count().
	ErrNotFound = errors.New("pair not found")

	// ErrInvalidArgument is returned for malformed requests, before any state is touched.
	ErrInvalidArgument = errors.New("invalid argument")
)

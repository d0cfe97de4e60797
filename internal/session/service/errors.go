package service

import "errors"

var (
	// ErrNotFound is returned when the session does not exist or is not visible to the caller.
	ErrNotFound = errors.New("session not found")
	// ErrPermissionDenied is returned when the caller may see the session but not act on it.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument is returned for malformed input such as a missing device id.
	ErrInvalidArgument = errors.New("invalid argument")
)

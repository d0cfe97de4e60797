package service

import "errors"

var (
	// ErrSessionInvalid is returned when the caller's device session is missing, foreign or not Active.
	// The whole call is refused before any item is looked at.
	ErrSessionInvalid = errors.New("device session invalid")
	// ErrInvalidArgument is returned for call-level input problems such as an unknown entity type.
	ErrInvalidArgument = errors.New("invalid argument")
)

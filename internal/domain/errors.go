package domain

import "errors"

// Sentinel errors shared by services and handlers.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("resource not found")
	ErrForbidden  = errors.New("access denied")
	ErrDuplicate  = errors.New("already recorded")
)

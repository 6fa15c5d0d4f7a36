package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPlanLimit        = errors.New("plan limit reached")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	// ErrStorage marks a datastore failure that is not a missing or invalid row.
	ErrStorage = errors.New("storage failure")
)

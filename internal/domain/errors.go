package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the parent of every "referenced entity does not exist" error.
var ErrNotFound = errors.New("not found")

// Domain-specific errors for business logic validation.
var (
	// Lookup errors
	ErrTaskNotFound    = fmt.Errorf("task %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrProjectNotFound = fmt.Errorf("project %w", ErrNotFound)

	// Permission errors
	ErrForbidden = errors.New("forbidden")

	// State errors
	ErrInvalidState     = errors.New("invalid task status")
	ErrHistoryRewritten = errors.New("status history is append-only")

	// Validation errors
	ErrValidation = errors.New("validation error")

	// Authentication errors
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

package domain

import "errors"

// Domain errors
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user is inactive")

	// Points errors
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")

	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadyHasSession = errors.New("user already has an active or queued session")
	ErrNotCancellable    = errors.New("session is not cancellable")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrAgentUnavailable  = errors.New("agent is unavailable")

	// Validation errors
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidAgentID   = errors.New("invalid agent id")
	ErrInvalidSessionID = errors.New("invalid session id")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidAgentID) ||
		errors.Is(err, ErrInvalidSessionID) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyHasSession) ||
		errors.Is(err, ErrNotCancellable) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrAgentUnavailable)
}

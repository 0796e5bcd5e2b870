package model

import "errors"

// Shared error taxonomy for the session and activity subsystem. Callers
// classify failures with errors.Is; repositories wrap these with context
// via fmt.Errorf and %w.
var (
	// ErrSessionNotFound is returned when an operation references a
	// session id that does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateToken is returned when a session insert collides with
	// an existing access or refresh token.
	ErrDuplicateToken = errors.New("duplicate session token")

	// ErrInvalidActivityType is returned when an activity type is outside
	// the closed enumeration. Nothing is written.
	ErrInvalidActivityType = errors.New("invalid activity type")

	// ErrDatastoreUnavailable is returned when the underlying store cannot
	// be reached or times out. Never retried internally.
	ErrDatastoreUnavailable = errors.New("datastore unavailable")

	// ErrUserNotFound is returned by the user repository for unknown users.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUsername is returned when registration collides with an
	// existing username.
	ErrDuplicateUsername = errors.New("username already exists")
)

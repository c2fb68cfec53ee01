package shared

import "errors"

var (
	// ErrSessionMissing is returned when a request reaches a handler without a session.
	ErrSessionMissing = errors.New("session missing")
	// ErrCSRFTokenMissing occurs when the request or session carries no token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the posted token does not match the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

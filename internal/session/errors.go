// internal/session/errors.go
package session

import "errors"

// Rejection reasons reported back to the requesting actor. None of them
// leaves partial state behind.
var (
	ErrSessionFull        = errors.New("session is full")
	ErrSessionStarted     = errors.New("session already started")
	ErrSessionClosed      = errors.New("session is closed")
	ErrEventActive        = errors.New("an event is already active")
	ErrNotOwner           = errors.New("only the session owner can do that")
	ErrUnknownParticipant = errors.New("unknown participant")
)

package chat

import "errors"

var (
	ErrSessionNotFound = errors.New("chat: session not found")
	ErrNoActiveSession = errors.New("chat: no active session")
	ErrEmptyMessage    = errors.New("chat: empty message")
	ErrTurnInFlight    = errors.New("chat: a turn is already in flight for this session")
	ErrAuthentication  = errors.New("chat: authentication failed")
)

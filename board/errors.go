package board

import "errors"

var (
	// ErrNoActiveBoard is returned by task intents before a board is selected.
	ErrNoActiveBoard = errors.New("no active board")
	// ErrTaskNotFound is returned when an intent names a task the store does not hold
	// at the given place.
	ErrTaskNotFound = errors.New("task not found")
	ErrUnknownBoard = errors.New("unknown board")
	ErrClosed       = errors.New("orchestrator closed")
)

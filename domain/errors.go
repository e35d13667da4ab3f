package domain

import "errors"

var (
	// ErrMissingID is returned when an entity payload carries no id.
	ErrMissingID = errors.New("entity id is missing")
	// ErrUnknownEventKind is returned for events that are not insert, update or delete.
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrUnknownStatus    = errors.New("unknown task status")
	ErrInvalidPriority  = errors.New("invalid task priority")
)

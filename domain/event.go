package domain

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Collection names a watched entity collection.
type Collection string

const (
	CollectionTasks    Collection = "tasks"
	CollectionActivity Collection = "activity"
	CollectionBoards   Collection = "boards"
)

func (c Collection) Valid() bool {
	switch c {
	case CollectionTasks, CollectionActivity, CollectionBoards:
		return true
	}
	return false
}

// EventKind is the type of change a realtime event describes.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// Event is a realtime change notification for one entity of a collection,
// scoped by the parent (board) id.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Collection Collection      `json:"collection"`
	ParentID   string          `json:"parent_id"`
	Entity     json.RawMessage `json:"entity"`
	Time       int64           `json:"ts,omitempty"`
}

// NewEvent encodes entity into an event payload.
func NewEvent(kind EventKind, collection Collection, parentID string, entity any, ts int64) (Event, error) {
	if !kind.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
	data, err := sonic.Marshal(entity)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s entity: %w", collection, err)
	}
	return Event{Kind: kind, Collection: collection, ParentID: parentID, Entity: data, Time: ts}, nil
}

// TaskChange decodes a tasks event payload.
func (e Event) TaskChange() (TaskChange, error) {
	if !e.Kind.Valid() {
		return TaskChange{}, fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	var change TaskChange
	if err := sonic.Unmarshal(e.Entity, &change); err != nil {
		return TaskChange{}, fmt.Errorf("decode task payload: %w", err)
	}
	if change.ID == "" {
		return TaskChange{}, ErrMissingID
	}
	return change, nil
}

// Activity decodes an activity event payload.
func (e Event) Activity() (ActivityEntry, error) {
	var entry ActivityEntry
	if err := sonic.Unmarshal(e.Entity, &entry); err != nil {
		return ActivityEntry{}, fmt.Errorf("decode activity payload: %w", err)
	}
	if entry.ID == "" {
		return ActivityEntry{}, ErrMissingID
	}
	return entry, nil
}

// Board decodes a boards event payload.
func (e Event) Board() (Board, error) {
	var b Board
	if err := sonic.Unmarshal(e.Entity, &b); err != nil {
		return Board{}, fmt.Errorf("decode board payload: %w", err)
	}
	if b.ID == "" {
		return Board{}, ErrMissingID
	}
	return b, nil
}

package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEventTaskChangePartialPayload(t *testing.T) {
	ev := Event{
		Kind:       EventUpdate,
		Collection: CollectionTasks,
		ParentID:   "b1",
		Entity:     []byte(`{"id":"t1","status":"done","position":2,"updated_at":"2024-05-01T10:00:00Z"}`),
	}
	change, err := ev.TaskChange()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if change.ID != "t1" || change.Status == nil || *change.Status != StatusDone || change.Position == nil || *change.Position != 2 {
		t.Fatalf("unexpected change %+v", change)
	}
	if change.Title != nil || change.BoardID != nil {
		t.Fatalf("expected absent fields to stay nil: %+v", change)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if change.UpdatedAt == nil || !change.UpdatedAt.Equal(want) {
		t.Fatalf("unexpected updated_at %v", change.UpdatedAt)
	}
}

func TestEventTaskChangeRequiresID(t *testing.T) {
	ev := Event{Kind: EventDelete, Collection: CollectionTasks, Entity: []byte(`{"title":"x"}`)}
	if _, err := ev.TaskChange(); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestEventTaskChangeUnknownKind(t *testing.T) {
	ev := Event{Kind: "truncate", Collection: CollectionTasks, Entity: []byte(`{"id":"t1"}`)}
	if _, err := ev.TaskChange(); !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
}

func TestNewEventRoundTripActivity(t *testing.T) {
	entry := ActivityEntry{ID: "a1", BoardID: "b1", Message: "Added task: New Task", Metadata: map[string]any{"task_id": "t1"}}
	ev, err := NewEvent(EventInsert, CollectionActivity, "b1", entry, 42)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	got, err := ev.Activity()
	if err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if got.ID != "a1" || got.Message != entry.Message || got.Metadata["task_id"] != "t1" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestSortActivityNewestFirst(t *testing.T) {
	base := time.Unix(1000, 0)
	entries := []ActivityEntry{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(time.Minute)},
		{ID: "mid", CreatedAt: base.Add(time.Second)},
	}
	SortActivityNewestFirst(entries)
	if entries[0].ID != "new" || entries[1].ID != "mid" || entries[2].ID != "old" {
		t.Fatalf("unexpected order %+v", entries)
	}
}

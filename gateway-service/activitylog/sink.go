// Package activitylog persists board activity entries and announces them to
// realtime subscribers, either inline or through a write-behind queue.
package activitylog

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Store persists activity entries. Inserting an existing id is a no-op.
type Store interface {
	InsertActivity(ctx context.Context, e domain.ActivityEntry) error
}

// Publisher announces a change to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Sink accepts activity entries for persistence.
type Sink interface {
	Append(ctx context.Context, e domain.ActivityEntry) error
}

// DirectSink persists and publishes in the caller's goroutine.
type DirectSink struct {
	store Store
	pub   Publisher
	now   func() int64
}

func NewDirectSink(store Store, pub Publisher, now func() int64) *DirectSink {
	return &DirectSink{store: store, pub: pub, now: now}
}

func (s *DirectSink) Append(ctx context.Context, e domain.ActivityEntry) error {
	return persist(ctx, s.store, s.pub, e, s.now())
}

// persist stores e and publishes an insert event. A publish failure is
// returned after the entry is already stored.
func persist(ctx context.Context, store Store, pub Publisher, e domain.ActivityEntry, ts int64) error {
	if err := store.InsertActivity(ctx, e); err != nil {
		return err
	}
	ev, err := domain.NewEvent(domain.EventInsert, domain.CollectionActivity, e.BoardID, e, ts)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish activity %s: %w", e.ID, err)
	}
	return nil
}

// QueueSink enqueues entries for a Worker to persist later.
type QueueSink struct {
	queue Queue
}

func NewQueueSink(queue Queue) *QueueSink {
	return &QueueSink{queue: queue}
}

func (s *QueueSink) Append(ctx context.Context, e domain.ActivityEntry) error {
	data, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	if err := s.queue.Enqueue(ctx, string(data)); err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

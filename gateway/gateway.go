// Package gateway defines the contract between the board client and the
// remote data service: ordered queries, writes and realtime subscriptions.
package gateway

import (
	"context"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Handler receives realtime events. It is called from a delivery goroutine,
// one event at a time, in arrival order.
type Handler func(domain.Event)

// Unsubscribe stops delivery. When it returns the handler will not be
// called again.
type Unsubscribe func()

// Gateway is the remote data service.
type Gateway interface {
	// ListBoards returns boards ordered by creation time ascending.
	ListBoards(ctx context.Context) ([]domain.Board, error)
	// ListTasks returns the tasks of a board ordered by position ascending.
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	// ListActivity returns up to limit entries, newest first.
	ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error)

	UpsertTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error)
	CreateBoard(ctx context.Context, name string) (domain.Board, error)
	AppendActivity(ctx context.Context, boardID, message string, metadata map[string]any) (domain.ActivityEntry, error)

	// Subscribe opens a realtime channel for one collection of one parent.
	// Establishment failures are returned as *SubscriptionError.
	Subscribe(ctx context.Context, collection domain.Collection, parentID string, h Handler) (Unsubscribe, error)
}

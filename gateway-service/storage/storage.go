// Package storage persists boards, tasks and activity for the board service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Backend is implemented by every persistence layer.
type Backend interface {
	// ListBoards returns boards ordered by creation time ascending.
	ListBoards(ctx context.Context) ([]domain.Board, error)
	CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error)

	// ListTasks returns the tasks of a board ordered by position ascending.
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error)
	// UpdateTaskFields applies a move. It returns ErrNotFound for unknown tasks.
	UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error)
	// DeleteTask removes a task and returns its last stored version.
	DeleteTask(ctx context.Context, taskID string) (domain.Task, error)

	// ListActivity returns up to limit entries of a board, newest first.
	ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error)
	// InsertActivity stores an entry. Inserting the same id twice is not an error.
	InsertActivity(ctx context.Context, e domain.ActivityEntry) error
}

// prepareUpsert stamps server-owned fields. created_at is kept from the
// stored version when there is one.
func prepareUpsert(t domain.Task, existing *domain.Task, now time.Time) domain.Task {
	if existing != nil && !existing.CreatedAt.IsZero() {
		t.CreatedAt = existing.CreatedAt
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	return t
}

func applyMove(t domain.Task, fields domain.MoveFields, now time.Time) domain.Task {
	t.Status = fields.Status
	t.Position = fields.Position
	t.UpdatedAt = fields.UpdatedAt
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	return t
}

package domain

import (
	"fmt"
	"sort"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single card on a board.
//
// Position orders tasks inside one (BoardID, Status) group. Values are not
// unique: a move only rewrites the moved task, so neighbours may share a
// position until their own next move.
type Task struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"board_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Position    int       `json:"position"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the task against the deployment column set.
func (t Task) Validate(columns Columns) error {
	if t.ID == "" {
		return ErrMissingID
	}
	if !columns.Contains(t.Status) {
		return fmt.Errorf("task %s: %w %q", t.ID, ErrUnknownStatus, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("task %s: %w %q", t.ID, ErrInvalidPriority, t.Priority)
	}
	return nil
}

// TaskChange carries a full or partial task payload. Nil fields mean
// "unchanged"; only ID is mandatory.
type TaskChange struct {
	ID          string     `json:"id"`
	BoardID     *string    `json:"board_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Position    *int       `json:"position,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ChangeFromTask returns a change that sets every field of t.
func ChangeFromTask(t Task) TaskChange {
	return TaskChange{
		ID:          t.ID,
		BoardID:     &t.BoardID,
		Title:       &t.Title,
		Description: &t.Description,
		Status:      &t.Status,
		Priority:    &t.Priority,
		Position:    &t.Position,
		Assignee:    &t.Assignee,
		CreatedAt:   &t.CreatedAt,
		UpdatedAt:   &t.UpdatedAt,
	}
}

// Empty reports whether the change sets no field besides the id.
func (c TaskChange) Empty() bool {
	return c.BoardID == nil && c.Title == nil && c.Description == nil && c.Status == nil &&
		c.Priority == nil && c.Position == nil && c.Assignee == nil && c.CreatedAt == nil && c.UpdatedAt == nil
}

// Task materialises the change as a new task; unset fields stay zero.
func (c TaskChange) Task() Task {
	return c.ApplyTo(Task{ID: c.ID})
}

// ApplyTo overwrites the fields of t that the change sets.
func (c TaskChange) ApplyTo(t Task) Task {
	if c.BoardID != nil {
		t.BoardID = *c.BoardID
	}
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.Position != nil {
		t.Position = *c.Position
	}
	if c.Assignee != nil {
		t.Assignee = *c.Assignee
	}
	if c.CreatedAt != nil {
		t.CreatedAt = *c.CreatedAt
	}
	if c.UpdatedAt != nil {
		t.UpdatedAt = *c.UpdatedAt
	}
	return t
}

// Backfill copies server-owned fields t has never had, such as a
// server-stamped created_at. User-editable fields are never touched: an empty
// description or assignee may be a deliberate local edit.
func (c TaskChange) Backfill(t Task) (Task, bool) {
	changed := false
	if c.BoardID != nil && t.BoardID == "" {
		t.BoardID = *c.BoardID
		changed = true
	}
	if c.CreatedAt != nil && t.CreatedAt.IsZero() && !c.CreatedAt.IsZero() {
		t.CreatedAt = *c.CreatedAt
		changed = true
	}
	return t, changed
}

// MoveFields is the partial write issued for a drag-and-drop move.
type MoveFields struct {
	Status    Status    `json:"status"`
	Position  int       `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Change converts the move into a partial task change.
func (m MoveFields) Change(taskID string) TaskChange {
	return TaskChange{ID: taskID, Status: &m.Status, Position: &m.Position, UpdatedAt: &m.UpdatedAt}
}

// SortByPosition orders tasks ascending by Position. Equal positions keep
// their existing relative order.
func SortByPosition(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Position < tasks[j].Position
	})
}

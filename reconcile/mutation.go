package reconcile

import (
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Mutation is a local optimistic change to the task collection.
type Mutation interface {
	apply(tasks []domain.Task) ([]domain.Task, bool)
}

// InsertTask adds a task. An existing task with the same id is replaced in place.
type InsertTask struct {
	Task domain.Task
}

func (m InsertTask) apply(tasks []domain.Task) ([]domain.Task, bool) {
	if i := indexOf(tasks, m.Task.ID); i >= 0 {
		tasks[i] = m.Task
		return tasks, true
	}
	return append(tasks, m.Task), true
}

// UpdateFields merges a partial change into an existing task.
type UpdateFields struct {
	TaskID string
	Change domain.TaskChange
}

func (m UpdateFields) apply(tasks []domain.Task) ([]domain.Task, bool) {
	i := indexOf(tasks, m.TaskID)
	if i < 0 {
		return tasks, false
	}
	change := m.Change
	change.ID = m.TaskID
	tasks[i] = change.ApplyTo(tasks[i])
	return tasks, true
}

// Move changes the column and position of a task. Other tasks keep their positions.
type Move struct {
	TaskID    string
	Status    domain.Status
	Position  int
	UpdatedAt time.Time
}

func (m Move) apply(tasks []domain.Task) ([]domain.Task, bool) {
	i := indexOf(tasks, m.TaskID)
	if i < 0 {
		return tasks, false
	}
	tasks[i].Status = m.Status
	tasks[i].Position = m.Position
	if !m.UpdatedAt.IsZero() {
		tasks[i].UpdatedAt = m.UpdatedAt
	}
	return tasks, true
}

// Remove drops a task; used to undo an optimistic insert.
type Remove struct {
	TaskID string
}

func (m Remove) apply(tasks []domain.Task) ([]domain.Task, bool) {
	i := indexOf(tasks, m.TaskID)
	if i < 0 {
		return tasks, false
	}
	return append(tasks[:i], tasks[i+1:]...), true
}

func indexOf(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

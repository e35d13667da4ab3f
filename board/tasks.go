package board

import (
	"context"
	"fmt"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/reconcile"
)

// AddTask creates a default task at the end of the first column. The task is
// shown immediately and removed again if the service rejects it.
func (o *Orchestrator) AddTask(ctx context.Context) (domain.Task, error) {
	ctx, m := newIntentMetrics(ctx, o.tracer, o.logger, "add_task")

	boardID := o.activeID()
	if boardID == "" {
		m.End(ErrNoActiveBoard)
		return domain.Task{}, ErrNoActiveBoard
	}
	status := o.columns.First()
	now := o.now()
	task := domain.Task{
		ID:          o.newID(),
		BoardID:     boardID,
		Title:       DefaultTaskTitle,
		Description: DefaultTaskDescription,
		Status:      status,
		Priority:    domain.PriorityMedium,
		Position:    o.store.CountInColumn(status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.SetBoard(boardID)
	m.SetTask(task.ID)

	o.store.ApplyLocal(reconcile.InsertTask{Task: task})

	if err := o.persist(ctx, m, boardID, func(ctx context.Context) error {
		_, err := o.gw.UpsertTask(ctx, task)
		return err
	}); err != nil {
		o.store.ApplyLocal(reconcile.Remove{TaskID: task.ID})
		m.SetRolledBack(true)
		m.SetErrorStage("upsert_task")
		o.fail("add task", err)
		m.End(err)
		return domain.Task{}, err
	}

	o.recordActivity(ctx, boardID, "Added task: "+task.Title, map[string]any{"task_id": task.ID})
	m.End(nil)
	return task, nil
}

// MoveTask moves the task at srcIndex of srcColumn to dstIndex of dstColumn.
// Indexes refer to the ordered column lists as rendered. Only the moved task
// gets a new position; neighbours keep theirs. A failed write restores the
// state from before the move.
func (o *Orchestrator) MoveTask(ctx context.Context, taskID string, srcColumn domain.Status, srcIndex int, dstColumn domain.Status, dstIndex int) error {
	if srcColumn == dstColumn && srcIndex == dstIndex {
		return nil
	}
	ctx, m := newIntentMetrics(ctx, o.tracer, o.logger, "move_task")
	m.SetTask(taskID)

	boardID := o.activeID()
	if boardID == "" {
		m.End(ErrNoActiveBoard)
		return ErrNoActiveBoard
	}
	m.SetBoard(boardID)

	if !o.columns.Contains(dstColumn) {
		err := fmt.Errorf("move task %s: %w %q", taskID, domain.ErrUnknownStatus, dstColumn)
		m.End(err)
		return err
	}

	src := o.store.Column(srcColumn)
	if srcIndex < 0 || srcIndex >= len(src) || src[srcIndex].ID != taskID {
		err := fmt.Errorf("%w: %s at %s[%d]", ErrTaskNotFound, taskID, srcColumn, srcIndex)
		m.End(err)
		return err
	}

	dstLen := len(o.store.Column(dstColumn))
	if srcColumn == dstColumn {
		dstLen--
	}
	dstIndex = max(0, min(dstIndex, dstLen))

	fields := domain.MoveFields{Status: dstColumn, Position: dstIndex, UpdatedAt: o.now()}
	snap := o.store.ApplyLocal(reconcile.Move{
		TaskID:    taskID,
		Status:    fields.Status,
		Position:  fields.Position,
		UpdatedAt: fields.UpdatedAt,
	})

	if err := o.persist(ctx, m, boardID, func(ctx context.Context) error {
		_, err := o.gw.UpdateTaskFields(ctx, taskID, fields)
		return err
	}); err != nil {
		m.SetRolledBack(o.store.Rollback(snap))
		m.SetErrorStage("update_task_fields")
		o.fail("move task", err)
		m.End(err)
		return err
	}
	m.End(nil)
	return nil
}

// MoveTaskTo moves a task to dstIndex of dstColumn from wherever it is now.
func (o *Orchestrator) MoveTaskTo(ctx context.Context, taskID string, dstColumn domain.Status, dstIndex int) error {
	cur, ok := o.store.Get(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	for i, t := range o.store.Column(cur.Status) {
		if t.ID == taskID {
			return o.MoveTask(ctx, taskID, cur.Status, i, dstColumn, dstIndex)
		}
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// EditTask merges the editable fields of updated (title, description,
// priority, assignee) into the held task and saves it. A failed save
// restores the previous version.
func (o *Orchestrator) EditTask(ctx context.Context, updated domain.Task) (domain.Task, error) {
	ctx, m := newIntentMetrics(ctx, o.tracer, o.logger, "edit_task")
	m.SetTask(updated.ID)

	boardID := o.activeID()
	if boardID == "" {
		m.End(ErrNoActiveBoard)
		return domain.Task{}, ErrNoActiveBoard
	}
	m.SetBoard(boardID)

	now := o.now()
	change := domain.TaskChange{
		ID:          updated.ID,
		Title:       &updated.Title,
		Description: &updated.Description,
		Assignee:    &updated.Assignee,
		UpdatedAt:   &now,
	}
	if updated.Priority != "" {
		if !updated.Priority.Valid() {
			err := fmt.Errorf("task %s: %w %q", updated.ID, domain.ErrInvalidPriority, updated.Priority)
			m.End(err)
			return domain.Task{}, err
		}
		change.Priority = &updated.Priority
	}

	// The saved task is the store's copy after the merge, so remote
	// placement changes that landed first are written back unchanged.
	snap := o.store.ApplyLocal(reconcile.UpdateFields{TaskID: updated.ID, Change: change})
	merged, ok := o.store.Get(updated.ID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrTaskNotFound, updated.ID)
		m.End(err)
		return domain.Task{}, err
	}

	if err := o.persist(ctx, m, boardID, func(ctx context.Context) error {
		_, err := o.gw.UpsertTask(ctx, merged)
		return err
	}); err != nil {
		m.SetRolledBack(o.store.Rollback(snap))
		m.SetErrorStage("upsert_task")
		o.fail("edit task", err)
		m.End(err)
		return domain.Task{}, err
	}
	m.End(nil)
	return merged, nil
}

// persist runs one gateway write. Tasks of the local placeholder board never
// leave the client.
func (o *Orchestrator) persist(ctx context.Context, m *intentMetrics, boardID string, write func(context.Context) error) error {
	if boardID == domain.LocalDefaultBoardID {
		return nil
	}
	start := time.Now()
	err := write(ctx)
	m.ObserveGateway(time.Since(start))
	return err
}

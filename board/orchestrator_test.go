package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
)

var (
	boardA = domain.Board{ID: "board-a", Name: "Alpha"}
	boardB = domain.Board{ID: "board-b", Name: "Beta"}
)

func writeErr(op string) error {
	return &gateway.WriteError{Op: op, Status: 503, Err: errors.New("unavailable")}
}

func columnIDs(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestAddTaskOnEmptyBoard(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	task, err := h.orch.AddTask(ctx)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	store := h.orch.Store()
	if store.Len() != 1 {
		t.Fatalf("expected one task, got %d", store.Len())
	}
	got, _ := store.Get(task.ID)
	if got.Status != domain.StatusTodo || got.Position != 0 {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.Title != DefaultTaskTitle || got.Description != DefaultTaskDescription || got.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if got.BoardID != boardA.ID {
		t.Fatalf("task not bound to active board: %s", got.BoardID)
	}
	if len(h.gw.upserts) != 1 || h.gw.upserts[0].ID != task.ID {
		t.Fatalf("expected upsert of new task, got %+v", h.gw.upserts)
	}
	if len(h.gw.appended) != 1 || h.gw.appended[0] != "Added task: New Task" {
		t.Fatalf("unexpected activity %v", h.gw.appended)
	}
	if entries := h.orch.Feed().Entries(); len(entries) != 1 || entries[0].Metadata["task_id"] != task.ID {
		t.Fatalf("unexpected feed %+v", entries)
	}
}

func TestAddTaskPositionCountsColumn(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
		seedTask("d0", boardA.ID, domain.StatusDone, 0),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	task, err := h.orch.AddTask(ctx)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if task.Position != 2 {
		t.Fatalf("expected position 2, got %d", task.Position)
	}
}

func TestMoveTaskAcrossColumns(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 0, domain.StatusInProgress, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	grouped := h.orch.Store().ByStatus()
	todo := grouped[domain.StatusTodo]
	if len(todo) != 1 || todo[0].ID != "t1" || todo[0].Position != 1 {
		t.Fatalf("unexpected todo column %+v", todo)
	}
	prog := grouped[domain.StatusInProgress]
	if len(prog) != 1 || prog[0].ID != "t0" || prog[0].Position != 0 {
		t.Fatalf("unexpected in progress column %+v", prog)
	}
	if len(h.gw.updates) != 1 {
		t.Fatalf("expected one field update, got %d", len(h.gw.updates))
	}
	if u := h.gw.updates[0]; u.Status != domain.StatusInProgress || u.Position != 0 || u.UpdatedAt.IsZero() {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestMoveTaskFailureRestoresPreviousState(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	before := h.orch.Store().Tasks()
	h.gw.updateErr = writeErr("update task fields")

	err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 0, domain.StatusInProgress, 0)
	if !gateway.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	after := h.orch.Store().Tasks()
	if len(after) != len(before) {
		t.Fatalf("task count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("task %d not restored: %+v vs %+v", i, before[i], after[i])
		}
	}
	if todo := h.orch.Store().ByStatus()[domain.StatusTodo]; len(todo) != 2 {
		t.Fatalf("expected two todo tasks, got %v", columnIDs(todo))
	}
	if got := h.obs.failed(); len(got) != 1 || got[0] != "move task" {
		t.Fatalf("expected move failure to be observed, got %v", got)
	}
}

func TestMoveTaskWithinColumnClampsIndex(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 0, domain.StatusTodo, 9); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, _ := h.orch.Store().Get("t0")
	if got.Position != 1 {
		t.Fatalf("expected clamped position 1, got %d", got.Position)
	}
}

func TestMoveTaskSameSlotIsNoop(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 0, domain.StatusTodo, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(h.gw.updates) != 0 {
		t.Fatalf("no-op move must not write")
	}
}

func TestMoveTaskWrongSourceIndex(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 1, domain.StatusDone, 0); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 7, domain.StatusDone, 0); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for out of range, got %v", err)
	}
	if len(h.gw.updates) != 0 {
		t.Fatalf("invalid move must not write")
	}
}

func TestMoveTaskRejectsUnknownColumn(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := h.orch.MoveTask(ctx, "t0", domain.StatusTodo, 0, "archived", 0); !errors.Is(err, domain.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	got, _ := h.orch.Store().Get("t0")
	if got.Status != domain.StatusTodo || got.Position != 0 {
		t.Fatalf("rejected move changed task: %+v", got)
	}
	if len(h.gw.updates) != 0 {
		t.Fatalf("rejected move must not write, got %+v", h.gw.updates)
	}
}

func TestMoveTaskTo(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{
		seedTask("t0", boardA.ID, domain.StatusTodo, 0),
		seedTask("t1", boardA.ID, domain.StatusTodo, 1),
	}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := h.orch.MoveTaskTo(ctx, "t1", domain.StatusReview, 0); err != nil {
		t.Fatalf("move to: %v", err)
	}
	got, _ := h.orch.Store().Get("t1")
	if got.Status != domain.StatusReview || got.Position != 0 {
		t.Fatalf("unexpected task %+v", got)
	}
	if err := h.orch.MoveTaskTo(ctx, "missing", domain.StatusDone, 0); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestLateEventFromPreviousBoardIsIgnored(t *testing.T) {
	h := newHarness(t, boardA, boardB)
	h.gw.tasks[boardB.ID] = []domain.Task{seedTask("b0", boardB.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	oldHandler := h.gw.handler(domain.CollectionTasks, boardA.ID)
	if oldHandler == nil {
		t.Fatalf("expected subscription for first board")
	}

	if err := h.orch.SelectBoard(ctx, boardB.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	before := h.orch.Store().Tasks()

	ev, err := domain.NewEvent(domain.EventInsert, domain.CollectionTasks, boardA.ID, seedTask("late", boardA.ID, domain.StatusTodo, 0), 1)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	oldHandler(ev)

	after := h.orch.Store().Tasks()
	if len(after) != len(before) || h.orch.Store().BoardID() != boardB.ID {
		t.Fatalf("late event mutated new board: %v", columnIDs(after))
	}
	if _, ok := h.orch.Store().Get("late"); ok {
		t.Fatalf("late event task leaked into new board")
	}

	h.gw.mu.Lock()
	unsubscribed := append([]string(nil), h.gw.unsubscribed...)
	h.gw.mu.Unlock()
	want := map[string]bool{subKey(domain.CollectionTasks, boardA.ID): true, subKey(domain.CollectionActivity, boardA.ID): true}
	for _, key := range unsubscribed {
		delete(want, key)
	}
	if len(want) != 0 {
		t.Fatalf("previous board subscriptions not closed: %v", want)
	}
}

func TestEventsDuringLoadAreReplayed(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}

	renamed := seedTask("t0", boardA.ID, domain.StatusTodo, 0)
	renamed.Title = "Renamed remotely"
	renamed.UpdatedAt = renamed.UpdatedAt.Add(time.Minute)
	added := seedTask("t9", boardA.ID, domain.StatusReview, 0)
	h.gw.afterListTasks = func() {
		for _, task := range []domain.Task{renamed, added} {
			ev, err := domain.NewEvent(domain.EventUpdate, domain.CollectionTasks, boardA.ID, task, 1)
			if err != nil {
				t.Errorf("new event: %v", err)
				return
			}
			if !h.gw.emit(ev) {
				t.Errorf("no live tasks subscription during load")
			}
		}
	}

	if err := h.orch.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	store := h.orch.Store()
	if store.Len() != 2 {
		t.Fatalf("expected event received during load to survive, got %v", columnIDs(store.Tasks()))
	}
	if got, _ := store.Get("t0"); got.Title != "Renamed remotely" {
		t.Fatalf("update received during load was lost: %+v", got)
	}
	if _, ok := store.Get("t9"); !ok {
		t.Fatalf("insert received during load was lost")
	}
}

func TestRemoteEchoOfLocalInsertIsNoop(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	task, err := h.orch.AddTask(ctx)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	ev, err := domain.NewEvent(domain.EventInsert, domain.CollectionTasks, boardA.ID, task, 1)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if !h.gw.emit(ev) {
		t.Fatalf("no live tasks subscription")
	}
	if n := h.orch.Store().Len(); n != 1 {
		t.Fatalf("echo duplicated task: %d", n)
	}
	got, _ := h.orch.Store().Get(task.ID)
	if got != task {
		t.Fatalf("echo changed task: %+v vs %+v", got, task)
	}
}

func TestRemoteActivityIsPrepended(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	entry := domain.ActivityEntry{ID: "remote-1", BoardID: boardA.ID, Message: "Added task: X"}
	ev, err := domain.NewEvent(domain.EventInsert, domain.CollectionActivity, boardA.ID, entry, 1)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	h.gw.emit(ev)
	h.gw.emit(ev)
	if entries := h.orch.Feed().Entries(); len(entries) != 1 || entries[0].ID != "remote-1" {
		t.Fatalf("unexpected feed %+v", entries)
	}
	if len(h.obs.activity) != 1 {
		t.Fatalf("expected one activity notification, got %v", h.obs.activity)
	}
}

func TestAddTaskFailureRemovesTask(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	h.gw.upsertErr = writeErr("upsert task")

	if _, err := h.orch.AddTask(ctx); !gateway.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	if h.orch.Store().Len() != 0 {
		t.Fatalf("failed task left in store")
	}
	if len(h.gw.appended) != 0 {
		t.Fatalf("activity recorded for failed task")
	}
}

func TestActivityFailureKeepsTask(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	h.gw.activityErr = writeErr("append activity")

	task, err := h.orch.AddTask(ctx)
	if err != nil {
		t.Fatalf("activity failure must not fail the intent: %v", err)
	}
	if _, ok := h.orch.Store().Get(task.ID); !ok {
		t.Fatalf("task removed after activity failure")
	}
	if got := h.obs.failed(); len(got) != 1 || got[0] != "append activity" {
		t.Fatalf("expected activity failure to be observed, got %v", got)
	}
}

func TestEditTaskMergesFields(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusReview, 3)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	edited, err := h.orch.EditTask(ctx, domain.Task{ID: "t0", Title: "Ship it", Description: "today", Priority: domain.PriorityHigh, Assignee: "sam"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, _ := h.orch.Store().Get("t0")
	if got.Title != "Ship it" || got.Description != "today" || got.Priority != domain.PriorityHigh || got.Assignee != "sam" {
		t.Fatalf("fields not merged: %+v", got)
	}
	if got.Status != domain.StatusReview || got.Position != 3 {
		t.Fatalf("edit touched placement: %+v", got)
	}
	if edited != got {
		t.Fatalf("returned task differs from store: %+v vs %+v", edited, got)
	}
	if len(h.gw.upserts) != 1 || h.gw.upserts[0].Title != "Ship it" {
		t.Fatalf("unexpected upserts %+v", h.gw.upserts)
	}
}

func TestEditTaskSavesRemotePlacement(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	moved := seedTask("t0", boardA.ID, domain.StatusDone, 2)
	moved.UpdatedAt = moved.UpdatedAt.Add(time.Hour)
	ev, err := domain.NewEvent(domain.EventUpdate, domain.CollectionTasks, boardA.ID, moved, 1)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if !h.gw.emit(ev) {
		t.Fatalf("no live tasks subscription")
	}

	if _, err := h.orch.EditTask(ctx, domain.Task{ID: "t0", Title: "Renamed"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(h.gw.upserts) != 1 {
		t.Fatalf("expected one upsert, got %+v", h.gw.upserts)
	}
	saved := h.gw.upserts[0]
	if saved.Status != domain.StatusDone || saved.Position != 2 || saved.Title != "Renamed" {
		t.Fatalf("edit saved stale placement: %+v", saved)
	}
	if saved.Priority != domain.PriorityMedium {
		t.Fatalf("blank priority should keep the held one, got %q", saved.Priority)
	}
}

func TestEditTaskUnknownTask(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := h.orch.EditTask(ctx, domain.Task{ID: "missing", Title: "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if len(h.gw.upserts) != 0 {
		t.Fatalf("unknown task must not be written")
	}
}

func TestEditTaskFailureRollsBack(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	before, _ := h.orch.Store().Get("t0")
	h.gw.upsertErr = writeErr("upsert task")

	if _, err := h.orch.EditTask(ctx, domain.Task{ID: "t0", Title: "Changed"}); !gateway.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	after, _ := h.orch.Store().Get("t0")
	if after != before {
		t.Fatalf("edit not rolled back: %+v vs %+v", after, before)
	}
}

func TestEditTaskRejectsBadPriority(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := h.orch.EditTask(ctx, domain.Task{ID: "t0", Priority: "urgent"}); !errors.Is(err, domain.ErrInvalidPriority) {
		t.Fatalf("expected invalid priority, got %v", err)
	}
	if len(h.gw.upserts) != 0 {
		t.Fatalf("invalid edit must not write")
	}
}

func TestBootstrapInstallsLocalBoard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	active, ok := h.orch.ActiveBoard()
	if !ok || active.ID != domain.LocalDefaultBoardID || active.Name != LocalBoardName {
		t.Fatalf("unexpected active board %+v", active)
	}
	if len(h.gw.handlers) != 0 {
		t.Fatalf("local board must not subscribe")
	}

	if _, err := h.orch.AddTask(ctx); err != nil {
		t.Fatalf("add task on local board: %v", err)
	}
	if h.orch.Store().Len() != 1 || len(h.gw.upserts) != 0 {
		t.Fatalf("local board task must stay on the client")
	}
}

func TestBootstrapListFailureFallsBackToLocalBoard(t *testing.T) {
	h := newHarness(t)
	h.gw.listBoardsErr = errors.New("offline")
	err := h.orch.Bootstrap(context.Background())
	if err == nil {
		t.Fatalf("expected error to be returned")
	}
	if active, ok := h.orch.ActiveBoard(); !ok || !active.IsLocal() {
		t.Fatalf("expected local board, got %+v", active)
	}
}

func TestAddBoardSelectsAndRecordsActivity(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	b, err := h.orch.AddBoard(ctx)
	if err != nil {
		t.Fatalf("add board: %v", err)
	}
	if b.Name != "Board 2" {
		t.Fatalf("unexpected board name %q", b.Name)
	}
	if boards := h.orch.Boards(); len(boards) != 2 || boards[1].ID != b.ID {
		t.Fatalf("unexpected boards %+v", boards)
	}
	if active, _ := h.orch.ActiveBoard(); active.ID != b.ID {
		t.Fatalf("new board not selected: %+v", active)
	}
	if h.orch.Store().BoardID() != b.ID {
		t.Fatalf("store not switched")
	}
	if len(h.gw.appended) != 1 || h.gw.appended[0] != "Created board: Board 2" {
		t.Fatalf("unexpected activity %v", h.gw.appended)
	}
}

func TestAddBoardFailureKeepsList(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	h.gw.createErr = writeErr("create board")
	if _, err := h.orch.AddBoard(ctx); !gateway.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	if boards := h.orch.Boards(); len(boards) != 1 {
		t.Fatalf("board list changed: %+v", boards)
	}
	if active, _ := h.orch.ActiveBoard(); active.ID != boardA.ID {
		t.Fatalf("active board changed")
	}
}

func TestSubscriptionFailureStillLoads(t *testing.T) {
	h := newHarness(t, boardA)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	h.gw.subscribeErr[domain.CollectionTasks] = errors.New("refused")

	err := h.orch.Bootstrap(context.Background())
	var se *gateway.SubscriptionError
	if !errors.As(err, &se) || se.Collection != domain.CollectionTasks {
		t.Fatalf("expected tasks subscription error, got %v", err)
	}
	if h.orch.Store().Len() != 1 {
		t.Fatalf("tasks not loaded after subscription failure")
	}
	if h.gw.handler(domain.CollectionActivity, boardA.ID) == nil {
		t.Fatalf("activity subscription should still be opened")
	}
}

func TestSelectUnknownBoard(t *testing.T) {
	h := newHarness(t, boardA)
	if err := h.orch.SelectBoard(context.Background(), "nope"); !errors.Is(err, ErrUnknownBoard) {
		t.Fatalf("expected ErrUnknownBoard, got %v", err)
	}
}

func TestIntentsWithoutBoard(t *testing.T) {
	h := newHarness(t, boardA)
	if _, err := h.orch.AddTask(context.Background()); !errors.Is(err, ErrNoActiveBoard) {
		t.Fatalf("expected ErrNoActiveBoard, got %v", err)
	}
}

func TestCloseUnsubscribesEverything(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	h.orch.Close()
	h.gw.mu.Lock()
	live := len(h.gw.handlers)
	h.gw.mu.Unlock()
	if live != 0 {
		t.Fatalf("expected no live subscriptions, got %d", live)
	}
	if err := h.orch.SelectBoard(ctx, boardA.ID+"x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestResyncReloadsActiveBoard(t *testing.T) {
	h := newHarness(t, boardA, boardB)
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("t0", boardA.ID, domain.StatusTodo, 0)}
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	h.gw.mu.Lock()
	h.gw.tasks[boardA.ID] = append(h.gw.tasks[boardA.ID], seedTask("missed", boardA.ID, domain.StatusDone, 0))
	h.gw.tasks[boardB.ID] = []domain.Task{seedTask("b0", boardB.ID, domain.StatusTodo, 0)}
	h.gw.mu.Unlock()

	if err := h.orch.Resync(ctx, domain.CollectionTasks, boardB.ID); err != nil {
		t.Fatalf("resync inactive board: %v", err)
	}
	if _, ok := h.orch.Store().Get("b0"); ok {
		t.Fatalf("resync of inactive board touched the store")
	}

	if err := h.orch.Resync(ctx, domain.CollectionTasks, boardA.ID); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if _, ok := h.orch.Store().Get("missed"); !ok {
		t.Fatalf("task missed during outage not recovered: %v", columnIDs(h.orch.Store().Tasks()))
	}
}

func TestStreamReconnectedResyncsInBackground(t *testing.T) {
	h := newHarness(t, boardA)
	ctx := context.Background()
	if err := h.orch.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	changed, stop := h.orch.Store().Watch()
	defer stop()

	h.gw.mu.Lock()
	h.gw.tasks[boardA.ID] = []domain.Task{seedTask("missed", boardA.ID, domain.StatusTodo, 0)}
	h.gw.mu.Unlock()
	h.orch.StreamReconnected(domain.CollectionTasks, boardA.ID)

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := h.orch.Store().Get("missed"); ok {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("store not reloaded after reconnect")
		}
	}
}

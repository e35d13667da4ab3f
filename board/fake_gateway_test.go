package board

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
)

type fakeGateway struct {
	mu       sync.Mutex
	boards   []domain.Board
	tasks    map[string][]domain.Task
	activity map[string][]domain.ActivityEntry

	listBoardsErr error
	upsertErr     error
	updateErr     error
	createErr     error
	activityErr   error
	subscribeErr  map[domain.Collection]error

	// afterListTasks runs once the task list is taken, before it is returned.
	afterListTasks func()

	upserts      []domain.Task
	updates      []domain.MoveFields
	appended     []string
	handlers     map[string]gateway.Handler
	captured     map[string]gateway.Handler
	unsubscribed []string
	seq          int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tasks:        map[string][]domain.Task{},
		activity:     map[string][]domain.ActivityEntry{},
		subscribeErr: map[domain.Collection]error{},
		handlers:     map[string]gateway.Handler{},
		captured:     map[string]gateway.Handler{},
	}
}

func subKey(col domain.Collection, parent string) string { return string(col) + ":" + parent }

func (f *fakeGateway) ListBoards(ctx context.Context) ([]domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listBoardsErr != nil {
		return nil, f.listBoardsErr
	}
	return append([]domain.Board(nil), f.boards...), nil
}

func (f *fakeGateway) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	f.mu.Lock()
	tasks := append([]domain.Task(nil), f.tasks[boardID]...)
	after := f.afterListTasks
	f.mu.Unlock()
	if after != nil {
		after()
	}
	return tasks, nil
}

func (f *fakeGateway) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := append([]domain.ActivityEntry(nil), f.activity[boardID]...)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeGateway) UpsertTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return domain.Task{}, f.upsertErr
	}
	f.upserts = append(f.upserts, task)
	return task, nil
}

func (f *fakeGateway) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Task{}, f.updateErr
	}
	f.updates = append(f.updates, fields)
	return domain.Task{ID: taskID, Status: fields.Status, Position: fields.Position, UpdatedAt: fields.UpdatedAt}, nil
}

func (f *fakeGateway) CreateBoard(ctx context.Context, name string) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Board{}, f.createErr
	}
	f.seq++
	b := domain.Board{ID: fmt.Sprintf("board-%d", f.seq), Name: name}
	f.boards = append(f.boards, b)
	return b, nil
}

func (f *fakeGateway) AppendActivity(ctx context.Context, boardID, message string, metadata map[string]any) (domain.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activityErr != nil {
		return domain.ActivityEntry{}, f.activityErr
	}
	f.seq++
	f.appended = append(f.appended, message)
	return domain.ActivityEntry{
		ID:        fmt.Sprintf("act-%d", f.seq),
		BoardID:   boardID,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, f.seq, 0, time.UTC),
	}, nil
}

func (f *fakeGateway) Subscribe(ctx context.Context, col domain.Collection, parentID string, h gateway.Handler) (gateway.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subscribeErr[col]; err != nil {
		return nil, &gateway.SubscriptionError{Collection: col, ParentID: parentID, Err: err}
	}
	key := subKey(col, parentID)
	f.handlers[key] = h
	f.captured[key] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, key)
		f.unsubscribed = append(f.unsubscribed, key)
	}, nil
}

// emit delivers ev to the live handler of its collection and parent.
func (f *fakeGateway) emit(ev domain.Event) bool {
	f.mu.Lock()
	h := f.handlers[subKey(ev.Collection, ev.ParentID)]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

// handler returns the handler ever registered for key, even after unsubscribe.
func (f *fakeGateway) handler(col domain.Collection, parent string) gateway.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captured[subKey(col, parent)]
}

type recordingObserver struct {
	mu       sync.Mutex
	failures []string
	selected []string
	activity []string
	boards   int
}

func (r *recordingObserver) BoardsChanged([]domain.Board) {
	r.mu.Lock()
	r.boards++
	r.mu.Unlock()
}

func (r *recordingObserver) BoardSelected(b domain.Board) {
	r.mu.Lock()
	r.selected = append(r.selected, b.ID)
	r.mu.Unlock()
}

func (r *recordingObserver) ActivityAdded(e domain.ActivityEntry) {
	r.mu.Lock()
	r.activity = append(r.activity, e.Message)
	r.mu.Unlock()
}

func (r *recordingObserver) Failed(op string, err error) {
	r.mu.Lock()
	r.failures = append(r.failures, op)
	r.mu.Unlock()
}

func (r *recordingObserver) failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

type harness struct {
	gw    *fakeGateway
	obs   *recordingObserver
	orch  *Orchestrator
	hook  *test.Hook
	clock time.Time
}

func newHarness(t *testing.T, boards ...domain.Board) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	h := &harness{gw: newFakeGateway(), obs: &recordingObserver{}, hook: hook}
	h.gw.boards = boards
	h.clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := 0
	var clockMu sync.Mutex
	h.orch = New(h.gw, Options{
		Observer: h.obs,
		Logger:   logger,
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			h.clock = h.clock.Add(time.Second)
			return h.clock
		},
		NewID: func() string {
			ids++
			return fmt.Sprintf("task-%d", ids)
		},
	})
	t.Cleanup(h.orch.Close)
	return h
}

func seedTask(id, boardID string, status domain.Status, pos int) domain.Task {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.Task{
		ID:        id,
		BoardID:   boardID,
		Title:     "Task " + id,
		Status:    status,
		Priority:  domain.PriorityMedium,
		Position:  pos,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

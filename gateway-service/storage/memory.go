package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Memory is a process-local Backend for development and tests.
type Memory struct {
	mu       sync.Mutex
	boards   []domain.Board
	tasks    map[string]domain.Task
	activity map[string][]domain.ActivityEntry
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		tasks:    make(map[string]domain.Task),
		activity: make(map[string][]domain.ActivityEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) ListBoards(ctx context.Context) ([]domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.boards), nil
}

func (m *Memory) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now()
	}
	m.boards = append(m.boards, b)
	slices.SortStableFunc(m.boards, func(a, b domain.Board) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return b, nil
}

func (m *Memory) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.BoardID == boardID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existing *domain.Task
	if cur, ok := m.tasks[t.ID]; ok {
		existing = &cur
	}
	t = prepareUpsert(t, existing, m.now())
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Memory) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[taskID]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	cur = applyMove(cur, fields, m.now())
	m.tasks[taskID] = cur
	return cur, nil
}

func (m *Memory) DeleteTask(ctx context.Context, taskID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[taskID]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	delete(m.tasks, taskID)
	return cur, nil
}

func (m *Memory) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.activity[boardID])
	domain.SortActivityNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertActivity(ctx context.Context, e domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.activity[e.BoardID] {
		if cur.ID == e.ID {
			return nil
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.activity[e.BoardID] = append(m.activity[e.BoardID], e)
	return nil
}

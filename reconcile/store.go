// Package reconcile holds the in-memory task collection of the active board
// and merges local optimistic mutations with remote change events.
package reconcile

import (
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// RemoteEvent is a decoded tasks event scoped to a board.
type RemoteEvent struct {
	Kind    domain.EventKind
	BoardID string
	Change  domain.TaskChange
}

// Snapshot is an immutable copy of the collection used for rollback.
type Snapshot struct {
	boardID string
	gen     uint64
	tasks   []domain.Task
}

// BoardID returns the board the snapshot was taken for.
func (s Snapshot) BoardID() string { return s.boardID }

// Tasks returns a copy of the snapshot contents.
func (s Snapshot) Tasks() []domain.Task { return slices.Clone(s.tasks) }

// Store is the authoritative task list of one board. All methods are safe for
// concurrent use; each mutation is applied atomically under one lock and
// readers only ever receive copies.
type Store struct {
	columns domain.Columns
	logger  *log.Logger

	mu      sync.RWMutex
	boardID string
	gen     uint64
	tasks   []domain.Task

	wmu      sync.Mutex
	watchers map[chan struct{}]struct{}
}

// New creates an empty store for the given column set.
func New(columns domain.Columns, logger *log.Logger) *Store {
	if len(columns) == 0 {
		columns = domain.DefaultColumns()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		columns:  columns,
		logger:   logger,
		watchers: make(map[chan struct{}]struct{}),
	}
}

// Load replaces the whole collection and makes boardID the active board.
// Snapshots taken before a Load can no longer be rolled back to.
func (s *Store) Load(boardID string, tasks []domain.Task) {
	loaded := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			s.logger.WithField("board", boardID).Warn("dropping task without id from load")
			continue
		}
		if i := indexOf(loaded, t.ID); i >= 0 {
			loaded[i] = t
			continue
		}
		loaded = append(loaded, t)
	}

	s.mu.Lock()
	s.boardID = boardID
	s.gen++
	s.tasks = loaded
	s.mu.Unlock()

	s.notify()
}

// ApplyLocal applies an optimistic mutation and returns the state before it.
func (s *Store) ApplyLocal(m Mutation) Snapshot {
	s.mu.Lock()
	snap := s.snapshotLocked()
	next, changed := m.apply(slices.Clone(s.tasks))
	if changed {
		s.tasks = next
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return snap
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{boardID: s.boardID, gen: s.gen, tasks: slices.Clone(s.tasks)}
}

// Rollback restores snap. It refuses, returning false, when the board was
// reloaded or switched after the snapshot was taken.
func (s *Store) Rollback(snap Snapshot) bool {
	s.mu.Lock()
	if snap.gen != s.gen || snap.boardID != s.boardID {
		s.mu.Unlock()
		s.logger.WithFields(log.Fields{"board": snap.boardID, "active": s.BoardID()}).Warn("rollback skipped, board reloaded since snapshot")
		return false
	}
	s.tasks = slices.Clone(snap.tasks)
	s.mu.Unlock()

	s.notify()
	return true
}

// ApplyRemote merges a realtime event. Inserts for a known id merge instead
// of duplicating, updates for an unknown id insert, deletes for an unknown id
// do nothing. Events not newer than the held version are stale.
func (s *Store) ApplyRemote(ev RemoteEvent) Outcome {
	s.mu.Lock()
	out := s.applyRemoteLocked(ev)
	s.mu.Unlock()

	fields := log.Fields{"board": ev.BoardID, "task": ev.Change.ID, "kind": ev.Kind, "outcome": out}
	switch out {
	case OutcomeStale:
		s.logger.WithFields(fields).Debug("stale task event ignored")
	case OutcomeForeignBoard:
		s.logger.WithFields(fields).Debug("task event for inactive board discarded")
	default:
		s.logger.WithFields(fields).Trace("task event applied")
	}
	if out == OutcomeInserted || out == OutcomeMerged || out == OutcomeRemoved || out == OutcomeStale {
		s.notify()
	}
	return out
}

func (s *Store) applyRemoteLocked(ev RemoteEvent) Outcome {
	if s.boardID == "" || ev.BoardID != s.boardID {
		return OutcomeForeignBoard
	}
	change := ev.Change
	if change.ID == "" {
		return OutcomeIgnored
	}
	if change.BoardID != nil && *change.BoardID != s.boardID {
		return OutcomeForeignBoard
	}

	i := indexOf(s.tasks, change.ID)
	switch ev.Kind {
	case domain.EventDelete:
		if i < 0 {
			return OutcomeIgnored
		}
		s.tasks = slices.Delete(slices.Clone(s.tasks), i, i+1)
		return OutcomeRemoved
	case domain.EventInsert, domain.EventUpdate:
		if i < 0 {
			t := change.Task()
			if t.BoardID == "" {
				t.BoardID = s.boardID
			}
			s.tasks = append(slices.Clone(s.tasks), t)
			return OutcomeInserted
		}
		held := s.tasks[i]
		if isStale(held, change) {
			filled, changed := change.Backfill(held)
			if changed {
				s.tasks = slices.Clone(s.tasks)
				s.tasks[i] = filled
			}
			return OutcomeStale
		}
		if change.Empty() {
			return OutcomeIgnored
		}
		s.tasks = slices.Clone(s.tasks)
		s.tasks[i] = change.ApplyTo(held)
		return OutcomeMerged
	}
	return OutcomeIgnored
}

// isStale reports whether change describes a version not newer than held.
// Changes without updated_at cannot be ordered and are never stale.
func isStale(held domain.Task, change domain.TaskChange) bool {
	if change.UpdatedAt == nil || held.UpdatedAt.IsZero() {
		return false
	}
	return !change.UpdatedAt.After(held.UpdatedAt)
}

// ByStatus groups tasks by column. Every known column is present, possibly
// empty; unknown statuses get their own key. Each group is sorted ascending
// by position, equal positions keeping collection order.
func (s *Store) ByStatus() map[domain.Status][]domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grouped := make(map[domain.Status][]domain.Task, len(s.columns))
	for _, col := range s.columns {
		grouped[col.ID] = []domain.Task{}
	}
	for _, t := range s.tasks {
		grouped[t.Status] = append(grouped[t.Status], t)
	}
	for status := range grouped {
		domain.SortByPosition(grouped[status])
	}
	return grouped
}

// Column returns the ordered tasks of one status.
func (s *Store) Column(status domain.Status) []domain.Task {
	s.mu.RLock()
	out := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	domain.SortByPosition(out)
	return out
}

// CountInColumn returns the number of tasks with the given status.
func (s *Store) CountInColumn(status domain.Status) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.tasks, id); i >= 0 {
		return s.tasks[i], true
	}
	return domain.Task{}, false
}

// Tasks returns a copy of the collection in collection order.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// BoardID returns the active board, or "" before the first Load.
func (s *Store) BoardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boardID
}

func (s *Store) Columns() domain.Columns {
	return slices.Clone(s.columns)
}

package board

import (
	"slices"
	"sync"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// FeedCapacity is the number of activity entries kept for the active board.
const FeedCapacity = 30

// Feed is the bounded newest-first activity list of one board.
type Feed struct {
	capacity int

	mu      sync.RWMutex
	boardID string
	entries []domain.ActivityEntry
}

// NewFeed creates an empty feed. A non-positive capacity means FeedCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = FeedCapacity
	}
	return &Feed{capacity: capacity}
}

// Load replaces the feed with entries of boardID. Entries of other boards
// and repeated ids are dropped.
func (f *Feed) Load(boardID string, entries []domain.ActivityEntry) {
	kept := make([]domain.ActivityEntry, 0, min(len(entries), f.capacity))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == "" || (e.BoardID != "" && e.BoardID != boardID) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		kept = append(kept, e)
	}
	domain.SortActivityNewestFirst(kept)
	if len(kept) > f.capacity {
		kept = kept[:f.capacity]
	}

	f.mu.Lock()
	f.boardID = boardID
	f.entries = kept
	f.mu.Unlock()
}

// Prepend inserts e keeping the list newest first and reports whether the
// feed changed. Duplicates, foreign entries and entries older than a full
// feed are ignored.
func (f *Feed) Prepend(e domain.ActivityEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.boardID == "" || e.ID == "" || (e.BoardID != "" && e.BoardID != f.boardID) {
		return false
	}
	for _, cur := range f.entries {
		if cur.ID == e.ID {
			return false
		}
	}
	at := len(f.entries)
	for i, cur := range f.entries {
		if !cur.CreatedAt.After(e.CreatedAt) {
			at = i
			break
		}
	}
	if at >= f.capacity {
		return false
	}
	f.entries = slices.Insert(slices.Clone(f.entries), at, e)
	if len(f.entries) > f.capacity {
		f.entries = f.entries[:f.capacity]
	}
	return true
}

// Entries returns a copy of the feed, newest first.
func (f *Feed) Entries() []domain.ActivityEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.entries)
}

func (f *Feed) BoardID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.boardID
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

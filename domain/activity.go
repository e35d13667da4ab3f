package domain

import (
	"sort"
	"time"
)

// ActivityEntry is a single append-only line of the board activity feed.
type ActivityEntry struct {
	ID        string         `json:"id"`
	BoardID   string         `json:"board_id"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SortActivityNewestFirst orders entries by CreatedAt descending, keeping the
// relative order of entries created at the same instant.
func SortActivityNewestFirst(entries []ActivityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

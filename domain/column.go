package domain

import (
	"fmt"
	"strings"
)

// Status identifies the column a task belongs to.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Column is a static board column. Its ID doubles as the task status value.
type Column struct {
	ID    Status `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Columns is the ordered column set of a deployment.
type Columns []Column

// DefaultColumns returns the built-in column set.
func DefaultColumns() Columns {
	return Columns{
		{ID: StatusTodo, Title: "To Do"},
		{ID: StatusInProgress, Title: "In Progress"},
		{ID: StatusReview, Title: "Review"},
		{ID: StatusDone, Title: "Done"},
	}
}

func (c Columns) Contains(s Status) bool {
	for _, col := range c {
		if col.ID == s {
			return true
		}
	}
	return false
}

// First returns the id of the leftmost column, or "" for an empty set.
func (c Columns) First() Status {
	if len(c) == 0 {
		return ""
	}
	return c[0].ID
}

// Title returns the display title for s, falling back to the raw status.
func (c Columns) Title(s Status) string {
	for _, col := range c {
		if col.ID == s {
			return col.Title
		}
	}
	return string(s)
}

func (c Columns) IDs() []Status {
	ids := make([]Status, 0, len(c))
	for _, col := range c {
		ids = append(ids, col.ID)
	}
	return ids
}

// Validate rejects empty sets, blank ids and duplicates.
func (c Columns) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("column set is empty")
	}
	seen := make(map[Status]struct{}, len(c))
	for i, col := range c {
		if strings.TrimSpace(string(col.ID)) == "" {
			return fmt.Errorf("column %d has no id", i)
		}
		if _, dup := seen[col.ID]; dup {
			return fmt.Errorf("duplicate column id %q", col.ID)
		}
		seen[col.ID] = struct{}{}
	}
	return nil
}

package domain

import "time"

// LocalDefaultBoardID is the placeholder board used when the data service has no boards yet.
const LocalDefaultBoardID = "local-default"

// Board is a named workspace containing tasks.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// IsLocal reports whether the board only exists on this client.
func (b Board) IsLocal() bool {
	return b.ID == LocalDefaultBoardID
}

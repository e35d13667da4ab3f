package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32    = "Edm.Int32"
	EdmDateTime = "Edm.DateTime"

	boardsPartition = "boards"
)

// boardEntity is a row of the boards table. All boards share one partition.
type boardEntity struct {
	Entity
	Name          string    `json:"Name"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
}

// taskEntity is a row of the tasks table, partitioned by board.
type taskEntity struct {
	Entity
	Title         string    `json:"Title"`
	Description   string    `json:"Description"`
	Status        string    `json:"Status"`
	Priority      string    `json:"Priority"`
	Position      int       `json:"Position"`
	PositionType  string    `json:"Position@odata.type"`
	Assignee      string    `json:"Assignee,omitempty"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

// taskMove is the merge payload written for a move.
type taskMove struct {
	Entity
	Status        string    `json:"Status"`
	Position      int       `json:"Position"`
	PositionType  string    `json:"Position@odata.type"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

// activityEntity is a row of the activity table, partitioned by board. The
// row key sorts newest first.
type activityEntity struct {
	Entity
	ID            string    `json:"EntryId"`
	Message       string    `json:"Message"`
	Metadata      string    `json:"Metadata,omitempty"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
}

func newBoardEntity(b domain.Board) boardEntity {
	return boardEntity{
		Entity:        Entity{PartitionKey: boardsPartition, RowKey: b.ID},
		Name:          b.Name,
		CreatedAt:     b.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
	}
}

func (e boardEntity) board() domain.Board {
	return domain.Board{ID: e.RowKey, Name: e.Name, CreatedAt: e.CreatedAt}
}

func newTaskEntity(t domain.Task) taskEntity {
	return taskEntity{
		Entity:        Entity{PartitionKey: t.BoardID, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		Position:      t.Position,
		PositionType:  EdmInt32,
		Assignee:      t.Assignee,
		CreatedAt:     t.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
		UpdatedAt:     t.UpdatedAt.UTC(),
		UpdatedAtType: EdmDateTime,
	}
}

func (e taskEntity) task() domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		BoardID:     e.PartitionKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      domain.Status(e.Status),
		Priority:    domain.Priority(e.Priority),
		Position:    e.Position,
		Assignee:    e.Assignee,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func newTaskMove(boardID, taskID string, fields domain.MoveFields) taskMove {
	return taskMove{
		Entity:        Entity{PartitionKey: boardID, RowKey: taskID},
		Status:        string(fields.Status),
		Position:      fields.Position,
		PositionType:  EdmInt32,
		UpdatedAt:     fields.UpdatedAt.UTC(),
		UpdatedAtType: EdmDateTime,
	}
}

// activityRowKey inverts the timestamp so ascending row keys list the newest
// entry first. The id suffix keeps keys unique within one instant.
func activityRowKey(e domain.ActivityEntry) string {
	return fmt.Sprintf("%019d_%s", math.MaxInt64-e.CreatedAt.UnixNano(), e.ID)
}

func newActivityEntity(e domain.ActivityEntry) (activityEntity, error) {
	ent := activityEntity{
		Entity:        Entity{PartitionKey: e.BoardID, RowKey: activityRowKey(e)},
		ID:            e.ID,
		Message:       e.Message,
		CreatedAt:     e.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
	}
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return activityEntity{}, fmt.Errorf("encode activity metadata: %w", err)
		}
		ent.Metadata = string(data)
	}
	return ent, nil
}

func (e activityEntity) entry() (domain.ActivityEntry, error) {
	out := domain.ActivityEntry{
		ID:        e.ID,
		BoardID:   e.PartitionKey,
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
	}
	if e.Metadata != "" {
		if err := json.Unmarshal([]byte(e.Metadata), &out.Metadata); err != nil {
			return domain.ActivityEntry{}, fmt.Errorf("decode activity metadata: %w", err)
		}
	}
	return out, nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// TableNames configures the tables used by the Tables backend.
type TableNames struct {
	Tasks    string
	Boards   string
	Activity string
}

// Tables stores boards, tasks and activity in Azure Table Storage.
type Tables struct {
	tasks    *aztables.Client
	boards   *aztables.Client
	activity *aztables.Client
	now      func() time.Time
}

// NewTables creates a Tables backend from a storage connection string.
func NewTables(connStr string, names TableNames) (*Tables, error) {
	opts := &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    10 * time.Second,
				RetryDelay:    200 * time.Millisecond,
				MaxRetryDelay: 2 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, opts)
	if err != nil {
		return nil, err
	}
	return &Tables{
		tasks:    svc.NewClient(names.Tasks),
		boards:   svc.NewClient(names.Boards),
		activity: svc.NewClient(names.Activity),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureTables creates the configured tables, ignoring ones that already exist.
func (s *Tables) EnsureTables(ctx context.Context) error {
	for _, client := range []*aztables.Client{s.tasks, s.boards, s.activity} {
		_, err := client.CreateTable(ctx, nil)
		var respErr *azcore.ResponseError
		if err != nil && !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func (s *Tables) ListBoards(ctx context.Context) ([]domain.Board, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", boardsPartition)
	var boards []domain.Board
	err := listEntities(ctx, s.boards, filter, nil, func(raw []byte) error {
		var ent boardEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		boards = append(boards, ent.board())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	slices.SortStableFunc(boards, func(a, b domain.Board) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return boards, nil
}

func (s *Tables) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	payload, err := json.Marshal(newBoardEntity(b))
	if err == nil {
		_, err = s.boards.AddEntity(ctx, payload, nil)
	}
	if err != nil {
		return domain.Board{}, fmt.Errorf("create board: %w", err)
	}
	return b, nil
}

func (s *Tables) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", escapeODataString(boardID))
	var tasks []domain.Task
	err := listEntities(ctx, s.tasks, filter, nil, func(raw []byte) error {
		var ent taskEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		tasks = append(tasks, ent.task())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	domain.SortByPosition(tasks)
	return tasks, nil
}

// GetTask looks a task up by row key across all board partitions.
func (s *Tables) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	filter := fmt.Sprintf("RowKey eq '%s'", escapeODataString(taskID))
	var found *domain.Task
	err := listEntities(ctx, s.tasks, filter, nil, func(raw []byte) error {
		var ent taskEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		t := ent.task()
		found = &t
		return nil
	})
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	if found == nil {
		return domain.Task{}, ErrNotFound
	}
	return *found, nil
}

func (s *Tables) UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	var existing *domain.Task
	ent, err := s.tasks.GetEntity(ctx, t.BoardID, t.ID, nil)
	switch {
	case err == nil:
		var cur taskEntity
		if err := json.Unmarshal(ent.Value, &cur); err != nil {
			return domain.Task{}, fmt.Errorf("upsert task: %w", err)
		}
		prev := cur.task()
		existing = &prev
	case !isStatus(err, http.StatusNotFound):
		return domain.Task{}, fmt.Errorf("upsert task: %w", err)
	}

	t = prepareUpsert(t, existing, s.now())
	payload, err := json.Marshal(newTaskEntity(t))
	if err == nil {
		_, err = s.tasks.UpsertEntity(ctx, payload, nil)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("upsert task: %w", err)
	}
	return t, nil
}

func (s *Tables) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	cur, err := s.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	updated := applyMove(cur, fields, s.now())
	fields.UpdatedAt = updated.UpdatedAt
	payload, err := json.Marshal(newTaskMove(cur.BoardID, taskID, fields))
	if err == nil {
		et := azcore.ETagAny
		_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	}
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("update task fields: %w", err)
	}
	return updated, nil
}

func (s *Tables) DeleteTask(ctx context.Context, taskID string) (domain.Task, error) {
	cur, err := s.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.tasks.DeleteEntity(ctx, cur.BoardID, cur.ID, nil); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("delete task: %w", err)
	}
	return cur, nil
}

func (s *Tables) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", escapeODataString(boardID))
	var top *int32
	if limit > 0 {
		n := int32(limit)
		top = &n
	}
	var entries []domain.ActivityEntry
	err := listEntities(ctx, s.activity, filter, top, func(raw []byte) error {
		if limit > 0 && len(entries) >= limit {
			return errStopPaging
		}
		var ent activityEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		e, err := ent.entry()
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	domain.SortActivityNewestFirst(entries)
	return entries, nil
}

func (s *Tables) InsertActivity(ctx context.Context, e domain.ActivityEntry) error {
	ent, err := newActivityEntity(e)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.activity.AddEntity(ctx, payload, nil)
	}
	if err != nil && !isStatus(err, http.StatusConflict) {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

var errStopPaging = errors.New("stop paging")

func listEntities(ctx context.Context, client *aztables.Client, filter string, top *int32, each func([]byte) error) error {
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: top})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range resp.Entities {
			if err := each(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func isStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

func escapeODataString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

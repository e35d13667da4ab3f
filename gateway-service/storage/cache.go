package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Cache wraps a Backend with a Redis read-through cache for task lists.
type Cache struct {
	Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Backend: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx, boardID); ok {
		return tasks, nil
	}

	tasks, err := c.Backend.ListTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, boardID, tasks)
	return tasks, nil
}

func (c *Cache) UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	out, err := c.Backend.UpsertTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, out.BoardID)
	return out, nil
}

func (c *Cache) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	out, err := c.Backend.UpdateTaskFields(ctx, taskID, fields)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, out.BoardID)
	return out, nil
}

func (c *Cache) DeleteTask(ctx context.Context, taskID string) (domain.Task, error) {
	out, err := c.Backend.DeleteTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, out.BoardID)
	return out, nil
}

func (c *Cache) loadTasks(ctx context.Context, boardID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(boardID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, boardID string, tasks []domain.Task) {
	if c.redis == nil {
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, tasksCacheKey(boardID), data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("board", boardID).Debug("task cache store failed")
	}
}

func (c *Cache) evict(ctx context.Context, boardID string) {
	if c.redis == nil || boardID == "" {
		return
	}
	if err := c.redis.Del(ctx, tasksCacheKey(boardID)).Err(); err != nil {
		log.WithError(err).WithField("board", boardID).Warn("task cache evict failed")
	}
}

func tasksCacheKey(boardID string) string {
	return "tasks:" + boardID
}

// Package httpgw implements gateway.Gateway over the board service HTTP API
// with Server-Sent Events for realtime subscriptions.
package httpgw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
)

const maxErrorBody = 4 << 10

// Client talks to the board service.
type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
	stream  *http.Client
	logger  *log.Logger

	minBackoff  time.Duration
	maxBackoff  time.Duration
	onReconnect func(domain.Collection, string)
}

var _ gateway.Gateway = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient sets the client used for REST calls. Streams use a copy
// without the overall request timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBackoff bounds the delay between realtime reconnect attempts.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = minDelay
		c.maxBackoff = maxDelay
	}
}

// WithReconnectHandler sets fn to run after a dropped realtime stream is
// re-established. Events sent while the stream was down are not replayed, so
// fn is where callers reload the collection. fn runs on the stream goroutine
// before further events are delivered.
func WithReconnectHandler(fn func(collection domain.Collection, parentID string)) Option {
	return func(c *Client) { c.onReconnect = fn }
}

// New creates a client for the service at baseURL. bearer may be empty.
func New(baseURL, bearer string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bearer:     bearer,
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     log.StandardLogger(),
		minBackoff: time.Second,
		maxBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	stream := *c.http
	stream.Timeout = 0
	c.stream = &stream
	return c
}

func (c *Client) ListBoards(ctx context.Context) ([]domain.Board, error) {
	var boards []domain.Board
	if _, err := c.do(ctx, http.MethodGet, "/api/boards", nil, nil, &boards); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

func (c *Client) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	var tasks []domain.Task
	path := "/api/boards/" + url.PathEscape(boardID) + "/tasks"
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	domain.SortByPosition(tasks)
	return tasks, nil
}

func (c *Client) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	path := "/api/boards/" + url.PathEscape(boardID) + "/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &entries); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

func (c *Client) UpsertTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	var out domain.Task
	path := "/api/tasks/" + url.PathEscape(task.ID)
	if err := c.write(ctx, "upsert task", http.MethodPut, path, nil, task, &out); err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

func (c *Client) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	var out domain.Task
	path := "/api/tasks/" + url.PathEscape(taskID)
	if err := c.write(ctx, "update task fields", http.MethodPatch, path, nil, fields, &out); err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// DeleteTask removes a task. It is not part of the board client contract
// and is used by tooling.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.write(ctx, "delete task", http.MethodDelete, "/api/tasks/"+url.PathEscape(taskID), nil, nil, nil)
}

type createBoardRequest struct {
	Name string `json:"name"`
}

// CreateBoard sends a fresh Idempotency-Key so a retried request from the
// transport layer cannot create two boards.
func (c *Client) CreateBoard(ctx context.Context, name string) (domain.Board, error) {
	var out domain.Board
	header := http.Header{}
	header.Set("Idempotency-Key", uuid.NewString())
	if err := c.write(ctx, "create board", http.MethodPost, "/api/boards", header, createBoardRequest{Name: name}, &out); err != nil {
		return domain.Board{}, err
	}
	return out, nil
}

type appendActivityRequest struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (c *Client) AppendActivity(ctx context.Context, boardID, message string, metadata map[string]any) (domain.ActivityEntry, error) {
	var out domain.ActivityEntry
	path := "/api/boards/" + url.PathEscape(boardID) + "/activity"
	body := appendActivityRequest{Message: message, Metadata: metadata}
	if err := c.write(ctx, "append activity", http.MethodPost, path, nil, body, &out); err != nil {
		return domain.ActivityEntry{}, err
	}
	return out, nil
}

func (c *Client) write(ctx context.Context, op, method, path string, header http.Header, body, out any) error {
	status, err := c.do(ctx, method, path, header, body, out)
	if err != nil {
		return &gateway.WriteError{Op: op, Status: status, Err: err}
	}
	return nil
}

// do performs one request. It returns the response status (0 when no
// response arrived) and an error for transport failures and non-2xx answers.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.logger.WithFields(log.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Trace("gateway request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, errors.New(text)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
}

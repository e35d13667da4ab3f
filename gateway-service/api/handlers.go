package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/activitylog"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/storage"
)

const (
	maxBodySize          = 64 << 10
	defaultActivityLimit = 30
	maxActivityLimit     = 200
	defaultKeepAlive     = 30 * time.Second

	// boardsParent scopes board events, which belong to no parent.
	boardsParent = "all"
)

type server struct {
	store     storage.Backend
	activity  activitylog.Sink
	pub       Publisher
	sub       Subscriber
	dedup     Deduper
	logger    *log.Logger
	keepAlive time.Duration
	newID     func() string
	now       func() time.Time
	stamps    timestamper
}

// Register wires all routes on e.
func Register(e *echo.Echo, deps Deps) {
	s := &server{
		store:     deps.Store,
		activity:  deps.Activity,
		pub:       deps.Publisher,
		sub:       deps.Subscriber,
		dedup:     deps.Deduper,
		logger:    deps.Logger,
		keepAlive: deps.KeepAlive,
		newID:     deps.NewID,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = log.StandardLogger()
	}
	if s.keepAlive <= 0 {
		s.keepAlive = defaultKeepAlive
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	e.GET("/healthz", s.healthz)

	g := e.Group("/api", requireAuth(deps.Auth, false))
	g.GET("/boards", s.listBoards)
	g.POST("/boards", s.createBoard)
	g.GET("/boards/:id/tasks", s.listTasks)
	g.GET("/boards/:id/activity", s.listActivity)
	g.POST("/boards/:id/activity", s.appendActivity)
	g.PUT("/tasks/:id", s.upsertTask)
	g.PATCH("/tasks/:id", s.updateTaskFields)
	g.DELETE("/tasks/:id", s.deleteTask)

	e.GET("/realtime/:collection/:parentId", s.streamEvents, requireAuth(deps.Auth, true))
}

func (s *server) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *server) listBoards(c echo.Context) error {
	boards, err := s.store.ListBoards(c.Request().Context())
	if err != nil {
		return s.internalError(c, err)
	}
	if boards == nil {
		boards = []domain.Board{}
	}
	return c.JSON(http.StatusOK, boards)
}

type createBoardRequest struct {
	Name string `json:"name"`
}

func (s *server) createBoard(c echo.Context) error {
	ctx := c.Request().Context()
	var req createBoardRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.String(http.StatusBadRequest, "name is required")
	}

	key := c.Request().Header.Get("Idempotency-Key")
	if key != "" && s.dedup != nil {
		added, err := s.dedup.Add(ctx, subjectFrom(c), key)
		if err != nil {
			return s.internalError(c, err)
		}
		if !added {
			return c.String(http.StatusConflict, "duplicate request")
		}
	}

	b, err := s.store.CreateBoard(ctx, domain.Board{ID: s.newID(), Name: req.Name, CreatedAt: s.now()})
	if err != nil {
		if key != "" && s.dedup != nil {
			if rerr := s.dedup.Remove(ctx, subjectFrom(c), key); rerr != nil {
				s.logger.WithError(rerr).Warn("release idempotency key")
			}
		}
		return s.internalError(c, err)
	}
	s.publish(ctx, domain.EventInsert, domain.CollectionBoards, boardsParent, b)
	return c.JSON(http.StatusCreated, b)
}

func (s *server) listTasks(c echo.Context) (err error) {
	metrics, ctx := newTaskRequestMetrics(c.Request().Context(), s.logger)
	c.SetRequest(c.Request().WithContext(ctx))
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	boardID := c.Param("id")
	metrics.SetBoard(boardID)

	fetchStart := time.Now()
	tasks, fetchErr := s.store.ListTasks(ctx, boardID)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		err = s.internalError(c, fetchErr)
		return err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	metrics.SetTasksReturned(len(tasks))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, tasks)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (s *server) upsertTask(c echo.Context) error {
	ctx := c.Request().Context()
	var t domain.Task
	if err := decodeBody(c, &t); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	id := c.Param("id")
	if t.ID == "" {
		t.ID = id
	}
	if t.ID != id {
		return c.String(http.StatusBadRequest, "task id does not match path")
	}
	if t.BoardID == "" || t.Status == "" {
		return c.String(http.StatusBadRequest, "board_id and status are required")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return c.String(http.StatusBadRequest, "invalid priority")
	}

	kind := domain.EventUpdate
	if _, err := s.store.GetTask(ctx, t.ID); errors.Is(err, storage.ErrNotFound) {
		kind = domain.EventInsert
	} else if err != nil {
		return s.internalError(c, err)
	}

	out, err := s.store.UpsertTask(ctx, t)
	if err != nil {
		return s.internalError(c, err)
	}
	s.publish(ctx, kind, domain.CollectionTasks, out.BoardID, out)
	return c.JSON(http.StatusOK, out)
}

func (s *server) updateTaskFields(c echo.Context) error {
	ctx := c.Request().Context()
	var fields domain.MoveFields
	if err := decodeBody(c, &fields); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if fields.Status == "" {
		return c.String(http.StatusBadRequest, "status is required")
	}
	if fields.UpdatedAt.IsZero() {
		fields.UpdatedAt = s.now()
	}

	out, err := s.store.UpdateTaskFields(ctx, c.Param("id"), fields)
	if errors.Is(err, storage.ErrNotFound) {
		return c.String(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return s.internalError(c, err)
	}
	s.publish(ctx, domain.EventUpdate, domain.CollectionTasks, out.BoardID, out)
	return c.JSON(http.StatusOK, out)
}

type deletedTask struct {
	ID      string `json:"id"`
	BoardID string `json:"board_id"`
}

func (s *server) deleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := s.store.DeleteTask(ctx, c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.String(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return s.internalError(c, err)
	}
	s.publish(ctx, domain.EventDelete, domain.CollectionTasks, out.BoardID, deletedTask{ID: out.ID, BoardID: out.BoardID})
	return c.NoContent(http.StatusNoContent)
}

func (s *server) listActivity(c echo.Context) error {
	limit := defaultActivityLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.String(http.StatusBadRequest, "invalid limit")
		}
		limit = min(n, maxActivityLimit)
	}
	entries, err := s.store.ListActivity(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return s.internalError(c, err)
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

type appendActivityRequest struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *server) appendActivity(c echo.Context) error {
	var req appendActivityRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.String(http.StatusBadRequest, "message is required")
	}
	entry := domain.ActivityEntry{
		ID:        s.newID(),
		BoardID:   c.Param("id"),
		Message:   req.Message,
		Metadata:  req.Metadata,
		CreatedAt: s.now(),
	}
	if err := s.activity.Append(c.Request().Context(), entry); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusAccepted, entry)
}

// publish announces a committed write. Failures are logged only: the write
// already happened and subscribers resynchronise on their next load.
func (s *server) publish(ctx context.Context, kind domain.EventKind, collection domain.Collection, parentID string, entity any) {
	ev, err := domain.NewEvent(kind, collection, parentID, entity, s.stamps.next())
	if err == nil {
		err = s.pub.Publish(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"collection": collection,
			"parent":     parentID,
			"kind":       kind,
		}).Warn("publish realtime event")
	}
}

func (s *server) internalError(c echo.Context, err error) error {
	s.logger.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.String(http.StatusInternalServerError, err.Error())
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	return dec.Decode(v)
}

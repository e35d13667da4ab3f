// Package board turns user intents into optimistic store mutations and
// gateway writes, and owns the board, subscription and activity lifecycle.
package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
	"github.com/kavia-common/collaborative-task-board-139157-139166/reconcile"
)

const (
	DefaultTaskTitle       = "New Task"
	DefaultTaskDescription = "Describe this task..."
	LocalBoardName         = "My Board (local)"
)

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Observer Observer
	Columns  domain.Columns
	Logger   *log.Logger
	Tracer   trace.Tracer
	Now      func() time.Time
	NewID    func() string
}

// Orchestrator is the single owner of the active board state. It is safe for
// concurrent use; intents may run while realtime events are ingested.
type Orchestrator struct {
	gw      gateway.Gateway
	obs     Observer
	columns domain.Columns
	logger  *log.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	store *reconcile.Store
	feed  *Feed

	// switchMu serialises board switches so subscriptions of two switches
	// never interleave.
	switchMu sync.Mutex

	mu     sync.Mutex
	boards []domain.Board
	active string
	subs   []gateway.Unsubscribe
	closed bool

	// Events for the board being loaded are held back until its tasks and
	// activity are in place, then replayed.
	loading  string
	buffered []domain.Event
}

func New(gw gateway.Gateway, opts Options) *Orchestrator {
	o := &Orchestrator{
		gw:      gw,
		obs:     opts.Observer,
		columns: opts.Columns,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if o.obs == nil {
		o.obs = NopObserver{}
	}
	if len(o.columns) == 0 {
		o.columns = domain.DefaultColumns()
	}
	if o.logger == nil {
		o.logger = log.StandardLogger()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	o.store = reconcile.New(o.columns, o.logger)
	o.feed = NewFeed(FeedCapacity)
	return o
}

// Store exposes the task store for rendering. Callers must not mutate it
// directly; use the intent methods.
func (o *Orchestrator) Store() *reconcile.Store { return o.store }

func (o *Orchestrator) Feed() *Feed { return o.feed }

func (o *Orchestrator) Columns() domain.Columns { return slices.Clone(o.columns) }

// Boards returns the known boards in creation order.
func (o *Orchestrator) Boards() []domain.Board {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.boards)
}

// ActiveBoard returns the selected board.
func (o *Orchestrator) ActiveBoard() (domain.Board, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.findBoardLocked(o.active)
}

func (o *Orchestrator) activeID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) findBoardLocked(id string) (domain.Board, bool) {
	for _, b := range o.boards {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Board{}, false
}

// Bootstrap loads the board list and selects the first board. When the
// service has no boards, or cannot be reached, a local placeholder board is
// installed so the client stays usable.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	ctx, m := newIntentMetrics(ctx, o.tracer, o.logger, "bootstrap")

	start := time.Now()
	boards, err := o.gw.ListBoards(ctx)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		m.SetErrorStage("list_boards")
		o.fail("list boards", err)
		boards = nil
	}
	if len(boards) == 0 {
		boards = []domain.Board{{ID: domain.LocalDefaultBoardID, Name: LocalBoardName, CreatedAt: o.now()}}
	}

	o.mu.Lock()
	o.boards = slices.Clone(boards)
	o.mu.Unlock()
	o.obs.BoardsChanged(slices.Clone(boards))

	m.SetBoard(boards[0].ID)
	selErr := o.SelectBoard(ctx, boards[0].ID)
	err = errors.Join(err, selErr)
	m.End(err)
	return err
}

// AddBoard creates "Board <n+1>" on the service, selects it and records the
// creation in its activity feed. It is not optimistic: on failure the board
// list is unchanged.
func (o *Orchestrator) AddBoard(ctx context.Context) (domain.Board, error) {
	ctx, m := newIntentMetrics(ctx, o.tracer, o.logger, "add_board")

	o.mu.Lock()
	name := fmt.Sprintf("Board %d", len(o.boards)+1)
	o.mu.Unlock()

	start := time.Now()
	b, err := o.gw.CreateBoard(ctx, name)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		m.SetErrorStage("create_board")
		o.fail("create board", err)
		m.End(err)
		return domain.Board{}, err
	}
	if b.Name == "" {
		b.Name = name
	}
	m.SetBoard(b.ID)

	o.mu.Lock()
	if _, exists := o.findBoardLocked(b.ID); !exists {
		o.boards = append(o.boards, b)
	}
	boards := slices.Clone(o.boards)
	o.mu.Unlock()
	o.obs.BoardsChanged(boards)

	selErr := o.SelectBoard(ctx, b.ID)
	if selErr != nil {
		m.SetErrorStage("select_board")
	}
	o.recordActivity(ctx, b.ID, "Created board: "+b.Name, nil)
	m.End(selErr)
	return b, selErr
}

// SelectBoard makes id the active board: the previous subscriptions are torn
// down, the store is reset, tasks and activity are subscribed and loaded.
// Subscription failures are reported and returned but do not stop loading.
func (o *Orchestrator) SelectBoard(ctx context.Context, id string) error {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.active == id {
		o.mu.Unlock()
		return nil
	}
	b, ok := o.findBoardLocked(id)
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownBoard, id)
	}
	old := o.subs
	o.subs = nil
	o.active = id
	o.mu.Unlock()

	for _, unsub := range old {
		unsub()
	}
	o.store.Load(id, nil)
	o.feed.Load(id, nil)
	o.obs.BoardSelected(b)
	o.logger.WithField("board", id).Info("board selected")

	if b.IsLocal() {
		return nil
	}

	o.mu.Lock()
	o.loading = id
	o.buffered = nil
	o.mu.Unlock()
	defer o.replayBuffered(id)

	var errs []error
	for _, col := range []domain.Collection{domain.CollectionTasks, domain.CollectionActivity} {
		if err := o.subscribe(ctx, col, id); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, o.load(ctx, id, domain.CollectionTasks, domain.CollectionActivity)...)
	return errors.Join(errs...)
}

// load fetches the given collections of board id and installs them while it
// is still the active board.
func (o *Orchestrator) load(ctx context.Context, id string, cols ...domain.Collection) []error {
	var errs []error
	for _, col := range cols {
		switch col {
		case domain.CollectionTasks:
			tasks, err := o.gw.ListTasks(ctx, id)
			if err != nil {
				o.fail("list tasks", err)
				errs = append(errs, err)
			} else if o.activeID() == id {
				o.store.Load(id, tasks)
			}
		case domain.CollectionActivity:
			entries, err := o.gw.ListActivity(ctx, id, FeedCapacity)
			if err != nil {
				o.fail("list activity", err)
				errs = append(errs, err)
			} else if o.activeID() == id {
				o.feed.Load(id, entries)
			}
		}
	}
	return errs
}

// Resync reloads one collection of the active board, replaying realtime
// events that arrive meanwhile. It is a no-op for any other board.
func (o *Orchestrator) Resync(ctx context.Context, collection domain.Collection, boardID string) error {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	if o.closed || o.active != boardID || boardID == domain.LocalDefaultBoardID {
		o.mu.Unlock()
		return nil
	}
	o.loading = boardID
	o.buffered = nil
	o.mu.Unlock()
	defer o.replayBuffered(boardID)

	o.logger.WithFields(log.Fields{"board": boardID, "collection": collection}).Info("resyncing after realtime reconnect")
	return errors.Join(o.load(ctx, boardID, collection)...)
}

// StreamReconnected schedules a Resync. It does not block, so it can be
// used as a realtime reconnect handler.
func (o *Orchestrator) StreamReconnected(collection domain.Collection, parentID string) {
	go func() {
		if err := o.Resync(context.Background(), collection, parentID); err != nil {
			o.logger.WithError(err).WithField("board", parentID).Warn("resync failed")
		}
	}()
}

// replayBuffered applies the events held back while boardID was loading and
// then lets events through directly again.
func (o *Orchestrator) replayBuffered(boardID string) {
	for {
		o.mu.Lock()
		batch := o.buffered
		o.buffered = nil
		if len(batch) == 0 {
			if o.loading == boardID {
				o.loading = ""
			}
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()

		o.logger.WithFields(log.Fields{"board": boardID, "events": len(batch)}).Debug("replaying events received during load")
		for _, ev := range batch {
			o.dispatch(boardID, ev)
		}
	}
}

func (o *Orchestrator) subscribe(ctx context.Context, col domain.Collection, boardID string) error {
	unsub, err := o.gw.Subscribe(ctx, col, boardID, func(ev domain.Event) {
		o.ingest(boardID, ev)
	})
	if err != nil {
		var se *gateway.SubscriptionError
		if !errors.As(err, &se) {
			err = &gateway.SubscriptionError{Collection: col, ParentID: boardID, Err: err}
		}
		o.fail("subscribe "+string(col), err)
		return err
	}

	o.mu.Lock()
	if o.closed || o.active != boardID {
		o.mu.Unlock()
		unsub()
		return nil
	}
	o.subs = append(o.subs, unsub)
	o.mu.Unlock()
	return nil
}

// Close tears down every subscription. Later intents that need the
// gateway's realtime channel fail with ErrClosed.
func (o *Orchestrator) Close() {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

// recordActivity appends a best-effort activity entry. Failures are reported
// but never returned.
func (o *Orchestrator) recordActivity(ctx context.Context, boardID, message string, metadata map[string]any) {
	if boardID == domain.LocalDefaultBoardID {
		return
	}
	entry, err := o.gw.AppendActivity(ctx, boardID, message, metadata)
	if err != nil {
		o.fail("append activity", err)
		return
	}
	if o.feed.Prepend(entry) {
		o.obs.ActivityAdded(entry)
	}
}

func (o *Orchestrator) fail(op string, err error) {
	o.logger.WithError(err).WithField("op", op).Warn("board gateway call failed")
	o.obs.Failed(op, err)
}

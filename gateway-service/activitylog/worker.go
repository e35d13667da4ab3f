package activitylog

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Worker drains the activity queue. Delivery is at least once: a message is
// deleted only after the entry was stored and published, and a redelivered
// entry is absorbed by the idempotent insert.
type Worker struct {
	queue  Queue
	store  Store
	pub    Publisher
	logger *log.Logger
	now    func() int64
	idle   time.Duration
}

func NewWorker(queue Queue, store Store, pub Publisher, logger *log.Logger, now func() int64) *Worker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Worker{queue: queue, store: store, pub: pub, logger: logger, now: now, idle: time.Second}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		handled, err := w.ProcessOne(ctx)
		if err != nil {
			w.logger.WithError(err).Warn("activity worker")
		}
		if err != nil || !handled {
			select {
			case <-ctx.Done():
			case <-time.After(w.idle):
			}
		}
	}
}

// ProcessOne handles at most one message. It reports whether a message was
// dequeued.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.queue.Dequeue(ctx)
	if err != nil || msg == nil {
		return false, err
	}

	var e domain.ActivityEntry
	if err := sonic.Unmarshal([]byte(msg.Text), &e); err != nil || e.ID == "" || e.BoardID == "" {
		w.logger.WithField("message", msg.ID).Error("dropping malformed activity message")
		return true, w.queue.Delete(ctx, msg.ID, msg.Receipt)
	}

	if err := persist(ctx, w.store, w.pub, e, w.now()); err != nil {
		// Left on the queue; it becomes visible again after the lease expires.
		return true, err
	}
	w.logger.WithFields(log.Fields{"board": e.BoardID, "entry": e.ID}).Debug("activity persisted")
	return true, w.queue.Delete(ctx, msg.ID, msg.Receipt)
}

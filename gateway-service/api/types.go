package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/activitylog"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/realtime"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/storage"
)

// Authenticator is implemented by types able to extract a subject from an
// Authorization header.
type Authenticator interface {
	SubjectFromAuthHeader(string) (string, error)
}

// Deduper prevents a replayed create from being processed twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Remove deletes a previously added key, used when the create fails.
	Remove(ctx context.Context, scope, key string) error
}

// Publisher announces committed writes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Subscriber opens a realtime subscription for one collection and parent.
type Subscriber interface {
	Subscribe(ctx context.Context, collection domain.Collection, parentID string) (*realtime.Subscription, error)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Store      storage.Backend
	Activity   activitylog.Sink
	Publisher  Publisher
	Subscriber Subscriber
	Auth       Authenticator
	// Deduper is optional; without it Idempotency-Key headers are ignored.
	Deduper Deduper
	Logger  *log.Logger

	// KeepAlive is the interval of SSE comment frames. Defaults to 30s.
	KeepAlive time.Duration
	NewID     func() string
	Now       func() time.Time
}

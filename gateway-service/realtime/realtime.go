// Package realtime fans board change events out over Redis pub/sub.
package realtime

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Channel returns the pub/sub channel carrying events of one collection
// scoped by parent id.
func Channel(collection domain.Collection, parentID string) string {
	return fmt.Sprintf("%s:%s", collection, parentID)
}

// Broker publishes events and opens subscriptions on Redis.
type Broker struct {
	rc     *redis.Client
	logger *log.Logger
}

func NewBroker(rc *redis.Client, logger *log.Logger) *Broker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Broker{rc: rc, logger: logger}
}

// Publish sends ev to the channel of its collection and parent.
func (b *Broker) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	channel := Channel(ev.Collection, ev.ParentID)
	if err := b.rc.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	b.logger.WithFields(log.Fields{"channel": channel, "kind": ev.Kind}).Debug("event published")
	return nil
}

// Subscription delivers raw event payloads of one channel.
type Subscription struct {
	ps       *redis.PubSub
	messages <-chan *redis.Message
}

// Subscribe opens a subscription and waits until Redis confirmed it, so every
// event published after Subscribe returns is delivered.
func (b *Broker) Subscribe(ctx context.Context, collection domain.Collection, parentID string) (*Subscription, error) {
	channel := Channel(collection, parentID)
	ps := b.rc.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &Subscription{ps: ps, messages: ps.Channel()}, nil
}

// Messages yields event payloads until the subscription is closed.
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.messages
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}

package activitylog

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Counter reports how many messages a queue still holds.
type Counter interface {
	Pending(ctx context.Context) (int, error)
}

// WaitDrained polls the queues until each has reported empty on stable
// consecutive polls, or ctx ends.
func WaitDrained(ctx context.Context, logger *log.Logger, interval time.Duration, stable int, queues map[string]Counter) error {
	stable = max(stable, 1)
	empty := make(map[string]int, len(queues))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done := true
		for name, q := range queues {
			n, err := q.Pending(ctx)
			if err != nil {
				return fmt.Errorf("pending %s: %w", name, err)
			}
			if n > 0 {
				logger.WithFields(log.Fields{"queue": name, "pending": n}).Info("queue not drained")
				empty[name] = 0
				done = false
				continue
			}
			empty[name]++
			if empty[name] < stable {
				done = false
			}
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Command sse-load opens many realtime subscriptions against a gateway and
// fails when no events arrive or too many connections cannot be opened.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway/httpgw"
)

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}

type counters struct {
	events   atomic.Uint64
	attempts atomic.Uint64
	failures atomic.Uint64
}

func (c *counters) failureRate() float64 {
	attempts := c.attempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(c.failures.Load()) / float64(attempts)
}

func main() {
	baseURL := getenv("GATEWAY_URL", "http://localhost:8080")
	collection := domain.Collection(getenv("SSE_COLLECTION", string(domain.CollectionTasks)))
	parent := getenv("SSE_PARENT", "")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	if parent == "" {
		log.Fatal("missing SSE_PARENT")
	}

	client := httpgw.New(baseURL, os.Getenv("BOARD_TOKEN"), httpgw.WithBackoff(time.Second, 5*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var c counters
	var wg sync.WaitGroup
	wg.Add(conns)
	for i := 0; i < conns; i++ {
		go func() {
			defer wg.Done()
			c.attempts.Add(1)
			unsub, err := client.Subscribe(ctx, collection, parent, func(domain.Event) { c.events.Add(1) })
			if err != nil {
				c.failures.Add(1)
				log.WithError(err).Debug("subscribe failed")
				return
			}
			<-ctx.Done()
			unsub()
		}()
	}

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if c.events.Load() == 0 {
				fmt.Println("no events received in 60s")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	fmt.Printf("connections=%d duration_sec=%d events_received=%d connection_failures=%d\n",
		conns, int(duration.Seconds()), c.events.Load(), c.failures.Load())
	if c.events.Load() == 0 || c.failureRate() > 0.01 {
		os.Exit(1)
	}
}

// Command wait-queues blocks until the named activity queues are drained.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/activitylog"
)

type queueList []string

func (q *queueList) String() string {
	return strings.Join(*q, ",")
}

func (q *queueList) Set(value string) error {
	if value == "" {
		return errors.New("queue name cannot be empty")
	}
	*q = append(*q, value)
	return nil
}

func main() {
	log.SetOutput(os.Stderr)
	var (
		connStr  string
		timeout  time.Duration
		interval time.Duration
		stable   int
		queues   queueList
	)
	flag.StringVar(&connStr, "connection-string", os.Getenv("STORAGE_CONNECTION_STRING"), "Azure Storage connection string")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "maximum time to wait for queues to drain")
	flag.DurationVar(&interval, "interval", 2*time.Second, "polling interval")
	flag.IntVar(&stable, "stable", 3, "number of consecutive empty polls required per queue")
	flag.Var(&queues, "queue", "queue name to monitor (repeatable)")
	flag.Parse()

	if connStr == "" {
		log.Fatal("connection-string is required")
	}
	if len(queues) == 0 {
		if name := os.Getenv("ACTIVITY_QUEUE"); name != "" {
			queues = append(queues, name)
		} else {
			log.Fatal("at least one queue must be specified")
		}
	}

	counters := make(map[string]activitylog.Counter, len(queues))
	for _, name := range queues {
		q, err := activitylog.NewAzureQueue(connStr, name)
		if err != nil {
			log.Fatalf("queue %s: %v", name, err)
		}
		counters[name] = q
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Infof("waiting for %d queue(s) to drain", len(counters))
	if err := activitylog.WaitDrained(ctx, log.StandardLogger(), interval, stable, counters); err != nil {
		log.Fatalf("queue wait failed: %v", err)
	}
	log.Info("all queues drained")
}

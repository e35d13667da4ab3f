// Command storage-init provisions the Azure tables and queue used by the
// board gateway service.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/activitylog"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	names := storage.TableNames{
		Tasks:    os.Getenv("TASKS_TABLE"),
		Boards:   os.Getenv("BOARDS_TABLE"),
		Activity: os.Getenv("ACTIVITY_TABLE"),
	}
	if names.Tasks == "" || names.Boards == "" || names.Activity == "" {
		log.Fatal("missing table names")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tables, err := storage.NewTables(connStr, names)
	if err != nil {
		log.Fatalf("tables: %v", err)
	}
	if err := tables.EnsureTables(ctx); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	log.WithFields(log.Fields{"tasks": names.Tasks, "boards": names.Boards, "activity": names.Activity}).Info("tables ready")

	if queueName := os.Getenv("ACTIVITY_QUEUE"); queueName != "" {
		queue, err := activitylog.NewAzureQueue(connStr, queueName)
		if err != nil {
			log.Fatalf("queue: %v", err)
		}
		if err := queue.EnsureQueue(ctx); err != nil {
			log.Fatalf("create queue: %v", err)
		}
		log.WithField("queue", queueName).Info("queue ready")
	}

	log.Info("storage init complete")
}

package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

func TestWriteErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("move: %w", &WriteError{Op: "update task fields", Status: http.StatusNotFound, Err: cause})

	if !IsWriteError(err) {
		t.Fatalf("expected write error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	var we *WriteError
	if !errors.As(err, &we) || !we.NotFound() {
		t.Fatalf("expected not found write error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWriteErrorTransportMessage(t *testing.T) {
	err := &WriteError{Op: "create board", Err: errors.New("connection refused")}
	if got := err.Error(); got != "create board: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestSubscriptionError(t *testing.T) {
	cause := errors.New("dial failed")
	err := &SubscriptionError{Collection: domain.CollectionTasks, ParentID: "b1", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap")
	}
	if IsWriteError(err) {
		t.Fatalf("subscription error is not a write error")
	}
	if got := err.Error(); got != "subscribe tasks/b1: dial failed" {
		t.Fatalf("unexpected message %q", got)
	}
}

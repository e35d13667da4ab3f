package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{EnvGatewayURL: "http://localhost:8080"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout)
	}
	if len(cfg.Columns) != 4 || cfg.Columns.First() != domain.StatusTodo {
		t.Fatalf("unexpected columns %+v", cfg.Columns)
	}
	if cfg.Debug {
		t.Fatalf("debug should default to false")
	}
}

func TestLoadRequiresGatewayURL(t *testing.T) {
	if _, err := LoadFrom(envMap(nil)); !errors.Is(err, ErrMissingGatewayURL) {
		t.Fatalf("expected ErrMissingGatewayURL, got %v", err)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{EnvGatewayURL: "http://x", EnvRequestTimeout: "-1s"}))
	if err == nil {
		t.Fatalf("expected error for negative timeout")
	}
	cfg, err := LoadFrom(envMap(map[string]string{EnvGatewayURL: "http://x", EnvRequestTimeout: "3s", EnvDebug: "true"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RequestTimeout != 3*time.Second || !cfg.Debug {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadColumnsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	body := "columns:\n  - id: backlog\n    title: Backlog\n  - id: doing\n  - id: shipped\n    title: Shipped\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(envMap(map[string]string{EnvGatewayURL: "http://x", EnvColumnsFile: path}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Columns.IDs(); len(got) != 3 || got[0] != "backlog" || got[2] != "shipped" {
		t.Fatalf("unexpected column ids %v", got)
	}
	if cfg.Columns.Title("doing") != "doing" {
		t.Fatalf("expected title to default to id, got %q", cfg.Columns.Title("doing"))
	}
}

func TestLoadColumnsRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	body := "columns:\n  - id: todo\n  - id: todo\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadColumns(path); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}

func TestLoadColumnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	if err := os.WriteFile(path, []byte("columns: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadColumns(path); err == nil {
		t.Fatalf("expected empty column set error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile with missing file: %v", err)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("default backend = %q, want %q", cfg.Store.Backend, BackendFile)
	}
	if cfg.Sweep.MaxClaimAge != time.Hour {
		t.Errorf("default max_claim_age = %s, want 1h", cfg.Sweep.MaxClaimAge)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("default poll_interval = %s, want 5s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.ID == "" {
		t.Error("default worker id is empty")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `store:
  backend: sqlite
  db: /tmp/custom.db
sweep:
  schedule: "*/10 * * * *"
  max_claim_age: 30m
worker:
  id: studio-7
  poll_interval: 1s
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.DB != "/tmp/custom.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Sweep.Schedule != "*/10 * * * *" || cfg.Sweep.MaxClaimAge != 30*time.Minute {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if cfg.Worker.ID != "studio-7" || cfg.Worker.PollInterval != time.Second {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	// Unset keys keep their defaults.
	if cfg.Board.Refresh != 2*time.Second {
		t.Errorf("board.refresh = %s, want default 2s", cfg.Board.Refresh)
	}
}

func TestLoadFileRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: redis\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg.Store.Backend = BackendSQLite
	cfg.Sweep.MaxClaimAge = 15 * time.Minute
	cfg.Worker.ID = "studio-1"

	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Store.Backend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", got.Store.Backend)
	}
	if got.Sweep.MaxClaimAge != 15*time.Minute {
		t.Errorf("max_claim_age = %s, want 15m", got.Sweep.MaxClaimAge)
	}
	if got.Worker.ID != "studio-1" {
		t.Errorf("worker id = %q, want studio-1", got.Worker.ID)
	}
}

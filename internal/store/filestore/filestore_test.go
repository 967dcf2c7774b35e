package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onde/factory/internal/queue"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func pendingTask(id, title string) queue.Task {
	now := time.Now().UTC()
	return queue.Task{
		ID:        id,
		Type:      queue.TypeContentCreate,
		Title:     title,
		Status:    queue.StatusPending,
		Priority:  queue.PriorityNormal,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPersistsAcrossOpens(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	task := pendingTask("task-1", "Survive a restart")
	task.Result = map[string]any{"note": "kept"}
	if err := s.Put(ctx, task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Title != "Survive a restart" || got.Result["note"] != "kept" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	tasks, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("fresh store has %d tasks", len(tasks))
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with corrupt file: %v", err)
	}
	tasks, _ := s.List(context.Background())
	if len(tasks) != 0 {
		t.Errorf("corrupt store yielded %d tasks", len(tasks))
	}

	// A save from the recovered store produces a valid document again.
	if err := s.Put(context.Background(), pendingTask("task-1", "fresh start")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Errorf("saved document not valid JSON: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := openTestStore(t)
	if _, err := s.Get(context.Background(), "task-none"); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestPutIfChecksStatusUnderLock(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	task := pendingTask("task-1", "Contested")
	if err := s.Put(ctx, task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const claimants = 16
	var wg sync.WaitGroup
	wins := make(chan int, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			claimed := task
			claimed.Status = queue.StatusClaimed
			claimed.AssignedTo = "worker"
			err := s.PutIf(ctx, claimed, queue.StatusPending)
			if err == nil {
				wins <- n
			} else if !errors.Is(err, queue.ErrConflict) {
				t.Errorf("PutIf: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("%d winners, want exactly 1", count)
	}

	missing := pendingTask("task-ghost", "never saved")
	if err := s.PutIf(ctx, missing, queue.StatusPending); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("PutIf missing = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, pendingTask("task-1", "doomed"))
	ok, err := s.Delete(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v)", ok, err)
	}
	ok, err = s.Delete(ctx, "task-1")
	if err != nil || ok {
		t.Fatalf("second Delete = (%v, %v)", ok, err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	s, path := openTestStore(t)
	if err := s.Put(context.Background(), pendingTask("task-1", "x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("tasks file missing after save: %v", err)
	}
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, pendingTask("task-1", "original"))

	// Simulate another process rewriting the document.
	other, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = other.Put(ctx, pendingTask("task-2", "from elsewhere"))

	if _, err := s.Get(ctx, "task-2"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatal("stale store should not see the external write yet")
	}
	s.Reload()
	if _, err := s.Get(ctx, "task-2"); err != nil {
		t.Errorf("after Reload: %v", err)
	}
}

func TestAuditWritesDatedLog(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	s.Audit(ctx, "task-1", "claim", "worker-9", "")
	s.Audit(ctx, "task-1", "complete", "worker-9", "2 files")

	logFile := filepath.Join(filepath.Dir(path), "activity", time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read activity log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "claim") || !strings.Contains(lines[0], "worker-9") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2 files") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestPutStoresCopy(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	task := pendingTask("task-1", "shared state")
	task.Dependencies = []string{"task-0"}
	_ = s.Put(ctx, task)

	// Mutating the caller's slice must not leak into the store.
	task.Dependencies[0] = "task-evil"
	got, _ := s.Get(ctx, "task-1")
	if got.Dependencies[0] != "task-0" {
		t.Error("store shares memory with caller")
	}
}

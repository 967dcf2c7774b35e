// Package filestore persists the task queue as a single JSON document.
//
// The whole document is rewritten on every save via a temp file and rename,
// so readers never observe a partial write. Safety is per-process only:
// concurrent writers from separate processes can clobber each other, which
// is why multi-process deployments use the SQLite backend instead.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/queue"
)

const documentVersion = 1

// document is the serialized queue layout.
type document struct {
	Version   int          `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
	Tasks     []queue.Task `json:"tasks"`
}

var (
	_ queue.Store   = (*Store)(nil)
	_ queue.Auditor = (*Store)(nil)
)

// Store is a file-backed task store.
type Store struct {
	mu       sync.RWMutex
	filePath string
	tasks    map[string]queue.Task
	log      *logging.Logger
}

// DefaultPath returns the default tasks file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "factory", "tasks.json")
}

// Open loads the store at path, creating its directory if needed. A missing
// or unparseable file degrades to an empty queue; it never fails the caller.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	s := &Store{
		filePath: path,
		tasks:    make(map[string]queue.Task),
		log:      logging.Component("filestore"),
	}
	s.load()
	return s, nil
}

// load reads the document from disk into memory.
func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorf("read %s: %v", s.filePath, err)
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Errorf("parse %s: %v (starting empty)", s.filePath, err)
		return
	}
	for _, t := range doc.Tasks {
		s.tasks[t.ID] = t
	}
}

// save writes the document atomically. Must be called with the write lock
// held.
func (s *Store) save() error {
	doc := document{
		Version:   documentVersion,
		UpdatedAt: time.Now(),
		Tasks:     make([]queue.Task, 0, len(s.tasks)),
	}
	for _, t := range s.tasks {
		doc.Tasks = append(doc.Tasks, t)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tasks: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("writing tasks: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("renaming tasks file: %w", err)
	}
	return nil
}

// Get returns a task by id.
func (s *Store) Get(ctx context.Context, id string) (queue.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return queue.Task{}, queue.ErrNotFound
	}
	return t.Clone(), nil
}

// Put inserts or replaces a task.
func (s *Store) Put(ctx context.Context, t queue.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t.Clone()
	return s.save()
}

// PutIf replaces a task only if its stored status matches expect. The check
// and the write happen under one lock, which is what makes Claim race-safe
// within the process.
func (s *Store) PutIf(ctx context.Context, t queue.Task, expect queue.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[t.ID]
	if !ok {
		return queue.ErrNotFound
	}
	if current.Status != expect {
		return queue.ErrConflict
	}
	s.tasks[t.ID] = t.Clone()
	return s.save()
}

// Delete removes a task, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, s.save()
}

// List returns all tasks in unspecified order.
func (s *Store) List(ctx context.Context) ([]queue.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]queue.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

// Audit appends an activity line to a per-day log next to the tasks file.
// Failures are logged and swallowed; the primary write already happened.
func (s *Store) Audit(ctx context.Context, taskID, action, actor, detail string) {
	logDir := filepath.Join(filepath.Dir(s.filePath), "activity")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		s.log.Errorf("audit dir: %v", err)
		return
	}
	logFile := filepath.Join(logDir, time.Now().Format("2006-01-02")+".log")

	line := fmt.Sprintf("[%s] %s | task: %s | actor: %s | %s\n",
		time.Now().Format(time.RFC3339), action, taskID, actor, detail)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		s.log.Errorf("audit open: %v", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line); err != nil {
		s.log.Errorf("audit write: %v", err)
	}
}

// Path returns the tasks file path (used by the watch command).
func (s *Store) Path() string {
	return s.filePath
}

// Reload discards in-memory state and re-reads the file. The watch command
// calls this when fsnotify reports a change from another writer.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]queue.Task)
	s.load()
}

// Close is a no-op for the file backend; it satisfies queue.Store.
func (s *Store) Close() error {
	return nil
}

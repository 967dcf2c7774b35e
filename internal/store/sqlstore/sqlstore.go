// Package sqlstore persists tasks in SQLite for multi-process deployments.
//
// The claim primitive is a single conditional UPDATE keyed on the expected
// prior status, so exactly one of N racing claimants succeeds regardless of
// which process they run in. The activity table is append-only and written
// best-effort: an audit insert that fails never rolls back the primary write.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onde/factory/internal/db"
	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/queue"
)

var (
	_ queue.Store   = (*Store)(nil)
	_ queue.Auditor = (*Store)(nil)
)

// Store is a SQLite-backed task store.
type Store struct {
	db  *db.DB
	log *logging.Logger
}

// Open opens or creates the database at dbPath and returns a Store over it.
func Open(dbPath string) (*Store, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return New(database), nil
}

// New wraps an already-open database.
func New(database *db.DB) *Store {
	return &Store{
		db:  database,
		log: logging.Component("sqlstore"),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const taskColumns = `id, type, title, description, status, priority, assigned_to,
	dependencies, blocked_reason, result, error, retries,
	created_at, claimed_at, started_at, completed_at, updated_at`

// Get returns a task by id.
func (s *Store) Get(ctx context.Context, id string) (queue.Task, error) {
	row := s.db.SQL().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Task{}, queue.ErrNotFound
	}
	if err != nil {
		return queue.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// Put inserts or replaces a task row.
func (s *Store) Put(ctx context.Context, t queue.Task) error {
	deps, result, err := encodeJSONFields(t)
	if err != nil {
		return err
	}

	_, err = s.db.SQL().ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			assigned_to = excluded.assigned_to,
			dependencies = excluded.dependencies,
			blocked_reason = excluded.blocked_reason,
			result = excluded.result,
			error = excluded.error,
			retries = excluded.retries,
			claimed_at = excluded.claimed_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		t.ID, string(t.Type), t.Title, t.Description, string(t.Status), string(t.Priority), t.AssignedTo,
		deps, t.BlockedReason, result, t.Error, t.Retries,
		encodeTime(t.CreatedAt), encodeTimePtr(t.ClaimedAt), encodeTimePtr(t.StartedAt),
		encodeTimePtr(t.CompletedAt), encodeTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	return nil
}

// PutIf replaces a task row only if its stored status matches expect.
// This is the one statement that must be atomic across processes; the
// WHERE clause on status is the whole claim guarantee.
func (s *Store) PutIf(ctx context.Context, t queue.Task, expect queue.Status) error {
	deps, result, err := encodeJSONFields(t)
	if err != nil {
		return err
	}

	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE tasks SET
			type = ?, title = ?, description = ?, status = ?, priority = ?,
			assigned_to = ?, dependencies = ?, blocked_reason = ?, result = ?,
			error = ?, retries = ?, claimed_at = ?, started_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(t.Type), t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssignedTo, deps, t.BlockedReason, result,
		t.Error, t.Retries, encodeTimePtr(t.ClaimedAt), encodeTimePtr(t.StartedAt),
		encodeTimePtr(t.CompletedAt), encodeTime(t.UpdatedAt),
		t.ID, string(expect),
	)
	if err != nil {
		return fmt.Errorf("conditional update task %s: %w", t.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for task %s: %w", t.ID, err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var exists int
		row := s.db.SQL().QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, t.ID)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return queue.ErrNotFound
		}
		return queue.ErrConflict
	}
	return nil
}

// Delete removes a task row, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.SQL().ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns all tasks. Query failures are surfaced to the queue, which
// logs them and degrades to an empty view.
func (s *Store) List(ctx context.Context) ([]queue.Task, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []queue.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// Audit appends an activity record. Best-effort: failures are logged and
// swallowed so they cannot affect the lifecycle write that preceded them.
func (s *Store) Audit(ctx context.Context, taskID, action, actor, detail string) {
	_, err := s.db.SQL().ExecContext(ctx,
		`INSERT INTO activity (task_id, action, actor, detail, at) VALUES (?, ?, ?, ?, ?)`,
		taskID, action, actor, detail, encodeTime(time.Now()))
	if err != nil {
		s.log.Errorf("audit %s %s: %v", action, taskID, err)
	}
}

// ActivityEntry is one row of the audit log.
type ActivityEntry struct {
	TaskID string
	Action string
	Actor  string
	Detail string
	At     time.Time
}

// Activity returns the most recent audit entries for a task, newest first.
func (s *Store) Activity(ctx context.Context, taskID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT task_id, action, actor, detail, at FROM activity WHERE task_id = ? ORDER BY at DESC, id DESC LIMIT ?`,
		taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var at string
		if err := rows.Scan(&e.TaskID, &e.Action, &e.Actor, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Row mapping ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (queue.Task, error) {
	var (
		t           queue.Task
		typ         string
		status      string
		priority    string
		deps        string
		result      sql.NullString
		createdAt   string
		claimedAt   sql.NullString
		startedAt   sql.NullString
		completedAt sql.NullString
		updatedAt   string
	)

	err := row.Scan(&t.ID, &typ, &t.Title, &t.Description, &status, &priority, &t.AssignedTo,
		&deps, &t.BlockedReason, &result, &t.Error, &t.Retries,
		&createdAt, &claimedAt, &startedAt, &completedAt, &updatedAt)
	if err != nil {
		return queue.Task{}, err
	}

	t.Type = queue.TaskType(typ)
	t.Status = queue.Status(status)
	t.Priority = queue.Priority(priority)

	if err := json.Unmarshal([]byte(deps), &t.Dependencies); err != nil {
		return queue.Task{}, fmt.Errorf("decode dependencies: %w", err)
	}
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &t.Result); err != nil {
			return queue.Task{}, fmt.Errorf("decode result: %w", err)
		}
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return queue.Task{}, fmt.Errorf("decode created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return queue.Task{}, fmt.Errorf("decode updated_at: %w", err)
	}
	t.ClaimedAt = decodeTimePtr(claimedAt)
	t.StartedAt = decodeTimePtr(startedAt)
	t.CompletedAt = decodeTimePtr(completedAt)

	return t, nil
}

func encodeJSONFields(t queue.Task) (deps string, result sql.NullString, err error) {
	d := t.Dependencies
	if d == nil {
		d = []string{}
	}
	depBytes, err := json.Marshal(d)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode dependencies: %w", err)
	}
	deps = string(depBytes)

	if t.Result != nil {
		resBytes, err := json.Marshal(t.Result)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(resBytes), Valid: true}
	}
	return deps, result, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

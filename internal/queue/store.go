package queue

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no task with the given id exists.
var ErrNotFound = errors.New("task not found")

// ErrConflict is returned by PutIf when the stored status does not match
// the expected prior status. It signals a lost race, not a failure.
var ErrConflict = errors.New("status conflict")

// Store is the persistence port for task records. Two adapters implement
// it: filestore (single JSON document, one process) and sqlstore (SQLite
// table, safe across processes).
//
// PutIf is the claim primitive: it replaces the record only if the stored
// status equals expect at the moment of the write. Adapters must make this
// atomic with respect to concurrent PutIf calls on the same id.
type Store interface {
	Get(ctx context.Context, id string) (Task, error)
	Put(ctx context.Context, t Task) error
	PutIf(ctx context.Context, t Task, expect Status) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]Task, error)
	Close() error
}

// Auditor is implemented by stores that keep an append-only activity log.
// Audit failures are best-effort: implementations log and swallow them.
type Auditor interface {
	Audit(ctx context.Context, taskID, action, actor, detail string)
}

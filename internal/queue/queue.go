package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onde/factory/internal/logging"
)

// BlockedFunc is invoked when a task transitions into blocked.
type BlockedFunc func(Task)

// Queue coordinates task lifecycle transitions over a Store.
//
// Claim is the only operation that relies on the store's conditional write
// for cross-process safety; every other transition is performed by the
// single worker already holding the claim, so read-then-write suffices.
type Queue struct {
	store Store
	log   *logging.Logger
	now   func() time.Time

	mu        sync.Mutex
	onBlocked []BlockedFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source (used by tests and the sweeper).
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// New creates a Queue over the given store.
func New(s Store, opts ...Option) *Queue {
	q := &Queue{
		store: s,
		log:   logging.Component("queue"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnBlocked registers a callback fired whenever any operation moves a task
// into blocked, including a generic Update. Callbacks run synchronously in
// registration order, after the transition is persisted. A panicking
// callback is isolated and does not stop the others.
func (q *Queue) OnBlocked(fn BlockedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onBlocked = append(q.onBlocked, fn)
}

// AddRequest holds the caller-supplied fields for a new task.
type AddRequest struct {
	Type         TaskType
	Title        string
	Description  string
	Priority     Priority
	Dependencies []string
}

// Add creates a task in pending state and persists it.
func (q *Queue) Add(ctx context.Context, req AddRequest) (Task, error) {
	typ, err := ParseType(string(req.Type))
	if err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return Task{}, errors.New("title required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return Task{}, errors.New("invalid priority: " + string(req.Priority))
	}

	now := q.now()
	t := Task{
		ID:           NewID(),
		Type:         typ,
		Title:        req.Title,
		Description:  req.Description,
		Status:       StatusPending,
		Priority:     req.Priority,
		Dependencies: append([]string(nil), req.Dependencies...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := q.store.Put(ctx, t); err != nil {
		return Task{}, err
	}
	q.audit(ctx, t.ID, "add", "", string(t.Type))
	q.log.Infof("task added: %s (%s, %s)", t.ID, t.Type, t.Priority)
	return t.Clone(), nil
}

// Claim attempts to take ownership of a pending task for workerID.
// Exactly one of N concurrent claimants succeeds; the rest observe false.
func (q *Queue) Claim(ctx context.Context, id, workerID string) bool {
	t, err := q.store.Get(ctx, id)
	if err != nil {
		q.logGetErr("claim", id, err)
		return false
	}
	if t.Status != StatusPending {
		return false
	}

	now := q.now()
	t.Status = StatusClaimed
	t.AssignedTo = workerID
	t.ClaimedAt = &now
	t.UpdatedAt = now

	// Conditional write: loses cleanly if another claimant got there first.
	if err := q.store.PutIf(ctx, t, StatusPending); err != nil {
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			q.log.Errorf("claim %s: %v", id, err)
		}
		return false
	}
	q.audit(ctx, id, "claim", workerID, "")
	q.log.Infof("task %s claimed by %s", id, workerID)
	return true
}

// Start moves a claimed task to in_progress.
func (q *Queue) Start(ctx context.Context, id string) bool {
	_, ok := q.transition(ctx, id, []Status{StatusClaimed}, func(t *Task, now time.Time) {
		t.Status = StatusInProgress
		t.StartedAt = &now
	})
	if ok {
		q.audit(ctx, id, "start", "", "")
	}
	return ok
}

// Complete moves a claimed or in_progress task to done and stores the
// result payload. Completing a terminal task is a no-op returning false.
func (q *Queue) Complete(ctx context.Context, id string, result map[string]any) bool {
	t, ok := q.transition(ctx, id, []Status{StatusClaimed, StatusInProgress}, func(t *Task, now time.Time) {
		t.Status = StatusDone
		t.Result = result
		t.CompletedAt = &now
	})
	if ok {
		q.audit(ctx, id, "complete", t.AssignedTo, "")
		q.log.Infof("task %s done", id)
	}
	return ok
}

// Fail moves a pending, claimed, or in_progress task to failed.
func (q *Queue) Fail(ctx context.Context, id, errMsg string) bool {
	t, ok := q.transition(ctx, id, []Status{StatusPending, StatusClaimed, StatusInProgress}, func(t *Task, now time.Time) {
		t.Status = StatusFailed
		t.Error = errMsg
		t.CompletedAt = &now
	})
	if ok {
		q.audit(ctx, id, "fail", t.AssignedTo, errMsg)
		q.log.Warnf("task %s failed: %s", id, errMsg)
	}
	return ok
}

// Block moves any non-terminal task to blocked and fires the registered
// callbacks. Blocking an already-blocked task is a no-op (nil, no re-fire).
func (q *Queue) Block(ctx context.Context, id, reason string) *Task {
	t, ok := q.transition(ctx, id, []Status{StatusPending, StatusClaimed, StatusInProgress}, func(t *Task, now time.Time) {
		t.Status = StatusBlocked
		t.BlockedReason = reason
	})
	if !ok {
		return nil
	}
	q.audit(ctx, id, "block", t.AssignedTo, reason)
	q.fireBlocked(t)
	out := t.Clone()
	return &out
}

// Unblock returns a blocked task to pending, clearing its reason and any
// stale assignment.
func (q *Queue) Unblock(ctx context.Context, id string) *Task {
	t, ok := q.transition(ctx, id, []Status{StatusBlocked}, func(t *Task, now time.Time) {
		t.Status = StatusPending
		t.BlockedReason = ""
		t.AssignedTo = ""
		t.ClaimedAt = nil
		t.StartedAt = nil
	})
	if !ok {
		return nil
	}
	q.audit(ctx, id, "unblock", "", "")
	out := t.Clone()
	return &out
}

// Retry resets a failed or blocked task to pending, clears its error and
// reason, and bumps the retry counter.
func (q *Queue) Retry(ctx context.Context, id string) *Task {
	t, ok := q.transition(ctx, id, []Status{StatusFailed, StatusBlocked}, func(t *Task, now time.Time) {
		t.Status = StatusPending
		t.Error = ""
		t.BlockedReason = ""
		t.AssignedTo = ""
		t.ClaimedAt = nil
		t.StartedAt = nil
		t.CompletedAt = nil
		t.Retries++
	})
	if !ok {
		return nil
	}
	q.audit(ctx, id, "retry", "", "")
	q.log.Infof("task %s reset for retry (attempt %d)", id, t.Retries+1)
	out := t.Clone()
	return &out
}

// Release returns a claimed or in_progress task to pending without
// counting a retry, e.g. when a worker gives a task back.
func (q *Queue) Release(ctx context.Context, id string) *Task {
	t, ok := q.transition(ctx, id, []Status{StatusClaimed, StatusInProgress}, func(t *Task, now time.Time) {
		t.Status = StatusPending
		t.AssignedTo = ""
		t.ClaimedAt = nil
		t.StartedAt = nil
	})
	if !ok {
		return nil
	}
	q.audit(ctx, id, "release", "", "")
	out := t.Clone()
	return &out
}

// ReleaseStale returns every claim older than maxAge to pending, bumping
// the retry counter so repeatedly abandoned tasks stay visible. Returns
// the tasks that were released.
func (q *Queue) ReleaseStale(ctx context.Context, maxAge time.Duration) []Task {
	var released []Task
	for _, claim := range q.ActiveClaims(ctx) {
		if claim.Age <= maxAge {
			continue
		}
		worker := claim.WorkerID
		t, ok := q.transition(ctx, claim.Task.ID, []Status{StatusClaimed, StatusInProgress}, func(t *Task, now time.Time) {
			t.Status = StatusPending
			t.AssignedTo = ""
			t.ClaimedAt = nil
			t.StartedAt = nil
			t.Retries++
		})
		if !ok {
			continue
		}
		q.audit(ctx, t.ID, "swept", worker, fmt.Sprintf("claim older than %s released", maxAge))
		q.log.Warnf("task %s swept: %s held claim longer than %s", t.ID, worker, maxAge)
		released = append(released, t.Clone())
	}
	return released
}

// Patch holds optional field updates for Update. Nil pointers leave the
// stored value unchanged.
type Patch struct {
	Title         *string
	Description   *string
	Priority      *Priority
	Status        *Status
	AssignedTo    *string
	Dependencies  *[]string
	BlockedReason *string
}

// Update applies a partial edit. It funnels through the same transition
// path as the dedicated operations, so a patch that moves a task into
// blocked fires the blocked callbacks exactly as Block would. Status
// changes out of a terminal state are rejected.
func (q *Queue) Update(ctx context.Context, id string, p Patch) *Task {
	t, err := q.store.Get(ctx, id)
	if err != nil {
		q.logGetErr("update", id, err)
		return nil
	}

	if p.Status != nil {
		if !p.Status.Valid() {
			return nil
		}
		if t.Status.Terminal() && *p.Status != t.Status {
			return nil
		}
	}

	wasBlocked := t.Status == StatusBlocked

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil && p.Priority.Valid() {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Dependencies != nil {
		t.Dependencies = append([]string(nil), (*p.Dependencies)...)
	}
	if p.BlockedReason != nil {
		t.BlockedReason = *p.BlockedReason
	}
	now := q.now()
	if p.Status != nil && *p.Status != t.Status {
		switch *p.Status {
		case StatusClaimed:
			t.ClaimedAt = &now
		case StatusInProgress:
			t.StartedAt = &now
		case StatusDone, StatusFailed:
			if t.CompletedAt == nil {
				t.CompletedAt = &now
			}
		case StatusPending:
			t.BlockedReason = ""
			t.AssignedTo = ""
			t.ClaimedAt = nil
			t.StartedAt = nil
		}
		t.Status = *p.Status
	}
	t.UpdatedAt = now

	if err := q.store.Put(ctx, t); err != nil {
		q.log.Errorf("update %s: %v", id, err)
		return nil
	}
	q.audit(ctx, id, "update", "", "")

	if !wasBlocked && t.Status == StatusBlocked {
		q.fireBlocked(t)
	}
	out := t.Clone()
	return &out
}

// Delete removes a task unconditionally. Dependents are left untouched;
// their dependency ids simply dangle, which the gate treats as unmet.
func (q *Queue) Delete(ctx context.Context, id string) bool {
	existed, err := q.store.Delete(ctx, id)
	if err != nil {
		q.log.Errorf("delete %s: %v", id, err)
		return false
	}
	if existed {
		q.audit(ctx, id, "delete", "", "")
	}
	return existed
}

// Get returns a task by id, or nil if it does not exist.
func (q *Queue) Get(ctx context.Context, id string) *Task {
	t, err := q.store.Get(ctx, id)
	if err != nil {
		q.logGetErr("get", id, err)
		return nil
	}
	out := t.Clone()
	return &out
}

// transition loads a task, checks its status against the allowed set,
// applies mutate, stamps updated_at, and persists. Every status change in
// the queue funnels through here (or through Update, which mirrors it), so
// timestamps and audit behavior stay consistent.
func (q *Queue) transition(ctx context.Context, id string, from []Status, mutate func(*Task, time.Time)) (Task, bool) {
	t, err := q.store.Get(ctx, id)
	if err != nil {
		q.logGetErr("transition", id, err)
		return Task{}, false
	}

	allowed := false
	for _, s := range from {
		if t.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return Task{}, false
	}

	now := q.now()
	mutate(&t, now)
	t.UpdatedAt = now

	if err := q.store.Put(ctx, t); err != nil {
		q.log.Errorf("persist %s: %v", id, err)
		return Task{}, false
	}
	return t, true
}

// fireBlocked invokes the blocked callbacks in registration order.
// Runs after the transition is persisted; each callback is recovered
// independently so one panic cannot starve the rest.
func (q *Queue) fireBlocked(t Task) {
	q.mu.Lock()
	callbacks := append([]BlockedFunc(nil), q.onBlocked...)
	q.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.log.Errorf("blocked callback panic for %s: %v", t.ID, r)
				}
			}()
			fn(t.Clone())
		}()
	}
}

func (q *Queue) audit(ctx context.Context, taskID, action, actor, detail string) {
	if a, ok := q.store.(Auditor); ok {
		a.Audit(ctx, taskID, action, actor, detail)
	}
}

func (q *Queue) logGetErr(op, id string, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	q.log.Errorf("%s %s: %v", op, id, err)
}

// sortForSelection orders tasks by priority rank, then creation time,
// then id. The id tie-break keeps the order deterministic even for tasks
// created within the same clock tick.
func sortForSelection(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if a, b := tasks[i].Priority.Rank(), tasks[j].Priority.Rank(); a != b {
			return a < b
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Package worker implements the polling consumer side of the queue: claim
// the next ready task, run it, report the outcome.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/queue"
)

// Runner executes a claimed task and returns its result payload.
type Runner interface {
	Run(ctx context.Context, t queue.Task) (map[string]any, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, t queue.Task) (map[string]any, error)

func (f RunnerFunc) Run(ctx context.Context, t queue.Task) (map[string]any, error) {
	return f(ctx, t)
}

// Worker polls the queue for ready tasks of its type and runs them.
type Worker struct {
	id     string
	typ    queue.TaskType // empty means any type
	poll   time.Duration
	queue  *queue.Queue
	runner Runner
	log    *logging.Logger
}

// New creates a worker. taskType may be empty to accept any type.
func New(id string, taskType queue.TaskType, poll time.Duration, q *queue.Queue, r Runner) *Worker {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Worker{
		id:     id,
		typ:    taskType,
		poll:   poll,
		queue:  q,
		runner: r,
		log:    logging.Component("worker"),
	}
}

// Run polls until ctx is cancelled. Between tasks it sleeps for the poll
// interval; after finishing a task it immediately checks for the next one,
// so a backlog drains without idle gaps.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infof("worker %s polling every %s", w.id, w.poll)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		for w.RunOnce(ctx) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			w.log.Infof("worker %s stopping", w.id)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims and executes at most one task, reporting whether it did.
// A lost claim race counts as no work: the caller just polls again.
func (w *Worker) RunOnce(ctx context.Context) bool {
	next := w.queue.NextAvailable(ctx, w.typ)
	if next == nil {
		return false
	}
	if !w.queue.Claim(ctx, next.ID, w.id) {
		w.log.Debugf("lost claim race for %s", next.ID)
		return false
	}
	if !w.queue.Start(ctx, next.ID) {
		// Claim succeeded but start did not; hand the task back rather
		// than leave it parked in claimed.
		w.queue.Release(ctx, next.ID)
		return false
	}

	w.log.Infof("running %s (%s: %s)", next.ID, next.Type, next.Title)
	result, err := w.run(ctx, *next)
	if err != nil {
		w.log.Err(err).Str("task", next.ID).Msg("task failed")
		w.queue.Fail(ctx, next.ID, err.Error())
		return true
	}
	w.queue.Complete(ctx, next.ID, result)
	w.log.Infof("completed %s", next.ID)
	return true
}

// run isolates runner panics so one bad task cannot kill the loop.
func (w *Worker) run(ctx context.Context, t queue.Task) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panic: %v", r)
		}
	}()
	return w.runner.Run(ctx, t)
}

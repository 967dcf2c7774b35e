// Package sweeper recovers tasks whose claimants have gone away. A worker
// that crashes mid-task leaves its claim behind; the sweeper returns such
// claims to pending once they exceed the configured age, so no task is
// stranded on a dead worker.
package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/queue"
)

// Sweeper periodically releases stale claims back to the queue.
type Sweeper struct {
	queue  *queue.Queue
	maxAge time.Duration
	cron   *cron.Cron
	log    *logging.Logger
}

// New creates a sweeper over q that treats claims older than maxAge as
// abandoned.
func New(q *queue.Queue, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		queue:  q,
		maxAge: maxAge,
		log:    logging.Component("sweeper"),
	}
}

// Sweep performs one pass and returns how many tasks were released.
func (s *Sweeper) Sweep(ctx context.Context) int {
	released := s.queue.ReleaseStale(ctx, s.maxAge)
	if len(released) > 0 {
		s.log.Infof("sweep released %d stale claim(s)", len(released))
	}
	return len(released)
}

// Start schedules recurring sweeps on a cron expression (standard five-field
// syntax, e.g. "*/5 * * * *"). It returns after scheduling; sweeps run on
// the cron goroutine until Stop.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Infof("sweeper scheduled (%s), max claim age %s", schedule, s.maxAge)
	return nil
}

// Stop halts scheduled sweeps and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

package queue

import (
	"context"
	"sort"
	"time"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses []Status
	Type     TaskType
	Priority Priority
	Limit    int
}

func (f Filter) matches(t Task) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// List returns tasks matching the filter in selection order.
func (q *Queue) List(ctx context.Context, f Filter) []Task {
	tasks, err := q.store.List(ctx)
	if err != nil {
		q.log.Errorf("list: %v", err)
		return nil
	}

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.matches(t) {
			out = append(out, t.Clone())
		}
	}
	sortForSelection(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Blocked returns tasks in the stored blocked status. This is distinct from
// the dependency-wait view: see Waiting.
func (q *Queue) Blocked(ctx context.Context) []Task {
	return q.List(ctx, Filter{Statuses: []Status{StatusBlocked}})
}

// NextAvailable returns the highest-priority, oldest pending task whose
// dependencies are all done, optionally filtered by type. Returns nil when
// nothing is eligible; an empty queue is not an error.
func (q *Queue) NextAvailable(ctx context.Context, taskType TaskType) *Task {
	eligible := q.ready(ctx, taskType)
	if len(eligible) == 0 {
		return nil
	}
	out := eligible[0].Clone()
	return &out
}

// Ready returns pending tasks whose dependencies are met, in selection
// order, optionally filtered by type.
func (q *Queue) Ready(ctx context.Context, taskType TaskType) []Task {
	return q.ready(ctx, taskType)
}

// Waiting returns pending tasks excluded from selection because one or
// more dependencies are not done. This is a read-time view for dashboards,
// not a stored status.
func (q *Queue) Waiting(ctx context.Context) []Task {
	tasks, err := q.store.List(ctx)
	if err != nil {
		q.log.Errorf("list: %v", err)
		return nil
	}

	byID := indexByID(tasks)
	var out []Task
	for _, t := range tasks {
		if t.Status == StatusPending && !dependenciesMet(t, byID) {
			out = append(out, t.Clone())
		}
	}
	sortForSelection(out)
	return out
}

func (q *Queue) ready(ctx context.Context, taskType TaskType) []Task {
	tasks, err := q.store.List(ctx)
	if err != nil {
		q.log.Errorf("list: %v", err)
		return nil
	}

	byID := indexByID(tasks)
	var out []Task
	for _, t := range tasks {
		if t.Status != StatusPending {
			continue
		}
		if taskType != "" && t.Type != taskType {
			continue
		}
		if !dependenciesMet(t, byID) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortForSelection(out)
	return out
}

// ActiveClaim describes a claimed or in_progress task for the workers view.
type ActiveClaim struct {
	Task     Task
	WorkerID string
	Age      time.Duration
}

// ActiveClaims returns the currently held tasks, oldest claim first.
func (q *Queue) ActiveClaims(ctx context.Context) []ActiveClaim {
	tasks := q.List(ctx, Filter{Statuses: []Status{StatusClaimed, StatusInProgress}})
	now := q.now()

	out := make([]ActiveClaim, 0, len(tasks))
	for _, t := range tasks {
		var age time.Duration
		if t.ClaimedAt != nil {
			age = now.Sub(*t.ClaimedAt)
		}
		out = append(out, ActiveClaim{Task: t, WorkerID: t.AssignedTo, Age: age})
	}
	// Oldest first so stuck claims surface at the top.
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out
}

// Summary aggregates queue state for the status command and the board.
type Summary struct {
	Total      int
	ByStatus   map[Status]int
	ByType     map[TaskType]int
	Ready      int // pending with dependencies met
	Waiting    int // pending with unmet dependencies
	DoneToday  int
	LastUpdate time.Time
}

// Summarize computes per-status and per-type counts in one pass.
func (q *Queue) Summarize(ctx context.Context) Summary {
	tasks, err := q.store.List(ctx)
	if err != nil {
		q.log.Errorf("list: %v", err)
		return Summary{ByStatus: map[Status]int{}, ByType: map[TaskType]int{}}
	}

	byID := indexByID(tasks)
	now := q.now()
	s := Summary{
		ByStatus: make(map[Status]int),
		ByType:   make(map[TaskType]int),
	}
	for _, t := range tasks {
		s.Total++
		s.ByStatus[t.Status]++
		s.ByType[t.Type]++
		if t.Status == StatusPending {
			if dependenciesMet(t, byID) {
				s.Ready++
			} else {
				s.Waiting++
			}
		}
		if t.Status == StatusDone && t.CompletedAt != nil && sameDay(*t.CompletedAt, now) {
			s.DoneToday++
		}
		if t.UpdatedAt.After(s.LastUpdate) {
			s.LastUpdate = t.UpdatedAt
		}
	}
	return s
}

// dependenciesMet reports whether every dependency is done. A dependency id
// with no matching record counts as unmet; referential integrity is not
// enforced at write time.
func dependenciesMet(t Task, byID map[string]Task) bool {
	for _, depID := range t.Dependencies {
		dep, ok := byID[depID]
		if !ok || dep.Status != StatusDone {
			return false
		}
	}
	return true
}

func indexByID(tasks []Task) map[string]Task {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

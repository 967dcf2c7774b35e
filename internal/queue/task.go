// Package queue implements the agent task queue: the task record, the
// lifecycle state machine, claim semantics, and priority selection.
// Persistence is delegated to a Store so the same logic runs against
// the JSON file backend and the SQLite backend.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// Terminal reports whether no further lifecycle transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusClaimed, StatusInProgress, StatusDone, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// Priority orders eligible tasks for selection. It never preempts work
// that is already claimed.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the sort key for a priority: lower sorts first.
// Unknown priorities rank after low so malformed records sink, not crash.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 3
	case PriorityLow:
		return 4
	default:
		return 5
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() < 5
}

// ParsePriority converts a string to a Priority. Case-insensitive.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority: %s (valid: urgent, high, normal, low)", s)
	}
	return p, nil
}

// TaskType is the category of work an agent performs.
type TaskType string

const (
	TypeContentCreate TaskType = "content_create"
	TypeContentEdit   TaskType = "content_edit"
	TypeIllustration  TaskType = "illustration"
	TypeCodeReview    TaskType = "code_review"
	TypeTranslation   TaskType = "translation"
	TypeSocialPost    TaskType = "social_post"
	TypeAutomation    TaskType = "automation"
)

// KnownTypes lists the closed set of task types.
func KnownTypes() []TaskType {
	return []TaskType{
		TypeContentCreate,
		TypeContentEdit,
		TypeIllustration,
		TypeCodeReview,
		TypeTranslation,
		TypeSocialPost,
		TypeAutomation,
	}
}

// ParseType converts a string to a TaskType. Case-insensitive.
func ParseType(s string) (TaskType, error) {
	lower := TaskType(strings.ToLower(s))
	names := make([]string, 0, len(KnownTypes()))
	for _, t := range KnownTypes() {
		if lower == t {
			return t, nil
		}
		names = append(names, string(t))
	}
	return "", fmt.Errorf("unknown task type: %s (valid: %s)", s, strings.Join(names, ", "))
}

// Task is a unit of work tracked through the queue lifecycle.
//
// Dependencies are task IDs that must reach done before this task is
// selectable; they gate selection only and are never validated against
// existing records. BlockedReason is set only while status is blocked.
type Task struct {
	ID            string         `json:"id"`
	Type          TaskType       `json:"type"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Status        Status         `json:"status"`
	Priority      Priority       `json:"priority"`
	AssignedTo    string         `json:"assigned_to,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	BlockedReason string         `json:"blocked_reason,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	Retries       int            `json:"retries"`

	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate stored state.
func (t Task) Clone() Task {
	out := t
	if t.Dependencies != nil {
		out.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.Result != nil {
		out.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			out.Result[k] = v
		}
	}
	if t.ClaimedAt != nil {
		ts := *t.ClaimedAt
		out.ClaimedAt = &ts
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		out.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// NewID generates a task identifier.
func NewID() string {
	return "task-" + uuid.NewString()
}

package queue

import (
	"strings"
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:    false,
		StatusClaimed:    false,
		StatusInProgress: false,
		StatusBlocked:    false,
		StatusDone:       true,
		StatusFailed:     true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestPriorityRankOrder(t *testing.T) {
	order := []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
	if Priority("whenever").Rank() <= PriorityLow.Rank() {
		t.Error("unknown priority should rank after low")
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("URGENT")
	if err != nil || p != PriorityUrgent {
		t.Errorf("ParsePriority(URGENT) = (%s, %v)", p, err)
	}
	if _, err := ParsePriority("critical"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("content_create")
	if err != nil || typ != TypeContentCreate {
		t.Errorf("ParseType(content_create) = (%s, %v)", typ, err)
	}
	_, err = ParseType("juggling")
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	// The error should tell the caller what IS accepted.
	if !strings.Contains(err.Error(), "content_create") {
		t.Errorf("error %q does not list known types", err)
	}
}

func TestNewIDShape(t *testing.T) {
	a, b := NewID(), NewID()
	if !strings.HasPrefix(a, "task-") {
		t.Errorf("id %q missing task- prefix", a)
	}
	if a == b {
		t.Error("ids must be unique")
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := Task{
		ID:           "task-1",
		Dependencies: []string{"task-0"},
		Result:       map[string]any{"pages": 3},
		ClaimedAt:    &now,
	}
	c := orig.Clone()

	c.Dependencies[0] = "task-else"
	c.Result["pages"] = 99
	*c.ClaimedAt = now.Add(time.Hour)

	if orig.Dependencies[0] != "task-0" {
		t.Error("dependencies shared between clone and original")
	}
	if orig.Result["pages"] != 3 {
		t.Error("result map shared between clone and original")
	}
	if !orig.ClaimedAt.Equal(now) {
		t.Error("timestamp pointer shared between clone and original")
	}
}

func TestSortForSelection(t *testing.T) {
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "task-c", Priority: PriorityNormal, CreatedAt: base},
		{ID: "task-b", Priority: PriorityUrgent, CreatedAt: base.Add(time.Minute)},
		{ID: "task-a", Priority: PriorityUrgent, CreatedAt: base.Add(time.Minute)},
		{ID: "task-e", Priority: PriorityLow, CreatedAt: base.Add(-time.Hour)},
		{ID: "task-d", Priority: PriorityUrgent, CreatedAt: base},
	}
	sortForSelection(tasks)

	want := []string{"task-d", "task-a", "task-b", "task-c", "task-e"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d = %s, want %s (full order: %v)", i, tasks[i].ID, id, ids(tasks))
		}
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

package board

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onde/factory/internal/queue"
)

func TestColumnFor(t *testing.T) {
	tests := []struct {
		status queue.Status
		want   Column
	}{
		{queue.StatusPending, ColumnPending},
		{queue.StatusClaimed, ColumnInProgress},
		{queue.StatusInProgress, ColumnInProgress},
		{queue.StatusBlocked, ColumnBlocked},
		{queue.StatusDone, ColumnDone},
		{queue.StatusFailed, ColumnDone},
	}
	for _, tt := range tests {
		if got := columnFor(tt.status); got != tt.want {
			t.Errorf("columnFor(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	m := New(nil, 0)
	if m == nil {
		t.Fatal("New() returned nil")
		return
	}
	if m.refresh != 2*time.Second {
		t.Errorf("default refresh = %s, want 2s", m.refresh)
	}
	if m.active != ColumnPending {
		t.Errorf("initial column = %s, want Pending", m.active)
	}
	if m.styles == nil {
		t.Error("expected styles to be initialized")
	}
}

func TestSetTasksDistributesByStatus(t *testing.T) {
	m := New(nil, time.Second)
	m.setTasks([]queue.Task{
		{ID: "task-1", Title: "Draft", Status: queue.StatusPending},
		{ID: "task-2", Title: "Ink", Status: queue.StatusInProgress},
		{ID: "task-3", Title: "Stuck", Status: queue.StatusBlocked},
		{ID: "task-4", Title: "Shipped", Status: queue.StatusDone},
		{ID: "task-5", Title: "Broken", Status: queue.StatusFailed},
		{ID: "task-6", Title: "Held", Status: queue.StatusClaimed},
	})

	if got := len(m.columns[ColumnPending]); got != 1 {
		t.Errorf("pending column has %d tasks, want 1", got)
	}
	if got := len(m.columns[ColumnInProgress]); got != 2 {
		t.Errorf("in-progress column has %d tasks, want 2", got)
	}
	if got := len(m.columns[ColumnBlocked]); got != 1 {
		t.Errorf("blocked column has %d tasks, want 1", got)
	}
	if got := len(m.columns[ColumnDone]); got != 2 {
		t.Errorf("done column has %d tasks, want 2", got)
	}
}

func TestSetTasksClampsSelection(t *testing.T) {
	m := New(nil, time.Second)
	m.setTasks([]queue.Task{
		{ID: "task-1", Status: queue.StatusPending},
		{ID: "task-2", Status: queue.StatusPending},
		{ID: "task-3", Status: queue.StatusPending},
	})
	m.selected[ColumnPending] = 2

	m.setTasks([]queue.Task{{ID: "task-1", Status: queue.StatusPending}})
	if m.selected[ColumnPending] != 0 {
		t.Errorf("selection not clamped: %d", m.selected[ColumnPending])
	}
}

func TestKeyNavigation(t *testing.T) {
	m := *New(nil, time.Second)
	m.setTasks([]queue.Task{
		{ID: "task-1", Status: queue.StatusPending},
		{ID: "task-2", Status: queue.StatusPending},
	})

	next, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.active != ColumnInProgress {
		t.Errorf("after tab, active = %s, want In Progress", m.active)
	}

	next, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(Model)
	if m.active != ColumnPending {
		t.Errorf("after shift+tab, active = %s, want Pending", m.active)
	}

	next, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.selected[ColumnPending] != 1 {
		t.Errorf("after down, selected = %d, want 1", m.selected[ColumnPending])
	}

	// Down at the bottom stays put.
	next, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.selected[ColumnPending] != 1 {
		t.Errorf("down past end moved selection: %d", m.selected[ColumnPending])
	}
}

func TestQuitKey(t *testing.T) {
	m := *New(nil, time.Second)
	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("quitting flag not set")
	}
	if next.(Model).View() != "" {
		t.Error("quitting view should be empty")
	}
}

func TestViewRendersColumnsAndTasks(t *testing.T) {
	m := *New(nil, time.Second)
	m.width = 120
	m.height = 30
	m.setTasks([]queue.Task{
		{ID: "task-1", Title: "Edit chapter two", Status: queue.StatusPending, Priority: queue.PriorityUrgent},
		{ID: "task-2", Title: "Ink cover", Status: queue.StatusInProgress, AssignedTo: "worker-3"},
	})
	m.summary = queue.Summary{Total: 2, Ready: 1}

	out := m.View()
	for _, want := range []string{"Pending", "In Progress", "Blocked", "Done", "Edit chapter two", "Ink cover", "worker-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// Package board provides a terminal kanban view of the task queue.
// Uses Bubbletea for interactive display; columns refresh by polling
// the queue so the board tracks workers running in other processes.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onde/factory/internal/queue"
)

// Column identifies one lane of the board.
type Column int

const (
	ColumnPending Column = iota
	ColumnInProgress
	ColumnBlocked
	ColumnDone
	columnCount
)

func (c Column) String() string {
	switch c {
	case ColumnPending:
		return "Pending"
	case ColumnInProgress:
		return "In Progress"
	case ColumnBlocked:
		return "Blocked"
	case ColumnDone:
		return "Done"
	default:
		return "?"
	}
}

// columnFor maps a task status to its board lane. Claimed tasks sit in the
// in-progress lane: a worker holds them even if it has not started yet.
func columnFor(s queue.Status) Column {
	switch s {
	case queue.StatusPending:
		return ColumnPending
	case queue.StatusClaimed, queue.StatusInProgress:
		return ColumnInProgress
	case queue.StatusBlocked:
		return ColumnBlocked
	default:
		return ColumnDone
	}
}

// Model holds the board state.
type Model struct {
	queue   *queue.Queue
	refresh time.Duration

	width  int
	height int

	columns  [columnCount][]queue.Task
	summary  queue.Summary
	active   Column
	selected [columnCount]int
	scroll   [columnCount]int
	quitting bool

	styles *Styles
}

// Styles holds lipgloss styles for the board.
type Styles struct {
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style

	Title    lipgloss.Style
	Count    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	Urgent  lipgloss.Style
	High    lipgloss.Style
	Failed  lipgloss.Style
	Done    lipgloss.Style
	Blocked lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}

	return &Styles{
		ActiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),

		InactiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Count: lipgloss.NewStyle().
			Foreground(subtle),

		Muted: lipgloss.NewStyle().
			Foreground(subtle),

		Selected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		Urgent: lipgloss.NewStyle().
			Foreground(red).
			Bold(true),

		High: lipgloss.NewStyle().
			Foreground(yellow),

		Failed: lipgloss.NewStyle().
			Foreground(red),

		Done: lipgloss.NewStyle().
			Foreground(green),

		Blocked: lipgloss.NewStyle().
			Foreground(yellow),

		HelpKey: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		HelpText: lipgloss.NewStyle().
			Foreground(subtle),
	}
}

// tickMsg triggers a queue refresh.
type tickMsg time.Time

// refreshMsg carries a fresh snapshot of the queue.
type refreshMsg struct {
	tasks   []queue.Task
	summary queue.Summary
}

// New creates a board over q refreshing at the given interval.
func New(q *queue.Queue, refresh time.Duration) *Model {
	if refresh <= 0 {
		refresh = 2 * time.Second
	}
	return &Model{
		queue:   q,
		refresh: refresh,
		width:   80,
		height:  24,
		active:  ColumnPending,
		styles:  newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		m.tickCmd(),
		tea.EnterAltScreen,
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	q := m.queue
	return func() tea.Msg {
		ctx := context.Background()
		return refreshMsg{
			tasks:   q.List(ctx, queue.Filter{}),
			summary: q.Summarize(ctx),
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case refreshMsg:
		m.setTasks(msg.tasks)
		m.summary = msg.summary
		return m, nil
	}

	return m, nil
}

// setTasks distributes a queue snapshot across the lanes, preserving the
// queue's priority ordering within each lane.
func (m *Model) setTasks(tasks []queue.Task) {
	var cols [columnCount][]queue.Task
	for _, t := range tasks {
		c := columnFor(t.Status)
		cols[c] = append(cols[c], t)
	}
	m.columns = cols
	for c := range m.selected {
		if m.selected[c] >= len(cols[c]) {
			m.selected[c] = max(0, len(cols[c])-1)
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		return m, m.refreshCmd()

	case "tab", "right", "l":
		m.active = (m.active + 1) % columnCount
		return m, nil

	case "shift+tab", "left", "h":
		m.active = (m.active + columnCount - 1) % columnCount
		return m, nil

	case "up", "k":
		if m.selected[m.active] > 0 {
			m.selected[m.active]--
		}
		return m, nil

	case "down", "j":
		if m.selected[m.active] < len(m.columns[m.active])-1 {
			m.selected[m.active]++
		}
		return m, nil

	case "home", "g":
		m.selected[m.active] = 0
		return m, nil

	case "end", "G":
		if n := len(m.columns[m.active]); n > 0 {
			m.selected[m.active] = n - 1
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	colWidth := m.width/int(columnCount) - 2
	colHeight := m.height - 5 // header, help bar, borders

	rendered := make([]string, 0, columnCount)
	for c := Column(0); c < columnCount; c++ {
		content := m.renderColumn(c, colWidth-2, colHeight-2)
		border := m.styles.InactiveBorder
		if c == m.active {
			border = m.styles.ActiveBorder
		}
		rendered = append(rendered, border.Width(colWidth-2).Height(colHeight-2).Render(content))
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, rendered...),
		m.renderHelpBar(),
	)
}

func (m Model) renderHeader() string {
	s := m.summary
	line := fmt.Sprintf("%d tasks | %d ready | %d waiting on deps | %d done today",
		s.Total, s.Ready, s.Waiting, s.DoneToday)
	return " " + m.styles.Title.Render("Factory Board") + "  " + m.styles.Muted.Render(line)
}

func (m Model) renderColumn(c Column, width, height int) string {
	var b strings.Builder

	tasks := m.columns[c]
	b.WriteString(m.styles.Title.Render(c.String()))
	b.WriteString(m.styles.Count.Render(fmt.Sprintf(" (%d)", len(tasks))))
	b.WriteString("\n\n")

	if len(tasks) == 0 {
		b.WriteString(m.styles.Muted.Render("empty"))
		return b.String()
	}

	visible := height - 3
	if visible < 1 {
		visible = 1
	}
	scroll := m.scroll[c]
	if m.selected[c] < scroll {
		scroll = m.selected[c]
	} else if m.selected[c] >= scroll+visible {
		scroll = m.selected[c] - visible + 1
	}

	for i := scroll; i < len(tasks) && i < scroll+visible; i++ {
		t := tasks[i]
		line := m.renderTaskLine(t, width)
		if i == m.selected[c] && c == m.active {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(tasks) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", scroll+1, len(tasks))))
	}

	return b.String()
}

func (m Model) renderTaskLine(t queue.Task, width int) string {
	marker := " "
	style := lipgloss.NewStyle()
	switch {
	case t.Status == queue.StatusFailed:
		marker, style = "x", m.styles.Failed
	case t.Status == queue.StatusDone:
		marker, style = "*", m.styles.Done
	case t.Status == queue.StatusBlocked:
		marker, style = "!", m.styles.Blocked
	case t.Priority == queue.PriorityUrgent:
		marker, style = "^", m.styles.Urgent
	case t.Priority == queue.PriorityHigh:
		marker, style = "+", m.styles.High
	}

	title := t.Title
	maxLen := width - 4
	if maxLen > 3 && len(title) > maxLen {
		title = title[:maxLen-3] + "..."
	}

	line := fmt.Sprintf(" %s %s", style.Render(marker), title)
	if t.AssignedTo != "" && t.Status != queue.StatusDone {
		line += m.styles.Muted.Render(" @" + t.AssignedTo)
	}
	return line
}

func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"tab", "switch column"},
		{"j/k", "up/down"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	var parts []string
	for _, item := range helpItems {
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}

	return "  " + strings.Join(parts, "  |  ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run starts the board and blocks until the user quits.
func (m *Model) Run() error {
	p := tea.NewProgram(*m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

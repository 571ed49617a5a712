// Package tui provides rsocketctl's interactive stream dashboard, built on
// the bubbletea/lipgloss stack. It renders one tab: a live table of every
// stream registered on the connection, refreshed by polling
// Connection.Snapshot() every refreshInterval.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ciychodianda/rsocket-go/rsocket"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingRight(1)

	altRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Background(lipgloss.Color("236")).
			PaddingRight(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	halfOpenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	halfClosedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const refreshInterval = 500 * time.Millisecond

// tickMsg triggers a refresh.
type tickMsg time.Time

// snapshotMsg carries a freshly polled stream table.
type snapshotMsg []rsocket.StreamInfo

// Model is the top-level bubbletea model for the stream dashboard.
type Model struct {
	conn      *rsocket.Connection
	addr      string
	streams   []rsocket.StreamInfo
	width     int
	height    int
	lastPoll  time.Time
	connDone  bool
}

// New returns a Model that polls conn, identified in the status bar as addr.
func New(conn *rsocket.Connection, addr string) Model {
	return Model{conn: conn, addr: addr}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), poll(m.conn))
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func poll(conn *rsocket.Connection) tea.Cmd {
	return func() tea.Msg { return snapshotMsg(conn.Snapshot()) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, poll(m.conn)
		}
		return m, nil
	case tickMsg:
		select {
		case <-m.conn.Done():
			m.connDone = true
		default:
		}
		return m, tea.Batch(tick(), poll(m.conn))
	case snapshotMsg:
		m.streams = msg
		m.lastPoll = time.Now()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("  rsocketctl dashboard  "))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	content := renderStreams(m.streams, m.width-2)
	contentHeight := m.height - 4
	if contentHeight < 1 {
		contentHeight = 1
	}
	sb.WriteString(clipLines(content, contentHeight))
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	return sb.String()
}

func (m Model) renderStatus() string {
	parts := []string{fmt.Sprintf("peer: %s", m.addr), fmt.Sprintf("streams: %d", len(m.streams))}
	if !m.lastPoll.IsZero() {
		parts = append(parts, fmt.Sprintf("last poll: %s", m.lastPoll.Format("15:04:05")))
	}
	if m.connDone {
		parts = append(parts, "CONNECTION CLOSED")
	}
	parts = append(parts, "r: refresh  q: quit")
	return statusBarStyle.Render(strings.Join(parts, "  |  "))
}

func clipLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n")
}

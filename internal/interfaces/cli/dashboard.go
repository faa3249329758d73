package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"antiposta.dev/testserver/internal/monitoring"
)

const (
	dashboardMaxRows     = 100
	dashboardRefreshRate = time.Second
)

// runDashboard shows the live request view until the user quits, ctx is
// cancelled or the server stops
func runDashboard(ctx context.Context, rt Runtime, host string) error {
	feed := rt.LiveFeed()
	if feed == nil {
		return fmt.Errorf("dashboard feed is not enabled")
	}

	model := newDashboardModel(feed, fmt.Sprintf("http://%s:%d", host, rt.Port()), time.Now())
	program := tea.NewProgram(model, tea.WithAltScreen())

	serveErr := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case err := <-rt.Done():
			serveErr <- err
		case <-finished:
			return
		}
		program.Quit()
	}()

	_, err := program.Run()
	close(finished)
	if err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// dashboardModel holds the state for the Bubble Tea dashboard
type dashboardModel struct {
	feed         *monitoring.Feed
	url          string
	started      time.Time
	now          time.Time
	rows         []RequestDisplayItem
	total        int
	selectedRow  int
	paused       bool
	feedClosed   bool
	windowWidth  int
	windowHeight int
}

// RequestDisplayItem is one request line in the dashboard
type RequestDisplayItem struct {
	Timestamp string
	Method    string
	Target    string
	Status    int
	Format    string
	Size      string
	Client    string
	Duration  string
}

func newDashboardModel(feed *monitoring.Feed, url string, started time.Time) dashboardModel {
	return dashboardModel{
		feed:         feed,
		url:          url,
		started:      started,
		now:          started,
		windowHeight: 24,
	}
}

// Init implements the Bubble Tea init method
func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForEntry(m.feed))
}

// Update implements the Bubble Tea update method
func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ":
			m.paused = !m.paused
			return m, nil

		case "up", "k":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			return m, nil

		case "down", "j":
			if m.selectedRow < len(m.rows)-1 {
				m.selectedRow++
			}
			return m, nil

		case "c":
			m.rows = nil
			m.selectedRow = 0
			return m, nil
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case entryMsg:
		m.total++
		if !m.paused {
			m.rows = append(m.rows, toDisplayItem(monitoring.Entry(msg)))
			if len(m.rows) > dashboardMaxRows {
				m.rows = m.rows[len(m.rows)-dashboardMaxRows:]
			}
		}
		return m, waitForEntry(m.feed)

	case feedClosedMsg:
		m.feedClosed = true
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m dashboardModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderRequestTable(),
		m.renderFooter(),
	)
}

func (m dashboardModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("Antiposta Test Server")

	info := fmt.Sprintf("%s | Requests: %d | Up %s",
		m.url,
		m.total,
		m.now.Sub(m.started).Round(time.Second),
	)

	status := "LIVE"
	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	switch {
	case m.feedClosed:
		status = "STOPPED"
		statusStyle = statusStyle.Foreground(lipgloss.Color("196"))
	case m.paused:
		status = "PAUSED"
		statusStyle = statusStyle.Foreground(lipgloss.Color("214"))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", info, "  ", statusStyle.Render(status))
	if dropped := m.feed.Dropped(); dropped > 0 {
		line += fmt.Sprintf("  (%d not shown)", dropped)
	}
	return line
}

// renderRequestTable renders the newest requests first
func (m dashboardModel) renderRequestTable() string {
	if len(m.rows) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("\n  No requests yet. Waiting for traffic...\n")
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render(fmt.Sprintf("%-8s │ %-7s │ %-3s │ %-16s │ %-6s │ %-8s │ %-15s │ %s",
			"TIME", "METHOD", "ST", "FORMAT", "SIZE", "TOOK", "CLIENT", "TARGET"))

	rows := []string{header}

	maxRows := m.windowHeight - 6
	if maxRows < 1 {
		maxRows = 1
	}
	startIdx := 0
	if len(m.rows) > maxRows {
		startIdx = len(m.rows) - maxRows
	}

	for i := len(m.rows) - 1; i >= startIdx; i-- {
		item := m.rows[i]

		rowStyle := lipgloss.NewStyle().Foreground(statusColor(item.Status))
		if len(m.rows)-1-i == m.selectedRow {
			rowStyle = rowStyle.Background(lipgloss.Color("240"))
		}

		row := fmt.Sprintf("%-8s │ %-7s │ %-3d │ %-16s │ %-6s │ %-8s │ %-15s │ %s",
			item.Timestamp,
			item.Method,
			item.Status,
			truncateString(item.Format, 16),
			item.Size,
			item.Duration,
			truncateString(item.Client, 15),
			truncateString(item.Target, 60),
		)
		rows = append(rows, rowStyle.Render(row))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m dashboardModel) renderFooter() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("Controls: [Space] Pause/Resume | [↑↓] Navigate | [c] Clear | [q] Quit")
}

// tickMsg is sent every refresh interval
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(dashboardRefreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// entryMsg carries one answered request
type entryMsg monitoring.Entry

// feedClosedMsg is sent once the server has shut the feed
type feedClosedMsg struct{}

func waitForEntry(feed *monitoring.Feed) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-feed.Entries()
		if !ok {
			return feedClosedMsg{}
		}
		return entryMsg(e)
	}
}

func toDisplayItem(e monitoring.Entry) RequestDisplayItem {
	format, _, _ := strings.Cut(e.Format, ";")
	return RequestDisplayItem{
		Timestamp: e.Time.Format("15:04:05"),
		Method:    e.Method,
		Target:    e.Path,
		Status:    e.Status,
		Format:    format,
		Size:      formatSize(e.Bytes),
		Client:    e.ClientIP,
		Duration:  e.Duration.Round(time.Microsecond).String(),
	}
}

func statusColor(status int) lipgloss.Color {
	switch {
	case status >= 500:
		return lipgloss.Color("196")
	case status >= 400:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("252")
	}
}

// formatSize formats a byte count for display
func formatSize(size int) string {
	if size < 1024 {
		return fmt.Sprintf("%dB", size)
	} else if size < 1024*1024 {
		return fmt.Sprintf("%.1fK", float64(size)/1024)
	}
	return fmt.Sprintf("%.1fM", float64(size)/(1024*1024))
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

package tui

import (
	"context"
	"time"

	"gonetids/internal/analysis"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type TickMsg time.Time

// CaptureDoneMsg tells the monitor the collector has returned.
type CaptureDoneMsg struct{}

// MonitorModel shows live counters while a capture runs.
type MonitorModel struct {
	stats         *analysis.TrafficStats
	interfaceName string
	limit         int
	started       time.Time

	packets   int
	elapsed   time.Duration
	pps       float64
	protocols []analysis.ProtocolStat
	table     table.Model

	done     <-chan struct{}
	cancel   context.CancelFunc
	finished bool
	stopped  bool
}

// NewMonitorModel watches stats, which the collector updates. done is closed
// when the capture returns; cancel stops it early when the user quits.
func NewMonitorModel(stats *analysis.TrafficStats, iface string, limit int, done <-chan struct{}, cancel context.CancelFunc) MonitorModel {
	columns := []table.Column{
		{Title: "Source IP", Width: 20},
		{Title: "Packets", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(6),
	)
	t.SetStyles(tableStyles())

	return MonitorModel{
		stats:         stats,
		interfaceName: iface,
		limit:         limit,
		started:       time.Now(),
		table:         t,
		done:          done,
		cancel:        cancel,
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}

func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitDone(m.done))
}

// Stopped reports whether the user ended the capture before its limits.
func (m MonitorModel) Stopped() bool {
	return m.stopped
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return CaptureDoneMsg{}
	}
}

// RunMonitor blocks until the capture finishes or the user quits.
func RunMonitor(m MonitorModel) (MonitorModel, error) {
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return m, err
	}
	return final.(MonitorModel), nil
}

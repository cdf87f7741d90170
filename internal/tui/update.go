package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.finished {
				m.stopped = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}

	case TickMsg:
		m.refresh(time.Time(msg))
		return m, tickCmd()

	case CaptureDoneMsg:
		m.refresh(time.Now())
		m.finished = true
		return m, tea.Quit
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *MonitorModel) refresh(now time.Time) {
	m.packets = m.stats.TotalPackets()
	m.elapsed = now.Sub(m.started)
	if secs := m.elapsed.Seconds(); secs > 0 {
		m.pps = float64(m.packets) / secs
	}
	m.protocols = m.stats.GetProtocolStats()

	talkers := m.stats.GetTopTalkers(5)
	rows := make([]table.Row, len(talkers))
	for i, stat := range talkers {
		rows[i] = table.Row{stat.IP, strconv.Itoa(stat.Packets)}
	}
	m.table.SetRows(rows)
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"gonetids/internal/analysis"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F87")).
			Padding(0, 1).
			Margin(0, 1)
)

func (m MonitorModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("gonetids - Capturing on: %s", m.interfaceName))

	limit := "unlimited"
	if m.limit > 0 {
		limit = fmt.Sprintf("%d", m.limit)
	}
	progress := fmt.Sprintf("Packets: %d / %s\nElapsed: %s\nPacket Rate: %.2f PPS",
		m.packets, limit, m.elapsed.Round(time.Second), m.pps)
	progressBox := infoStyle.Render(progress)

	protoBox := infoStyle.Render("Protocols:\n" + protocolLines(m.protocols, 5, "Waiting for data..."))
	ttBox := infoStyle.Render("Top Talkers\n" + m.table.View())

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, progressBox, protoBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, ttBox)

	if m.finished {
		return body + "\nCapture complete."
	}
	return body + "\nPress q to stop the capture."
}

func protocolLines(protocols []analysis.ProtocolStat, limit int, empty string) string {
	sorted := analysis.SortedProtocolStats(protocols)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	lines := make([]string, 0, len(sorted))
	for _, p := range sorted {
		lines = append(lines, fmt.Sprintf("%s: %d", p.Protocol, p.Count))
	}
	if len(lines) == 0 {
		return empty
	}
	return strings.Join(lines, "\n")
}

// RenderSummary draws the end-of-run summary as styled panels.
func RenderSummary(s analysis.Summary) string {
	title := titleStyle.Render(fmt.Sprintf("Analysis summary - %d packets retained", s.PacketCount))

	protoBox := infoStyle.Render("Protocols:\n" + protocolLines(s.Protocols, len(s.Protocols), "None"))

	ports := make([]string, 0, len(s.TopPorts))
	for _, p := range s.TopPorts {
		ports = append(ports, fmt.Sprintf("%d: %d", p.Port, p.Count))
	}
	if len(ports) == 0 {
		ports = append(ports, "None")
	}
	portBox := infoStyle.Render("Top Ports:\n" + strings.Join(ports, "\n"))

	ips := make([]string, 0, len(s.TopIPs))
	for _, ip := range s.TopIPs {
		ips = append(ips, fmt.Sprintf("%s: %d", ip.IP, ip.Packets))
	}
	if len(ips) == 0 {
		ips = append(ips, "None")
	}
	ipBox := infoStyle.Render("Top Source IPs:\n" + strings.Join(ips, "\n"))

	var findingsBox string
	if len(s.Findings) == 0 {
		findingsBox = infoStyle.Render("No attack detected")
	} else {
		lines := make([]string, 0, len(s.Findings))
		for _, f := range s.Findings {
			lines = append(lines, fmt.Sprintf("[%s] %s %s", f.Severity, f.Kind, f.Message))
		}
		findingsBox = alertStyle.Render("Findings:\n" + strings.Join(lines, "\n"))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, protoBox, portBox, ipBox)
	return lipgloss.JoinVertical(lipgloss.Left, title, row, findingsBox)
}

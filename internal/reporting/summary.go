package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonetids/internal/analysis"

	"github.com/olekukonko/tablewriter"
)

// PrintSummary writes the summary as console tables.
func PrintSummary(w io.Writer, s analysis.Summary) {
	fmt.Fprintf(w, "Packets retained: %d\n\n", s.PacketCount)

	protocols := tablewriter.NewWriter(w)
	protocols.SetHeader([]string{"Protocol", "Packets"})
	for _, p := range analysis.SortedProtocolStats(s.Protocols) {
		protocols.Append([]string{string(p.Protocol), strconv.Itoa(p.Count)})
	}
	protocols.Render()

	ports := tablewriter.NewWriter(w)
	ports.SetHeader([]string{"Port", "Count"})
	for _, p := range s.TopPorts {
		ports.Append([]string{strconv.Itoa(int(p.Port)), strconv.Itoa(p.Count)})
	}
	ports.Render()

	ips := tablewriter.NewWriter(w)
	ips.SetHeader([]string{"Source IP", "Packets"})
	for _, ip := range s.TopIPs {
		ips.Append([]string{ip.IP, strconv.Itoa(ip.Packets)})
	}
	ips.Render()

	if len(s.Findings) == 0 {
		fmt.Fprintln(w, "No attack detected")
		return
	}

	findings := tablewriter.NewWriter(w)
	findings.SetHeader([]string{"Kind", "Severity", "Subject", "Evidence"})
	findings.SetAutoWrapText(false)
	for _, f := range s.Findings {
		findings.Append([]string{string(f.Kind), f.Severity, f.SubjectIP, f.Evidence})
	}
	findings.Render()
}

// WriteSummaryJSON exports the summary as indented JSON.
func WriteSummaryJSON(path string, s analysis.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

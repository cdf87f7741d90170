package reporting

import (
	"fmt"
	"strings"

	"gonetids/internal/analysis"
)

// Narrative renders the plain-text summary used as the report body and as
// the fallback file content.
func Narrative(s analysis.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total packets: %d\n", s.PacketCount)

	b.WriteString("\nDetected protocols:\n")
	for _, p := range s.Protocols {
		fmt.Fprintf(&b, " - %s: %d packets\n", p.Protocol, p.Count)
	}

	b.WriteString("\nTop ports used:\n")
	for _, p := range s.TopPorts {
		fmt.Fprintf(&b, " - Port %d: %d times\n", p.Port, p.Count)
	}

	b.WriteString("\nTop source IPs:\n")
	for _, ip := range s.TopIPs {
		fmt.Fprintf(&b, " - %s: %d packets\n", ip.IP, ip.Packets)
	}

	b.WriteString("\nDetected attacks:\n")
	if len(s.Findings) == 0 {
		b.WriteString(" - No attack detected\n")
	}
	for _, f := range s.Findings {
		fmt.Fprintf(&b, " - [%s] %s\n", f.Kind, f.Message)
	}

	return b.String()
}

package analysis

import (
	"sync"

	"gonetids/internal/models"
)

// IPStat holds the packet count of a single source IP.
type IPStat struct {
	IP      string `json:"ip"`
	Packets int    `json:"packets"`
}

// PortStat holds how often a port appeared as source or destination.
type PortStat struct {
	Port  uint16 `json:"port"`
	Count int    `json:"count"`
}

// ProtocolStat holds stats for a single protocol.
type ProtocolStat struct {
	Protocol Label `json:"protocol"`
	Count    int   `json:"count"`
}

// TrafficStats accumulates the per-protocol, per-port and per-source-IP
// frequency tables of one capture batch.
type TrafficStats struct {
	mu             sync.Mutex
	protocolCounts *counter[Label]
	portCounts     *counter[uint16]
	ipCounts       *counter[string]
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats() *TrafficStats {
	return &TrafficStats{
		protocolCounts: newCounter[Label](),
		portCounts:     newCounter[uint16](),
		ipCounts:       newCounter[string](),
	}
}

// ProcessPacket classifies one packet and updates the counters.
func (s *TrafficStats) ProcessPacket(pkt models.PacketData) Label {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := Classify(pkt)
	s.protocolCounts.inc(label)

	if pkt.Transport != nil {
		s.portCounts.inc(pkt.Transport.SrcPort)
		s.portCounts.inc(pkt.Transport.DstPort)
	}

	if pkt.Network != nil {
		s.ipCounts.inc(pkt.Network.SrcIP)
	}
	return label
}

// Accumulate runs ProcessPacket over a whole batch.
func (s *TrafficStats) Accumulate(batch []models.PacketData) {
	for _, pkt := range batch {
		s.ProcessPacket(pkt)
	}
}

// TotalPackets returns how many packets were classified.
func (s *TrafficStats) TotalPackets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolCounts.total()
}

// GetProtocolStats returns the protocol table in first-seen order.
func (s *TrafficStats) GetProtocolStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.protocolCounts.entries()
	stats := make([]ProtocolStat, 0, len(entries))
	for _, e := range entries {
		stats = append(stats, ProtocolStat{Protocol: e.Key, Count: e.Count})
	}
	return stats
}

// GetTopPorts returns the top N ports by occurrence.
func (s *TrafficStats) GetTopPorts(limit int) []PortStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.portCounts.mostCommon(limit)
	stats := make([]PortStat, 0, len(entries))
	for _, e := range entries {
		stats = append(stats, PortStat{Port: e.Key, Count: e.Count})
	}
	return stats
}

// GetTopTalkers returns the top N source IPs by packet count.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.ipCounts.mostCommon(limit)
	stats := make([]IPStat, 0, len(entries))
	for _, e := range entries {
		stats = append(stats, IPStat{IP: e.Key, Packets: e.Count})
	}
	return stats
}

// SortedProtocolStats returns the protocol table by descending count.
// Protocols with equal counts keep their first-seen order.
func SortedProtocolStats(stats []ProtocolStat) []ProtocolStat {
	c := newCounter[Label]()
	for _, st := range stats {
		c.order = append(c.order, st.Protocol)
		c.counts[st.Protocol] = st.Count
	}
	entries := c.mostCommon(-1)
	out := make([]ProtocolStat, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProtocolStat{Protocol: e.Key, Count: e.Count})
	}
	return out
}

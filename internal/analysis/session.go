package analysis

import (
	"gonetids/internal/logging"
	"gonetids/internal/models"

	"github.com/sirupsen/logrus"
)

// Summary is a read-only snapshot of one analysis run.
type Summary struct {
	Protocols   []ProtocolStat `json:"protocols"`
	TopPorts    []PortStat     `json:"top_ports"`
	TopIPs      []IPStat       `json:"top_ips"`
	Findings    []Finding      `json:"findings"`
	PacketCount int            `json:"packet_count"`
}

// ProtocolCount returns the count recorded for label, 0 if absent.
func (s Summary) ProtocolCount(label Label) int {
	for _, p := range s.Protocols {
		if p.Protocol == label {
			return p.Count
		}
	}
	return 0
}

// FindingsOf returns the findings of one kind, in report order.
func (s Summary) FindingsOf(kind FindingKind) []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Session owns the state of one capture run: the retained packets, the
// counters and the findings. Nothing is shared between sessions.
type Session struct {
	config   Config
	packets  []models.PacketData
	stats    *TrafficStats
	detector *AnomalyDetector
	findings []Finding
	logger   *logrus.Entry
}

// NewSession creates a session over a captured batch.
func NewSession(cfg Config, batch []models.PacketData, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	return &Session{
		config:   cfg,
		packets:  batch,
		stats:    NewTrafficStats(),
		detector: NewAnomalyDetector(cfg, logger),
		findings: make([]Finding, 0),
		logger:   logger.WithField("component", "analysis"),
	}
}

// Analyze classifies the retained packets and runs the detectors. Counters
// and findings are rebuilt from scratch on every call.
func (s *Session) Analyze() {
	s.stats = NewTrafficStats()
	s.stats.Accumulate(s.packets)
	s.findings = s.detector.Detect(s.packets)

	s.logger.WithFields(logrus.Fields{
		"packets":   len(s.packets),
		"protocols": len(s.stats.GetProtocolStats()),
		"findings":  len(s.findings),
	}).Info("Analysis complete")
}

// Filter keeps only the packets whose label matches protocol (case-insensitive)
// and returns how many remain. Counters and findings are left untouched.
// An empty protocol keeps everything.
func (s *Session) Filter(protocol string) int {
	if protocol == "" {
		return len(s.packets)
	}

	kept := make([]models.PacketData, 0, len(s.packets))
	for _, pkt := range s.packets {
		if Classify(pkt).Matches(protocol) {
			kept = append(kept, pkt)
		}
	}
	s.logger.Debugf("Filter %q kept %d of %d packets", protocol, len(kept), len(s.packets))
	s.packets = kept
	return len(kept)
}

// Packets returns the retained packets.
func (s *Session) Packets() []models.PacketData {
	out := make([]models.PacketData, len(s.packets))
	copy(out, s.packets)
	return out
}

// Detector returns the rule engine used by the session.
func (s *Session) Detector() *AnomalyDetector {
	return s.detector
}

// Summary builds the snapshot of the run.
func (s *Session) Summary() Summary {
	findings := make([]Finding, len(s.findings))
	copy(findings, s.findings)

	return Summary{
		Protocols:   s.stats.GetProtocolStats(),
		TopPorts:    s.stats.GetTopPorts(s.config.TopN),
		TopIPs:      s.stats.GetTopTalkers(s.config.TopN),
		Findings:    findings,
		PacketCount: len(s.packets),
	}
}

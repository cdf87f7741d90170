package analysis

import (
	"gonetids/internal/logging"
	"gonetids/internal/models"

	"github.com/sirupsen/logrus"
)

// FindingKind represents the type of attack a rule reports.
type FindingKind string

const (
	FindingARPSpoofing  FindingKind = "ARPSpoofing"
	FindingSQLInjection FindingKind = "SQLInjection"
	FindingDoSSuspect   FindingKind = "DoSSuspect"
)

// Severity levels, same vocabulary as the rules configuration.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Finding is a heuristic detection. Findings are not guaranteed true positives.
type Finding struct {
	Kind       FindingKind `json:"kind"`
	Severity   string      `json:"severity"`
	SubjectIP  string      `json:"subject_ip"`
	SubjectMAC string      `json:"subject_mac,omitempty"`
	Evidence   string      `json:"evidence"`
	Message    string      `json:"message"`
}

// RuleSettings toggles a rule and sets the severity of its findings.
type RuleSettings struct {
	Enabled  bool
	Severity string
}

// Config holds configuration for the anomaly detector.
type Config struct {
	// MaxPackets is the configured capture limit. The DoS rule compares
	// per-IP counts against it, not against the actual batch size.
	MaxPackets     int
	DoSRatio       float64 // share of MaxPackets a single IP must exceed
	EvidenceLength int     // characters of payload kept as evidence
	TopN           int     // size of the port and IP rankings

	ARPSpoofing  RuleSettings
	SQLInjection RuleSettings
	DoS          RuleSettings
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxPackets:     10000,
		DoSRatio:       0.5,
		EvidenceLength: 50,
		TopN:           5,
		ARPSpoofing:    RuleSettings{Enabled: true, Severity: SeverityHigh},
		SQLInjection:   RuleSettings{Enabled: true, Severity: SeverityHigh},
		DoS:            RuleSettings{Enabled: true, Severity: SeverityCritical},
	}
}

// Rule is one detection heuristic. Evaluate sees every packet in batch order,
// Finish is called once after the last packet.
type Rule interface {
	Name() string
	IsEnabled() bool
	Evaluate(pkt models.PacketData) *Finding
	Finish() []Finding
	Reset()
}

// AnomalyDetector runs the registered rules over a packet batch.
type AnomalyDetector struct {
	rules  []Rule
	logger *logrus.Entry
}

// NewAnomalyDetector creates a detector with the builtin rules registered
// in their evaluation order: ARP spoofing, SQL injection, DoS.
func NewAnomalyDetector(cfg Config, logger *logrus.Logger) *AnomalyDetector {
	if logger == nil {
		logger = logging.Discard()
	}
	ad := &AnomalyDetector{
		logger: logger.WithField("component", "detector"),
	}
	ad.RegisterRule(NewARPSpoofingRule(cfg.ARPSpoofing))
	ad.RegisterRule(NewSQLInjectionRule(cfg.SQLInjection, cfg.EvidenceLength))
	ad.RegisterRule(NewDoSRule(cfg.DoS, cfg.MaxPackets, cfg.DoSRatio))
	return ad
}

// RegisterRule appends a rule to the evaluation order.
func (ad *AnomalyDetector) RegisterRule(rule Rule) {
	ad.rules = append(ad.rules, rule)
	ad.logger.Debugf("Registered rule: %s (enabled: %t)", rule.Name(), rule.IsEnabled())
}

// Rules returns the registered rules.
func (ad *AnomalyDetector) Rules() []Rule {
	out := make([]Rule, len(ad.rules))
	copy(out, ad.rules)
	return out
}

// Detect scans the batch and returns the findings: per-packet findings in
// packet order first, then end-of-batch findings. Rule state is reset before
// the scan, so the same batch always yields the same findings.
func (ad *AnomalyDetector) Detect(batch []models.PacketData) []Finding {
	findings := make([]Finding, 0)

	for _, rule := range ad.rules {
		rule.Reset()
	}

	for _, pkt := range batch {
		for _, rule := range ad.rules {
			if !rule.IsEnabled() {
				continue
			}
			if f := rule.Evaluate(pkt); f != nil {
				ad.logger.Debugf("[%s] %s", rule.Name(), f.Message)
				findings = append(findings, *f)
			}
		}
	}

	for _, rule := range ad.rules {
		if !rule.IsEnabled() {
			continue
		}
		findings = append(findings, rule.Finish()...)
	}

	return findings
}

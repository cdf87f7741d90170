package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gonetids/internal/analysis"
	"gonetids/internal/capture"

	"gopkg.in/yaml.v3"
)

// Rule names understood by the detector.
const (
	RuleARPSpoofing  = "arp_spoofing"
	RuleSQLInjection = "sql_injection"
	RuleDoSSuspect   = "dos_suspect"
)

// Config is the full application configuration.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Rules    []RuleConfig   `yaml:"rules"`
	Report   ReportConfig   `yaml:"report"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type CaptureConfig struct {
	Interface  string        `yaml:"interface"`
	MaxPackets int           `yaml:"max_packets"`
	Timeout    time.Duration `yaml:"timeout"`
	SnapLen    int           `yaml:"snaplen"`
	Promisc    bool          `yaml:"promisc"`
	BPFFilter  string        `yaml:"bpf_filter"`
	PcapFile   string        `yaml:"pcap_file"`
}

type AnalysisConfig struct {
	ProtocolFilter string `yaml:"protocol_filter"`
	TopN           int    `yaml:"top_n"`
}

// RuleConfig enables a detection rule and tunes it. An entry that omits
// enabled keeps the rule on.
type RuleConfig struct {
	Name        string                 `yaml:"name"`
	Enabled     *bool                  `yaml:"enabled"`
	Severity    string                 `yaml:"severity"`
	Description string                 `yaml:"description,omitempty"`
	Thresholds  map[string]interface{} `yaml:"thresholds,omitempty"`
}

// IsEnabled reports whether the rule runs.
func (r RuleConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

func enabled(v bool) *bool {
	return &v
}

type ReportConfig struct {
	Title       string `yaml:"title"`
	Path        string `yaml:"path"`
	ChartPNG    string `yaml:"chart_png"`
	ChartSVG    string `yaml:"chart_svg"`
	SummaryJSON string `yaml:"summary_json"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Textfile   string `yaml:"textfile"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			MaxPackets: 10000,
			Timeout:    60 * time.Second,
			SnapLen:    65536,
			Promisc:    true,
		},
		Analysis: AnalysisConfig{
			ProtocolFilter: "tcp",
			TopN:           5,
		},
		Rules: []RuleConfig{
			{
				Name:        RuleARPSpoofing,
				Enabled:     enabled(true),
				Severity:    analysis.SeverityHigh,
				Description: "IP announced with a MAC different from the first one seen",
			},
			{
				Name:        RuleSQLInjection,
				Enabled:     enabled(true),
				Severity:    analysis.SeverityHigh,
				Description: "Payload containing SQL injection markers",
				Thresholds:  map[string]interface{}{"evidence_length": 50},
			},
			{
				Name:        RuleDoSSuspect,
				Enabled:     enabled(true),
				Severity:    analysis.SeverityCritical,
				Description: "Single source above a share of the capture limit",
				Thresholds:  map[string]interface{}{"ratio": 0.5},
			},
		},
		Report: ReportConfig{
			Title:    "IDS/IPS Report",
			Path:     "report.pdf",
			ChartPNG: "protocol_distribution_graph.png",
			ChartSVG: "protocols_chart.svg",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}
	return nil
}

// Validate fills in defaults and rejects values that cannot work.
func (c *Config) Validate() error {
	if c.Capture.MaxPackets < 0 {
		return errors.New("capture.max_packets cannot be negative")
	}
	if c.Capture.Timeout < 0 {
		return errors.New("capture.timeout cannot be negative")
	}
	if c.Capture.SnapLen <= 0 {
		c.Capture.SnapLen = 65536
	}

	if c.Analysis.TopN <= 0 {
		c.Analysis.TopN = 5
	}

	if err := c.validateRules(); err != nil {
		return err
	}

	if c.Report.Title == "" {
		c.Report.Title = "IDS/IPS Report"
	}
	if c.Report.Path == "" {
		c.Report.Path = "report.pdf"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}

	return nil
}

func (c *Config) validateRules() error {
	seen := make(map[string]bool)
	for i := range c.Rules {
		rule := &c.Rules[i]
		switch rule.Name {
		case RuleARPSpoofing, RuleSQLInjection, RuleDoSSuspect:
		default:
			return fmt.Errorf("unknown rule %q", rule.Name)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %q configured twice", rule.Name)
		}
		seen[rule.Name] = true

		if rule.Enabled == nil {
			rule.Enabled = enabled(true)
		}
		if rule.Severity == "" {
			rule.Severity = analysis.SeverityMedium
		}
		rule.Severity = strings.ToUpper(rule.Severity)
	}

	// Rules left out of the file keep their defaults.
	for _, def := range Default().Rules {
		if !seen[def.Name] {
			c.Rules = append(c.Rules, def)
		}
	}

	if ratio, ok := c.threshold(RuleDoSSuspect, "ratio"); ok && (ratio <= 0 || ratio > 1) {
		return fmt.Errorf("rule %s: ratio must be in (0, 1], got %v", RuleDoSSuspect, ratio)
	}
	return nil
}

// Rule returns the configuration of a rule by name.
func (c *Config) Rule(name string) (RuleConfig, bool) {
	for _, r := range c.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return RuleConfig{}, false
}

// threshold reads a numeric threshold, accepting YAML ints and floats.
func (c *Config) threshold(rule, key string) (float64, bool) {
	r, ok := c.Rule(rule)
	if !ok || r.Thresholds == nil {
		return 0, false
	}
	switch v := r.Thresholds[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (c *Config) ruleSettings(name string) analysis.RuleSettings {
	r, ok := c.Rule(name)
	if !ok {
		return analysis.RuleSettings{}
	}
	return analysis.RuleSettings{Enabled: r.IsEnabled(), Severity: r.Severity}
}

// AnalysisConfig converts the file layout into detector settings.
func (c *Config) AnalysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.MaxPackets = c.Capture.MaxPackets
	cfg.TopN = c.Analysis.TopN
	cfg.ARPSpoofing = c.ruleSettings(RuleARPSpoofing)
	cfg.SQLInjection = c.ruleSettings(RuleSQLInjection)
	cfg.DoS = c.ruleSettings(RuleDoSSuspect)

	if ratio, ok := c.threshold(RuleDoSSuspect, "ratio"); ok {
		cfg.DoSRatio = ratio
	}
	if n, ok := c.threshold(RuleSQLInjection, "evidence_length"); ok && n > 0 {
		cfg.EvidenceLength = int(n)
	}
	return cfg
}

// CaptureOptions converts the capture section into collector options.
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{
		MaxPackets: c.Capture.MaxPackets,
		Timeout:    c.Capture.Timeout,
		SnapLen:    c.Capture.SnapLen,
		Promisc:    c.Capture.Promisc,
		BPFFilter:  c.Capture.BPFFilter,
	}
}

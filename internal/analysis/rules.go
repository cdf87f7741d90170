package analysis

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"gonetids/internal/models"

	"github.com/cloudflare/ahocorasick"
)

const unknownIP = "unknown"

// ARPSpoofingRule flags an IP announced with a hardware address that differs
// from the first one seen for it. Only the first binding is kept as reference.
type ARPSpoofingRule struct {
	settings RuleSettings
	bindings map[string]string // sender IP -> first MAC
}

func NewARPSpoofingRule(settings RuleSettings) *ARPSpoofingRule {
	return &ARPSpoofingRule{
		settings: settings,
		bindings: make(map[string]string),
	}
}

func (r *ARPSpoofingRule) Name() string    { return "arp_spoofing" }
func (r *ARPSpoofingRule) IsEnabled() bool { return r.settings.Enabled }
func (r *ARPSpoofingRule) Finish() []Finding {
	return nil
}

func (r *ARPSpoofingRule) Reset() {
	r.bindings = make(map[string]string)
}

func (r *ARPSpoofingRule) Evaluate(pkt models.PacketData) *Finding {
	if pkt.ARP == nil {
		return nil
	}

	ip := pkt.ARP.SenderIP
	mac := normalizeMAC(pkt.ARP.SenderMAC)

	known, seen := r.bindings[ip]
	if !seen {
		r.bindings[ip] = mac
		return nil
	}
	if known == mac {
		return nil
	}

	return &Finding{
		Kind:       FindingARPSpoofing,
		Severity:   r.settings.Severity,
		SubjectIP:  ip,
		SubjectMAC: mac,
		Evidence:   fmt.Sprintf("first bound to %s, now announced by %s", known, mac),
		Message:    fmt.Sprintf("ARP conflict: %s was seen with several MAC addresses (possible spoofing)", ip),
	}
}

// normalizeMAC renders hardware addresses in lowercase colon form so that
// "AA:BB:.." and "aa-bb-.." compare equal.
func normalizeMAC(mac string) string {
	if hw, err := net.ParseMAC(mac); err == nil {
		return hw.String()
	}
	return strings.ToLower(mac)
}

// unicodeSpace widens RE2's ASCII \s to every Unicode whitespace rune,
// including vertical tab, the information separators and NEL.
const unicodeSpace = `[\t\n\v\f\r \x1c-\x1f\x85\p{Z}]`

var (
	// Literal fragments every suspicious pattern contains. Payloads without
	// any of them skip the regular expression.
	sqlKeywords = []string{"select", "drop", "--", "'"}
	sqlPattern  = regexp.MustCompile(strings.NewReplacer(`\s`, unicodeSpace).Replace(
		`select\s.+\sfrom|union\s+select|drop\s+table|--|'`))
)

// SQLInjectionRule flags payloads that look like SQL injection attempts.
// It is a substring test, so stray quotes or dashes also match.
type SQLInjectionRule struct {
	settings       RuleSettings
	evidenceLength int
	keywords       *ahocorasick.Matcher
}

func NewSQLInjectionRule(settings RuleSettings, evidenceLength int) *SQLInjectionRule {
	if evidenceLength <= 0 {
		evidenceLength = 50
	}
	return &SQLInjectionRule{
		settings:       settings,
		evidenceLength: evidenceLength,
		keywords:       ahocorasick.NewStringMatcher(sqlKeywords),
	}
}

func (r *SQLInjectionRule) Name() string      { return "sql_injection" }
func (r *SQLInjectionRule) IsEnabled() bool   { return r.settings.Enabled }
func (r *SQLInjectionRule) Finish() []Finding { return nil }
func (r *SQLInjectionRule) Reset()            {}

func (r *SQLInjectionRule) Evaluate(pkt models.PacketData) *Finding {
	if pkt.Payload == nil {
		return nil
	}

	text := DecodePayload(pkt.Payload)
	if !r.Suspicious(text) {
		return nil
	}

	ip := unknownIP
	if pkt.Network != nil {
		ip = pkt.Network.SrcIP
	}
	excerpt := truncate(text, r.evidenceLength)

	return &Finding{
		Kind:       FindingSQLInjection,
		Severity:   r.settings.Severity,
		SubjectIP:  ip,
		SubjectMAC: pkt.EthSrc,
		Evidence:   excerpt,
		Message:    fmt.Sprintf("Suspicious payload detected: %s", excerpt),
	}
}

// Suspicious reports whether already decoded, lowercased text matches one
// of the injection patterns.
func (r *SQLInjectionRule) Suspicious(text string) bool {
	if len(r.keywords.MatchThreadSafe([]byte(text))) == 0 {
		return false
	}
	return sqlPattern.MatchString(text)
}

// DecodePayload turns raw bytes into lowercase text, dropping invalid UTF-8.
func DecodePayload(payload []byte) string {
	return strings.ToLower(strings.ToValidUTF8(string(payload), ""))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// DoSRule counts packets per source IP and, once the batch is done, flags
// every IP above ratio * maxPackets.
type DoSRule struct {
	settings   RuleSettings
	maxPackets int
	ratio      float64
	hits       *counter[string]
}

func NewDoSRule(settings RuleSettings, maxPackets int, ratio float64) *DoSRule {
	if ratio <= 0 {
		ratio = 0.5
	}
	return &DoSRule{
		settings:   settings,
		maxPackets: maxPackets,
		ratio:      ratio,
		hits:       newCounter[string](),
	}
}

func (r *DoSRule) Name() string { return "dos_suspect" }

// IsEnabled is false when no capture limit is configured: the threshold is
// defined relative to it.
func (r *DoSRule) IsEnabled() bool { return r.settings.Enabled && r.maxPackets > 0 }

func (r *DoSRule) Reset() {
	r.hits = newCounter[string]()
}

func (r *DoSRule) Evaluate(pkt models.PacketData) *Finding {
	if pkt.Network != nil {
		r.hits.inc(pkt.Network.SrcIP)
	}
	return nil
}

func (r *DoSRule) Finish() []Finding {
	threshold := float64(r.maxPackets) * r.ratio

	var findings []Finding
	for _, e := range r.hits.entries() {
		if float64(e.Count) <= threshold {
			continue
		}
		percent := 100 * e.Count / r.maxPackets
		findings = append(findings, Finding{
			Kind:      FindingDoSSuspect,
			Severity:  r.settings.Severity,
			SubjectIP: e.Key,
			Evidence:  fmt.Sprintf("%d packets (%d%% of %d)", e.Count, percent, r.maxPackets),
			Message:   fmt.Sprintf("IP %s generated %d packets (%d%%)", e.Key, e.Count, percent),
		})
	}
	return findings
}

package analysis

import (
	"fmt"
	"strings"

	"gonetids/internal/models"
)

// Label is the protocol a packet was classified as.
type Label string

const (
	LabelARP   Label = "ARP"
	LabelHTTP  Label = "HTTP"
	LabelHTTPS Label = "HTTPS"
	LabelFTP   Label = "FTP"
	LabelSSH   Label = "SSH"
	LabelMySQL Label = "MySQL"
	LabelTCP   Label = "TCP"
	LabelUDP   Label = "UDP"
	LabelDNS   Label = "DNS"
	LabelOther Label = "OTHER"
)

// tcpServices maps well-known TCP destination ports to their label.
var tcpServices = map[uint16]Label{
	80:   LabelHTTP,
	443:  LabelHTTPS,
	21:   LabelFTP,
	22:   LabelSSH,
	3306: LabelMySQL,
}

const dnsPort = 53

// IPLabel returns the label used for IP packets carrying neither TCP nor UDP.
func IPLabel(protocol uint8) Label {
	return Label(fmt.Sprintf("IP(%d)", protocol))
}

// Classify returns the protocol label of a packet. The first matching rule wins:
// ARP, then IP with TCP/UDP port lookups, then bare IP, then OTHER.
func Classify(pkt models.PacketData) Label {
	if pkt.ARP != nil {
		return LabelARP
	}
	if pkt.Network == nil {
		return LabelOther
	}

	switch {
	case pkt.HasTCP():
		if label, ok := tcpServices[pkt.Transport.DstPort]; ok {
			return label
		}
		return LabelTCP
	case pkt.HasUDP():
		if pkt.Transport.DstPort == dnsPort {
			return LabelDNS
		}
		return LabelUDP
	}
	return IPLabel(pkt.Network.Protocol)
}

// Matches reports whether the label equals name, ignoring case.
func (l Label) Matches(name string) bool {
	return strings.EqualFold(string(l), name)
}

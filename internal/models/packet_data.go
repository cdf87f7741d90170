package models

import "time"

// TransportProtocol identifies which transport header a packet carried.
type TransportProtocol string

const (
	TransportTCP TransportProtocol = "TCP"
	TransportUDP TransportProtocol = "UDP"
)

// ARPInfo holds the sender side of an address-resolution frame.
type ARPInfo struct {
	SenderIP  string
	SenderMAC string
}

// NetworkInfo holds the IPv4 header fields used by the analysis.
type NetworkInfo struct {
	SrcIP    string
	DstIP    string
	Protocol uint8 // IPv4 protocol number
}

// TransportInfo holds the ports of a TCP or UDP header.
type TransportInfo struct {
	Protocol TransportProtocol
	SrcPort  uint16
	DstPort  uint16
}

// PacketData holds the extracted information from a network packet.
// Every layer is optional: a nil pointer means the packet did not carry it.
type PacketData struct {
	Timestamp time.Time
	Length    int

	// Link layer
	EthSrc string
	EthDst string

	ARP       *ARPInfo
	Network   *NetworkInfo
	Transport *TransportInfo

	// Raw application payload, nil when the packet had none.
	Payload []byte
}

// HasTCP reports whether the packet carried a TCP header.
func (p PacketData) HasTCP() bool {
	return p.Transport != nil && p.Transport.Protocol == TransportTCP
}

// HasUDP reports whether the packet carried a UDP header.
func (p PacketData) HasUDP() bool {
	return p.Transport != nil && p.Transport.Protocol == TransportUDP
}

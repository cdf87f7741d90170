package capture

import (
	"net"

	"gonetids/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Decode flattens a gopacket packet into the layers the analysis looks at.
func Decode(packet gopacket.Packet) models.PacketData {
	pkt := models.PacketData{
		Length: len(packet.Data()),
	}
	if md := packet.Metadata(); md != nil {
		pkt.Timestamp = md.Timestamp
		if md.Length > 0 {
			pkt.Length = md.Length
		}
	}

	if eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		pkt.EthSrc = eth.SrcMAC.String()
		pkt.EthDst = eth.DstMAC.String()
	}

	if arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		pkt.ARP = &models.ARPInfo{
			SenderIP:  net.IP(arp.SourceProtAddress).String(),
			SenderMAC: net.HardwareAddr(arp.SourceHwAddress).String(),
		}
	}

	// Only IPv4 counts as the network layer; IPv6 traffic is labeled OTHER.
	if ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		pkt.Network = &models.NetworkInfo{
			SrcIP:    ip.SrcIP.String(),
			DstIP:    ip.DstIP.String(),
			Protocol: uint8(ip.Protocol),
		}
	}

	switch t := packet.TransportLayer().(type) {
	case *layers.TCP:
		pkt.Transport = &models.TransportInfo{
			Protocol: models.TransportTCP,
			SrcPort:  uint16(t.SrcPort),
			DstPort:  uint16(t.DstPort),
		}
	case *layers.UDP:
		pkt.Transport = &models.TransportInfo{
			Protocol: models.TransportUDP,
			SrcPort:  uint16(t.SrcPort),
			DstPort:  uint16(t.DstPort),
		}
	}

	pkt.Payload = rawPayload(packet)
	return pkt
}

// rawPayload returns the undecoded application bytes. TLS records count as
// raw payload; DNS and other parsed application protocols do not. Bytes after
// an ARP message are Ethernet padding.
func rawPayload(packet gopacket.Packet) []byte {
	if packet.Layer(layers.LayerTypeARP) != nil {
		return nil
	}
	if layer := packet.Layer(gopacket.LayerTypePayload); layer != nil {
		return layer.LayerContents()
	}
	if tls, ok := packet.Layer(layers.LayerTypeTLS).(*layers.TLS); ok {
		return tls.LayerContents()
	}
	return nil
}

package capture

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonetids/internal/analysis"
	"gonetids/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	hostMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	peerMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func arpFrame(t *testing.T, senderIP string, senderMAC net.HardwareAddr) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       senderMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(senderMAC),
		SourceProtAddress: []byte(net.ParseIP(senderIP).To4()),
		DstHwAddress:      []byte(hostMAC),
		DstProtAddress:    []byte(net.ParseIP("192.168.1.1").To4()),
	}
	return serialize(t, eth, arp)
}

func tcpFrame(t *testing.T, src string, dport uint16, payload string) []byte {
	eth := &layers.Ethernet{SrcMAC: peerMAC, DstMAC: hostMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP("10.0.0.254").To4(),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(dport), PSH: true, ACK: true, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum setup: %v", err)
	}
	if payload == "" {
		return serialize(t, eth, ip, tcp)
	}
	return serialize(t, eth, ip, tcp, gopacket.Payload([]byte(payload)))
}

func dnsFrame(t *testing.T, src string) []byte {
	eth := &layers.Ethernet{SrcMAC: peerMAC, DstMAC: hostMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP("8.8.8.8").To4(),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum setup: %v", err)
	}
	dns := &layers.DNS{
		ID:      1,
		RD:      true,
		QDCount: 1,
		Questions: []layers.DNSQuestion{
			{Name: []byte("example.com"), Type: layers.DNSTypeA, Class: layers.DNSClassIN},
		},
	}
	return serialize(t, eth, ip, udp, dns)
}

func icmpFrame(t *testing.T, src string) []byte {
	eth := &layers.Ethernet{SrcMAC: peerMAC, DstMAC: hostMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP("10.0.0.254").To4(),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	return serialize(t, eth, ip, icmp)
}

func tcp6Frame(t *testing.T, src string, dport uint16, payload string) []byte {
	eth := &layers.Ethernet{SrcMAC: peerMAC, DstMAC: hostMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP("fe80::2"),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(dport), PSH: true, ACK: true, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum setup: %v", err)
	}
	return serialize(t, eth, ip, tcp, gopacket.Payload([]byte(payload)))
}

func toPacket(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
}

func TestDecodeARP(t *testing.T) {
	pkt := Decode(toPacket(arpFrame(t, "192.168.1.5", peerMAC)))

	if pkt.ARP == nil {
		t.Fatal("expected ARP layer")
	}
	if pkt.ARP.SenderIP != "192.168.1.5" || pkt.ARP.SenderMAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("unexpected ARP info: %+v", pkt.ARP)
	}
	if pkt.Network != nil || pkt.Transport != nil {
		t.Errorf("ARP frame must not carry IP or transport info: %+v", pkt)
	}
	if pkt.EthDst != "ff:ff:ff:ff:ff:ff" {
		t.Errorf("EthDst = %s", pkt.EthDst)
	}
}

func TestDecodeARPIgnoresPadding(t *testing.T) {
	frame := arpFrame(t, "192.168.1.5", peerMAC)
	if len(frame) != 60 {
		t.Fatalf("expected a padded 60-byte frame, got %d bytes", len(frame))
	}

	pkt := Decode(toPacket(frame))
	if pkt.Payload != nil {
		t.Errorf("padding after the ARP message must not be payload: %v", pkt.Payload)
	}
}

func TestDecodeIPv6IsNotNetworkLayer(t *testing.T) {
	pkt := Decode(toPacket(tcp6Frame(t, "fe80::1", 80, "id=1' OR 1=1--")))

	if pkt.Network != nil {
		t.Fatalf("IPv6 must not fill the network layer: %+v", pkt.Network)
	}
	if !pkt.HasTCP() || pkt.Transport.DstPort != 80 {
		t.Fatalf("unexpected transport info: %+v", pkt.Transport)
	}
	if label := analysis.Classify(pkt); label != analysis.LabelOther {
		t.Errorf("label = %s, want OTHER", label)
	}

	session := analysis.NewSession(analysis.DefaultConfig(), []models.PacketData{pkt}, nil)
	session.Analyze()
	summary := session.Summary()
	if len(summary.TopIPs) != 0 {
		t.Errorf("IPv6 source must not be counted: %+v", summary.TopIPs)
	}
	sqli := summary.FindingsOf(analysis.FindingSQLInjection)
	if len(sqli) != 1 || sqli[0].SubjectIP != "unknown" {
		t.Errorf("expected one SQL injection finding on an unknown source, got %+v", sqli)
	}
}

func TestDecodeTCPWithPayload(t *testing.T) {
	pkt := Decode(toPacket(tcpFrame(t, "10.0.0.1", 80, "GET /?id=1 OR 1=1-- HTTP/1.1\r\n\r\n")))

	if pkt.Network == nil || pkt.Network.SrcIP != "10.0.0.1" || pkt.Network.Protocol != 6 {
		t.Fatalf("unexpected network info: %+v", pkt.Network)
	}
	if !pkt.HasTCP() || pkt.Transport.SrcPort != 40000 || pkt.Transport.DstPort != 80 {
		t.Fatalf("unexpected transport info: %+v", pkt.Transport)
	}
	if !strings.HasPrefix(string(pkt.Payload), "GET /?id=1") {
		t.Errorf("payload = %q", pkt.Payload)
	}
	if pkt.EthSrc != peerMAC.String() {
		t.Errorf("EthSrc = %s", pkt.EthSrc)
	}
	if pkt.Length == 0 {
		t.Error("expected frame length")
	}
}

func TestDecodeDNSHasNoRawPayload(t *testing.T) {
	pkt := Decode(toPacket(dnsFrame(t, "10.0.0.3")))

	if !pkt.HasUDP() || pkt.Transport.DstPort != 53 {
		t.Fatalf("unexpected transport info: %+v", pkt.Transport)
	}
	if pkt.Payload != nil {
		t.Errorf("decoded DNS must not be reported as raw payload: %q", pkt.Payload)
	}
}

func TestDecodeICMP(t *testing.T) {
	pkt := Decode(toPacket(icmpFrame(t, "10.0.0.4")))

	if pkt.Network == nil || pkt.Network.Protocol != 1 {
		t.Fatalf("unexpected network info: %+v", pkt.Network)
	}
	if pkt.Transport != nil {
		t.Errorf("ICMP has no ports: %+v", pkt.Transport)
	}
}

func feed(packets ...gopacket.Packet) chan gopacket.Packet {
	ch := make(chan gopacket.Packet, len(packets))
	for _, p := range packets {
		ch <- p
	}
	return ch
}

func TestGatherStopsAtCount(t *testing.T) {
	ch := feed(
		toPacket(tcpFrame(t, "10.0.0.1", 80, "")),
		toPacket(tcpFrame(t, "10.0.0.2", 443, "")),
		toPacket(tcpFrame(t, "10.0.0.3", 22, "")),
	)

	batch, err := gather(context.Background(), ch, Options{MaxPackets: 2, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(batch))
	}
	if batch[0].Network.SrcIP != "10.0.0.1" || batch[1].Network.SrcIP != "10.0.0.2" {
		t.Errorf("packets out of arrival order: %s, %s", batch[0].Network.SrcIP, batch[1].Network.SrcIP)
	}
}

func TestGatherStopsAtTimeout(t *testing.T) {
	ch := feed(toPacket(tcpFrame(t, "10.0.0.1", 80, "")))

	start := time.Now()
	batch, err := gather(context.Background(), ch, Options{MaxPackets: 100, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("expected 1 packet, got %d", len(batch))
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the capture")
	}
}

func TestGatherStopsWhenSourceCloses(t *testing.T) {
	ch := feed(toPacket(dnsFrame(t, "10.0.0.3")))
	close(ch)

	batch, err := gather(context.Background(), ch, Options{})
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("expected 1 packet, got %d", len(batch))
	}
}

func TestGatherReportsEachPacket(t *testing.T) {
	ch := feed(
		toPacket(tcpFrame(t, "10.0.0.1", 80, "")),
		toPacket(dnsFrame(t, "10.0.0.2")),
	)
	close(ch)

	var seen []string
	opts := Options{OnPacket: func(pkt models.PacketData) {
		seen = append(seen, pkt.Network.SrcIP)
	}}
	if _, err := gather(context.Background(), ch, opts); err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "10.0.0.1" || seen[1] != "10.0.0.2" {
		t.Errorf("OnPacket saw %v", seen)
	}
}

func TestGatherCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := gather(ctx, make(chan gopacket.Packet), Options{MaxPackets: 10, Timeout: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(batch) != 0 {
		t.Errorf("expected empty batch, got %d", len(batch))
	}
}

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write header: %v", err)
	}
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := w.WritePacket(ci, frame); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

func TestCollectOffline(t *testing.T) {
	path := writePcap(t,
		arpFrame(t, "192.168.1.5", hostMAC),
		arpFrame(t, "192.168.1.5", peerMAC),
		tcpFrame(t, "10.0.0.1", 80, "' or 1=1"),
	)

	batch, err := CollectOffline(context.Background(), path, Options{MaxPackets: 10, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("CollectOffline failed: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(batch))
	}
	if batch[0].Timestamp.IsZero() {
		t.Error("expected capture timestamps")
	}

	arpOnly, err := CollectOffline(context.Background(), path, Options{BPFFilter: "arp"})
	if err != nil {
		t.Fatalf("CollectOffline with filter failed: %v", err)
	}
	if len(arpOnly) != 2 {
		t.Errorf("expected 2 ARP packets, got %d", len(arpOnly))
	}
}

func TestCollectOfflineMissingFile(t *testing.T) {
	_, err := CollectOffline(context.Background(), filepath.Join(t.TempDir(), "missing.pcap"), Options{})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestCollectUnknownInterface(t *testing.T) {
	_, err := Collect(context.Background(), "does-not-exist0", Options{MaxPackets: 1, Timeout: time.Second})
	if err == nil {
		t.Fatal("expected an error for an unknown interface")
	}
}

func TestSelectInterface(t *testing.T) {
	devices := []Device{{Name: "eth0"}, {Name: "wlan0"}, {Name: "lo"}}

	tests := []struct {
		choice string
		want   string
		ok     bool
	}{
		{"", "eth0", true},
		{"1", "wlan0", true},
		{" 2 ", "lo", true},
		{"lo", "lo", true},
		{"7", "eth0", false},
		{"-1", "eth0", false},
		{"bogus", "eth0", false},
	}

	for _, tt := range tests {
		dev, ok, err := SelectInterface(devices, tt.choice)
		if err != nil {
			t.Fatalf("SelectInterface(%q) error: %v", tt.choice, err)
		}
		if dev.Name != tt.want || ok != tt.ok {
			t.Errorf("SelectInterface(%q) = %s, %t; want %s, %t", tt.choice, dev.Name, ok, tt.want, tt.ok)
		}
	}

	if _, _, err := SelectInterface(nil, "0"); !errors.Is(err, ErrNoInterfaces) {
		t.Errorf("expected ErrNoInterfaces, got %v", err)
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	PrintDevices(&buf, []Device{{Name: "eth0", IPv4: "192.168.1.10"}, {Name: "lo", IPv4: "127.0.0.1"}})

	out := buf.String()
	for _, want := range []string{"NAME", "eth0", "192.168.1.10", "lo"} {
		if !strings.Contains(out, want) {
			t.Errorf("device table missing %q:\n%s", want, out)
		}
	}
}

func TestChooseInterfaceListsDevicesFirst(t *testing.T) {
	devices := []Device{{Name: "eth0", IPv4: "192.168.1.10"}, {Name: "wlan0", IPv4: "10.0.0.7"}}

	var buf bytes.Buffer
	dev, ok, err := ChooseInterface(&buf, devices, "9")
	if err != nil {
		t.Fatalf("ChooseInterface: %v", err)
	}
	if ok || dev.Name != "eth0" {
		t.Errorf("invalid choice = %s, %t; want eth0, false", dev.Name, ok)
	}
	for _, want := range []string{"eth0", "wlan0", "10.0.0.7"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("listing missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	dev, ok, err = ChooseInterface(&buf, devices, "1")
	if err != nil || !ok || dev.Name != "wlan0" {
		t.Errorf("choice 1 = %s, %t, %v; want wlan0", dev.Name, ok, err)
	}
	if buf.Len() == 0 {
		t.Error("device list not printed for a valid choice")
	}

	buf.Reset()
	if _, _, err := ChooseInterface(&buf, nil, ""); !errors.Is(err, ErrNoInterfaces) {
		t.Errorf("expected ErrNoInterfaces, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be printed without devices, got %q", buf.String())
	}
}

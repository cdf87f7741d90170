package capture

import (
	"context"
	"fmt"
	"time"

	"gonetids/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// readTimeout is how long a single pcap read may block before the handle
// returns control, so the collector can notice its deadline.
const readTimeout = time.Second

// Options controls a capture run.
type Options struct {
	// MaxPackets stops the capture once that many packets were received.
	// Zero or negative means no count limit.
	MaxPackets int
	// Timeout stops the capture after that wall-clock duration.
	// Zero or negative means no time limit.
	Timeout time.Duration
	// SnapLen is the per-packet capture length. Defaults to 65536.
	SnapLen int
	// Promisc opens the interface in promiscuous mode.
	Promisc bool
	// BPFFilter is an optional kernel filter expression, e.g. "not port 22".
	BPFFilter string
	// OnPacket, when set, sees every decoded packet as it arrives.
	OnPacket func(models.PacketData)
}

func (o Options) withDefaults() Options {
	if o.SnapLen <= 0 {
		o.SnapLen = 65536
	}
	return o
}

// Collect captures from a live interface until MaxPackets packets arrived or
// Timeout elapsed, and returns them in arrival order. Errors opening or
// configuring the interface are returned as is; nothing is retried.
// If ctx is canceled the packets gathered so far are returned with ctx.Err().
func Collect(ctx context.Context, device string, opts Options) ([]models.PacketData, error) {
	opts = opts.withDefaults()

	inactive, err := pcap.NewInactiveHandle(device)
	if err != nil {
		return nil, fmt.Errorf("could not create handle for %s: %w", device, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, fmt.Errorf("could not set snap length: %w", err)
	}
	if err := inactive.SetPromisc(opts.Promisc); err != nil {
		return nil, fmt.Errorf("could not set promisc mode: %w", err)
	}
	if err := inactive.SetTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("could not set read timeout: %w", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("could not activate %s: %w", device, err)
	}
	defer handle.Close()

	return readHandle(ctx, handle, opts)
}

// CollectOffline replays a pcap file through the same limits as Collect.
// The end of the file ends the capture.
func CollectOffline(ctx context.Context, path string, opts Options) ([]models.PacketData, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer handle.Close()

	return readHandle(ctx, handle, opts.withDefaults())
}

func readHandle(ctx context.Context, handle *pcap.Handle, opts Options) ([]models.PacketData, error) {
	if opts.BPFFilter != "" {
		if err := handle.SetBPFFilter(opts.BPFFilter); err != nil {
			return nil, fmt.Errorf("could not set BPF filter %q: %w", opts.BPFFilter, err)
		}
	}

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	return gather(ctx, src.Packets(), opts)
}

// gather drains in until MaxPackets packets were read, the timeout fired, the
// channel closed or ctx was canceled.
func gather(ctx context.Context, in <-chan gopacket.Packet, opts Options) ([]models.PacketData, error) {
	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	batch := make([]models.PacketData, 0)
	for opts.MaxPackets <= 0 || len(batch) < opts.MaxPackets {
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		case <-deadline:
			return batch, nil
		case packet, ok := <-in:
			if !ok {
				return batch, nil
			}
			pkt := Decode(packet)
			if opts.OnPacket != nil {
				opts.OnPacket(pkt)
			}
			batch = append(batch, pkt)
		}
	}
	return batch, nil
}

package capture

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/gopacket/pcap"
	"github.com/olekukonko/tablewriter"
)

// ErrNoInterfaces is returned when the system exposes no capture device.
var ErrNoInterfaces = errors.New("no capture interface available")

// Device is a capture interface as listed to the user.
type Device struct {
	Name        string
	Description string
	IPv4        string
	IPv6        string
}

// ListInterfaces returns the capture devices known to libpcap.
func ListInterfaces() ([]Device, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("could not list interfaces: %w", err)
	}
	return toDevices(devs), nil
}

func toDevices(devs []pcap.Interface) []Device {
	out := make([]Device, 0, len(devs))
	for _, dev := range devs {
		d := Device{Name: dev.Name, Description: dev.Description}
		for _, addr := range dev.Addresses {
			if addr.IP == nil {
				continue
			}
			if addr.IP.To4() != nil {
				if d.IPv4 == "" {
					d.IPv4 = addr.IP.String()
				}
			} else if d.IPv6 == "" {
				d.IPv6 = addr.IP.String()
			}
		}
		out = append(out, d)
	}
	return out
}

// SelectInterface resolves a user choice against the device list. The choice
// may be an index or a device name; an empty choice picks the first device.
// An unusable choice also falls back to the first device and reports ok=false.
func SelectInterface(devices []Device, choice string) (dev Device, ok bool, err error) {
	if len(devices) == 0 {
		return Device{}, false, ErrNoInterfaces
	}

	choice = strings.TrimSpace(choice)
	if choice == "" {
		return devices[0], true, nil
	}
	if idx, err := strconv.Atoi(choice); err == nil {
		if idx >= 0 && idx < len(devices) {
			return devices[idx], true, nil
		}
		return devices[0], false, nil
	}
	for _, d := range devices {
		if d.Name == choice {
			return d, true, nil
		}
	}
	return devices[0], false, nil
}

// PrintDevices renders the device list as an indexed table.
func PrintDevices(w io.Writer, devices []Device) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Name", "IPv4", "IPv6", "Description"})

	for i, dev := range devices {
		table.Append([]string{strconv.Itoa(i), dev.Name, dev.IPv4, dev.IPv6, dev.Description})
	}

	table.Render()
}

// ChooseInterface prints the indexed device list to w, then resolves choice
// against it the way SelectInterface does.
func ChooseInterface(w io.Writer, devices []Device, choice string) (Device, bool, error) {
	if len(devices) == 0 {
		return Device{}, false, ErrNoInterfaces
	}
	PrintDevices(w, devices)
	return SelectInterface(devices, choice)
}

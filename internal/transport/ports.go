package transport

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"

	"meshmon/internal/domain"
)

// Known radio hardware over serial, keyed by USB (vendor, product) pair.
// Covers the UART bridges and native USB stacks the common boards ship with.
// Supporting a new board family means adding its pair here.
type vidPID struct {
	vid uint16
	pid uint16
}

var radioVIDPIDs = map[vidPID]struct{}{
	{0x10c4, 0xea60}: {}, // Silicon Labs CP210x
	{0x1a86, 0x7523}: {}, // WCH CH340/CH341
	{0x1a86, 0x55d4}: {}, // WCH CH9102
	{0x0403, 0x6001}: {}, // FTDI FT232R
	{0x0403, 0x6015}: {}, // FTDI FT230X/FT231X
	{0x303a, 0x1001}: {}, // Espressif USB Serial/JTAG (ESP32-S3/C3)
	{0x303a, 0x0002}: {}, // Espressif ESP32-S2 native CDC
	{0x239a, 0x8029}: {}, // Adafruit nRF52840 CDC (RAK4631, T-Echo)
}

// Paths that are practically never a radio, typically motherboard UARTs.
var ignoredPortPrefixes = []string{"/dev/ttyS"}

// Enumerator lists local serial ports and filters them down to known radio
// hardware. Listings are recomputed on every call and never cached.
type Enumerator struct {
	list func() ([]*enumerator.PortDetails, error)
}

func NewEnumerator() *Enumerator {
	return &Enumerator{list: enumerator.GetDetailedPortsList}
}

// ListPorts returns the filtered radio candidates in OS enumeration order.
func (e *Enumerator) ListPorts() ([]domain.UsbPortInfo, error) {
	details, err := e.list()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialBackendUnavailable, err)
	}

	ports := make([]domain.UsbPortInfo, 0, len(details))
	for _, detail := range details {
		if detail == nil {
			continue
		}
		info := portInfo(detail)
		if shouldIgnorePort(info.Device, info.Description) {
			continue
		}
		if info.VID == nil || info.PID == nil {
			continue
		}
		if _, ok := radioVIDPIDs[vidPID{*info.VID, *info.PID}]; !ok {
			continue
		}
		ports = append(ports, info)
	}

	return ports, nil
}

// FindPort resolves a configured port value to an enumerated candidate.
// "auto" or empty selects the first candidate, an explicit path must match
// one. A nil result with nil error means nothing matched.
func (e *Enumerator) FindPort(port string) (*domain.UsbPortInfo, error) {
	ports, err := e.ListPorts()
	if err != nil {
		return nil, err
	}

	desired := strings.TrimSpace(port)
	if desired == "" || strings.EqualFold(desired, domain.SerialPortAuto) {
		if len(ports) == 0 {
			return nil, nil
		}

		return &ports[0], nil
	}

	for i := range ports {
		if ports[i].Device == desired {
			return &ports[i], nil
		}
	}

	return nil, nil
}

func portInfo(detail *enumerator.PortDetails) domain.UsbPortInfo {
	return domain.UsbPortInfo{
		Device:       detail.Name,
		Description:  detail.Product,
		Product:      detail.Product,
		SerialNumber: detail.SerialNumber,
		VID:          parseUSBID(detail.VID),
		PID:          parseUSBID(detail.PID),
	}
}

func shouldIgnorePort(device, description string) bool {
	for _, prefix := range ignoredPortPrefixes {
		if strings.HasPrefix(device, prefix) {
			return true
		}
	}
	if description != "" && strings.Contains(strings.ToLower(description), "virtualbox") {
		return true
	}

	return false
}

func parseUSBID(raw string) *uint16 {
	raw = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return nil
	}
	id := uint16(v)

	return &id
}

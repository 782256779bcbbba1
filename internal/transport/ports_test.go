package transport

import (
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"

	"meshmon/internal/domain"
)

func fakeEnumerator(details []*enumerator.PortDetails, err error) *Enumerator {
	return &Enumerator{list: func() ([]*enumerator.PortDetails, error) {
		return details, err
	}}
}

func TestListPortsFiltering(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", VID: "10C4", PID: "EA60"},                                  // ignored prefix
		{Name: "/dev/ttyUSB0", Product: "VirtualBox Serial", VID: "10C4", PID: "EA60"},  // virtualization artifact
		{Name: "/dev/ttyUSB1", Product: "CP2102 USB to UART", VID: "10C4", PID: "EA60"}, // keep
		{Name: "/dev/ttyUSB2", Product: "Some Modem", VID: "1234", PID: "5678"},         // not allow-listed
		{Name: "/dev/ttyACM0", Product: "USB Serial"},                                  // no vid/pid
		{Name: "/dev/ttyACM1", Product: "T-Beam", VID: "1A86", PID: "55D4"},             // keep
	}

	ports, err := fakeEnumerator(details, nil).ListPorts()
	if err != nil {
		t.Fatalf("list ports: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("unexpected port count: got %d want 2 (%v)", len(ports), ports)
	}
	if ports[0].Device != "/dev/ttyUSB1" || ports[1].Device != "/dev/ttyACM1" {
		t.Fatalf("unexpected devices: %q %q", ports[0].Device, ports[1].Device)
	}
	if ports[0].VID == nil || *ports[0].VID != 0x10c4 {
		t.Fatalf("unexpected vid: %v", ports[0].VID)
	}
	if ports[1].PID == nil || *ports[1].PID != 0x55d4 {
		t.Fatalf("unexpected pid: %v", ports[1].PID)
	}
}

func TestListPortsBackendFailure(t *testing.T) {
	_, err := fakeEnumerator(nil, errors.New("udev unavailable")).ListPorts()
	if !errors.Is(err, domain.ErrSerialBackendUnavailable) {
		t.Fatalf("expected ErrSerialBackendUnavailable, got %v", err)
	}
}

func TestFindPortAuto(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", VID: "10C4", PID: "EA60"},
		{Name: "/dev/ttyUSB1", VID: "1A86", PID: "7523"},
	}
	enum := fakeEnumerator(details, nil)

	for _, spec := range []string{"", "auto", "AUTO"} {
		port, err := enum.FindPort(spec)
		if err != nil {
			t.Fatalf("find port %q: %v", spec, err)
		}
		if port == nil || port.Device != "/dev/ttyUSB0" {
			t.Fatalf("auto %q must pick first candidate, got %v", spec, port)
		}
	}
}

func TestFindPortAutoEmpty(t *testing.T) {
	port, err := fakeEnumerator(nil, nil).FindPort("auto")
	if err != nil {
		t.Fatalf("find port: %v", err)
	}
	if port != nil {
		t.Fatalf("expected absent port, got %v", port)
	}
}

func TestFindPortExplicit(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", VID: "10C4", PID: "EA60"},
		{Name: "/dev/ttyUSB1", VID: "1A86", PID: "7523"},
	}
	enum := fakeEnumerator(details, nil)

	port, err := enum.FindPort("/dev/ttyUSB1")
	if err != nil {
		t.Fatalf("find port: %v", err)
	}
	if port == nil || port.Device != "/dev/ttyUSB1" {
		t.Fatalf("unexpected match: %v", port)
	}

	missing, err := enum.FindPort("/dev/ttyXYZ")
	if err != nil {
		t.Fatalf("find port: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected absent for unmatched path, got %v", missing)
	}
}

func TestParseUSBID(t *testing.T) {
	tests := []struct {
		in   string
		want *uint16
	}{
		{in: "10C4", want: u16(0x10c4)},
		{in: "0x10c4", want: u16(0x10c4)},
		{in: "", want: nil},
		{in: "zzzz", want: nil},
		{in: "10C4F", want: nil}, // wider than 16 bit
	}

	for _, tc := range tests {
		got := parseUSBID(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("parse %q: expected nil, got %04x", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("parse %q: got %v want %04x", tc.in, got, *tc.want)
		}
	}
}

func u16(v uint16) *uint16 { return &v }

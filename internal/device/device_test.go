package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"meshmon/internal/domain"
	"meshmon/internal/fieldtree"
	"meshmon/internal/radio"
	"meshmon/internal/radio/fake"
	"meshmon/internal/transport"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testManager wires a Manager whose serial enumeration and session opening
// are under test control.
func testManager(open func(ctx context.Context, tr transport.Transport) (radio.Client, error)) *Manager {
	m := NewManager()
	m.findPort = func(port string) (*domain.UsbPortInfo, error) {
		return &domain.UsbPortInfo{Device: "/dev/ttyUSB0", Description: "CP2102"}, nil
	}
	m.open = open
	m.now = func() time.Time { return testTime }

	return m
}

func openClient(client radio.Client) func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
	return func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
		return client, nil
	}
}

func serialSpec(port string) domain.ConnectionSpec {
	return domain.ConnectionSpec{Kind: domain.KindSerial, SerialPort: port}
}

func tcpSpec(host string, port int) domain.ConnectionSpec {
	return domain.ConnectionSpec{Kind: domain.KindTCP, TCPHost: host, TCPPort: port}
}

func TestResolveTCPHostMissing(t *testing.T) {
	opened := false
	m := testManager(func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
		opened = true

		return &fake.Client{}, nil
	})

	_, err := m.Read(context.Background(), tcpSpec("  ", 0))
	if !errors.Is(err, domain.ErrTCPHostMissing) {
		t.Fatalf("err = %v, want ErrTCPHostMissing", err)
	}
	if opened {
		t.Fatalf("no session must be opened for an unresolvable spec")
	}
}

func TestResolveSerialPortNotFound(t *testing.T) {
	m := testManager(openClient(&fake.Client{}))
	m.findPort = func(port string) (*domain.UsbPortInfo, error) { return nil, nil }

	_, err := m.Read(context.Background(), serialSpec("/dev/ttyUSB9"))
	if !errors.Is(err, domain.ErrSerialPortNotFound) {
		t.Fatalf("err = %v, want ErrSerialPortNotFound", err)
	}

	_, err = m.Read(context.Background(), serialSpec("auto"))
	if !errors.Is(err, domain.ErrSerialPortNotFound) {
		t.Fatalf("auto err = %v, want ErrSerialPortNotFound", err)
	}
}

func TestResolveSerialBackendUnavailable(t *testing.T) {
	m := testManager(openClient(&fake.Client{}))
	m.findPort = func(port string) (*domain.UsbPortInfo, error) {
		return nil, fmt.Errorf("%w: no usb subsystem", domain.ErrSerialBackendUnavailable)
	}

	_, err := m.Read(context.Background(), serialSpec("auto"))
	if !errors.Is(err, domain.ErrSerialBackendUnavailable) {
		t.Fatalf("err = %v, want ErrSerialBackendUnavailable", err)
	}
}

func TestResolveInvalidKind(t *testing.T) {
	m := testManager(openClient(&fake.Client{}))

	_, err := m.Read(context.Background(), domain.ConnectionSpec{Kind: "bluetooth"})
	if !errors.Is(err, domain.ErrInvalidConnectionKind) {
		t.Fatalf("err = %v, want ErrInvalidConnectionKind", err)
	}
}

func TestReadSnapshot(t *testing.T) {
	client := &fake.Client{Info: fieldtree.Tree{
		"my_node_id":       "!A1B2C3D4",
		"firmware_version": "2.3.2.abcdef",
	}}
	m := testManager(openClient(client))

	snapshot, err := m.Read(context.Background(), serialSpec("auto"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snapshot.Kind != domain.KindSerial || snapshot.SerialPort != "/dev/ttyUSB0" {
		t.Fatalf("resolved detail = %s %s", snapshot.Kind, snapshot.SerialPort)
	}
	if snapshot.USB == nil || snapshot.USB.Device != "/dev/ttyUSB0" {
		t.Fatalf("usb info missing: %+v", snapshot.USB)
	}
	if snapshot.Telemetry == nil || snapshot.Telemetry.NodeID != "!a1b2c3d4" {
		t.Fatalf("telemetry = %+v", snapshot.Telemetry)
	}
	if !snapshot.PolledAt.Equal(testTime) {
		t.Fatalf("PolledAt = %v", snapshot.PolledAt)
	}
	if client.Closed != 1 {
		t.Fatalf("client closed %d times, want exactly once", client.Closed)
	}
}

func TestReadTCPUsesEffectivePort(t *testing.T) {
	client := &fake.Client{}
	m := testManager(openClient(client))

	snapshot, err := m.Read(context.Background(), tcpSpec("10.0.0.5", 0))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snapshot.TCPHost != "10.0.0.5" || snapshot.TCPPort != domain.DefaultTCPPort {
		t.Fatalf("tcp detail = %s:%d", snapshot.TCPHost, snapshot.TCPPort)
	}
}

func TestWithClientClosesOnCallbackError(t *testing.T) {
	client := &fake.Client{}
	m := testManager(openClient(client))

	wantErr := errors.New("callback failed")
	err := m.WithClient(context.Background(), tcpSpec("10.0.0.5", 4403), func(radio.Client, Resolved) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if client.Closed != 1 {
		t.Fatalf("client closed %d times, want exactly once", client.Closed)
	}
}

func TestWithClientSwallowsCloseError(t *testing.T) {
	client := &fake.Client{CloseErr: errors.New("close failed")}
	m := testManager(openClient(client))

	err := m.WithClient(context.Background(), tcpSpec("10.0.0.5", 4403), func(radio.Client, Resolved) error {
		return nil
	})
	if err != nil {
		t.Fatalf("close failure must not propagate, got %v", err)
	}
}

func TestWithClientOpenFailure(t *testing.T) {
	m := testManager(func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
		return nil, fmt.Errorf("%w: connection refused", domain.ErrConnectionFailed)
	})

	_, err := m.Read(context.Background(), tcpSpec("10.0.0.5", 4403))
	if !errors.Is(err, domain.ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestResolvedTarget(t *testing.T) {
	serial := Resolved{Kind: domain.KindSerial, SerialPort: "/dev/ttyACM0"}
	if got := serial.Target(); got != "serial:/dev/ttyACM0" {
		t.Fatalf("Target = %q", got)
	}
	tcp := Resolved{Kind: domain.KindTCP, TCPHost: "10.0.0.5", TCPPort: 4403}
	if got := tcp.Target(); got != "tcp:10.0.0.5:4403" {
		t.Fatalf("Target = %q", got)
	}
}

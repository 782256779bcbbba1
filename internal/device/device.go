// Package device orchestrates one-shot access to a radio: resolve a
// connection spec to a concrete transport, open a session, run a single
// read or command against it and guarantee the session is closed again.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meshmon/internal/domain"
	"meshmon/internal/radio"
	"meshmon/internal/transport"
)

// Manager resolves connection specs and runs scoped sessions against them.
// One Manager is shared process-wide so that sessions against the same
// physical target are serialized.
type Manager struct {
	logger *slog.Logger
	locks  *lockTable

	findPort func(port string) (*domain.UsbPortInfo, error)
	open     func(ctx context.Context, tr transport.Transport) (radio.Client, error)
	now      func() time.Time
}

func NewManager() *Manager {
	enum := transport.NewEnumerator()

	return &Manager{
		logger:   slog.With("component", "device"),
		locks:    newLockTable(),
		findPort: enum.FindPort,
		open:     openSession,
		now:      time.Now,
	}
}

// Resolved is the concrete transport detail a spec resolved to.
type Resolved struct {
	Kind       domain.ConnectionKind
	SerialPort string
	TCPHost    string
	TCPPort    int
	USB        *domain.UsbPortInfo
}

// Target is the physical-resource key sessions are serialized on.
func (r Resolved) Target() string {
	if r.Kind == domain.KindSerial {
		return "serial:" + r.SerialPort
	}

	return fmt.Sprintf("tcp:%s:%d", r.TCPHost, r.TCPPort)
}

func (m *Manager) resolve(spec domain.ConnectionSpec) (Resolved, transport.Transport, error) {
	switch spec.Kind {
	case domain.KindSerial:
		port, err := m.findPort(spec.SerialPort)
		if err != nil {
			return Resolved{}, nil, err
		}
		if port == nil {
			if spec.SerialAuto() {
				return Resolved{}, nil, fmt.Errorf("%w: no radio detected", domain.ErrSerialPortNotFound)
			}

			return Resolved{}, nil, fmt.Errorf("%w: %s", domain.ErrSerialPortNotFound, spec.SerialPort)
		}
		resolved := Resolved{Kind: domain.KindSerial, SerialPort: port.Device, USB: port}

		return resolved, transport.NewSerialTransport(port.Device, transport.DefaultSerialBaud), nil

	case domain.KindTCP:
		host := strings.TrimSpace(spec.TCPHost)
		if host == "" {
			return Resolved{}, nil, domain.ErrTCPHostMissing
		}
		port := spec.EffectiveTCPPort()
		resolved := Resolved{Kind: domain.KindTCP, TCPHost: host, TCPPort: port}

		return resolved, transport.NewTCPTransport(host, port), nil

	default:
		return Resolved{}, nil, fmt.Errorf("%w: %q", domain.ErrInvalidConnectionKind, spec.Kind)
	}
}

// WithClient opens a session for spec, hands it to fn and always closes it
// again, whatever fn returns. Close failures are logged and swallowed since
// the session is being discarded either way.
func (m *Manager) WithClient(ctx context.Context, spec domain.ConnectionSpec, fn func(client radio.Client, resolved Resolved) error) error {
	resolved, tr, err := m.resolve(spec)
	if err != nil {
		return err
	}

	release := m.locks.acquire(resolved.Target())
	defer release()

	client, err := m.open(ctx, tr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			m.logger.Warn("closing session failed", "target", resolved.Target(), "error", cerr)
		}
	}()

	return fn(client, resolved)
}

func openSession(ctx context.Context, tr transport.Transport) (radio.Client, error) {
	session, err := radio.NewSession(tr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	if err := session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}

	return session, nil
}

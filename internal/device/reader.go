package device

import (
	"context"

	"meshmon/internal/domain"
	"meshmon/internal/radio"
)

// Read performs one full poll cycle against spec: resolve, open, normalize,
// close. The returned snapshot carries the transport detail that was
// actually used, which for serial-auto is the concrete enumerated port.
func (m *Manager) Read(ctx context.Context, spec domain.ConnectionSpec) (domain.DeviceSnapshot, error) {
	var snapshot domain.DeviceSnapshot
	err := m.WithClient(ctx, spec, func(client radio.Client, resolved Resolved) error {
		telemetry := radio.Normalize(client)
		snapshot = domain.DeviceSnapshot{
			Kind:       resolved.Kind,
			SerialPort: resolved.SerialPort,
			TCPHost:    resolved.TCPHost,
			TCPPort:    resolved.TCPPort,
			USB:        resolved.USB,
			Telemetry:  &telemetry,
			PolledAt:   m.now(),
		}

		return nil
	})
	if err != nil {
		return domain.DeviceSnapshot{}, err
	}

	return snapshot, nil
}

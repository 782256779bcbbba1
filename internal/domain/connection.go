package domain

import (
	"fmt"
	"strings"
)

// ConnectionKind identifies which transport backend reaches a radio.
type ConnectionKind string

const (
	KindSerial ConnectionKind = "serial"
	KindTCP    ConnectionKind = "tcp"

	// SerialPortAuto selects the first enumerated radio port.
	SerialPortAuto = "auto"

	// DefaultTCPPort is the conventional Meshtastic TCP API port.
	DefaultTCPPort = 4403
)

// ConnectionSpec describes how to reach a radio, never which radio answers.
// It is immutable for the lifetime of a poller; node identity comes from
// telemetry once the radio is read.
type ConnectionSpec struct {
	Kind       ConnectionKind `json:"kind"`
	SerialPort string         `json:"serial_port,omitempty"`
	TCPHost    string         `json:"tcp_host,omitempty"`
	TCPPort    int            `json:"tcp_port,omitempty"`
}

// EffectiveTCPPort returns the configured port or the well-known default.
func (s ConnectionSpec) EffectiveTCPPort() int {
	if s.TCPPort > 0 {
		return s.TCPPort
	}

	return DefaultTCPPort
}

// SerialAuto reports whether the spec asks for serial autodetection.
func (s ConnectionSpec) SerialAuto() bool {
	port := strings.TrimSpace(s.SerialPort)

	return port == "" || strings.EqualFold(port, SerialPortAuto)
}

// Describe returns a short human readable form for logs and CLI output.
func (s ConnectionSpec) Describe() string {
	switch s.Kind {
	case KindSerial:
		if s.SerialAuto() {
			return "serial (auto)"
		}

		return "serial " + s.SerialPort
	case KindTCP:
		return fmt.Sprintf("tcp %s:%d", s.TCPHost, s.EffectiveTCPPort())
	default:
		return string(s.Kind)
	}
}

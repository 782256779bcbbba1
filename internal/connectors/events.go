package connectors

import (
	"time"

	"meshmon/internal/domain"
)

// ConnectionState classifies a configured connection by the outcome of its
// most recent poll cycle.
type ConnectionState string

const (
	ConnectionStateReady    ConnectionState = "ready"
	ConnectionStateDegraded ConnectionState = "degraded"
	ConnectionStateStopped  ConnectionState = "stopped"
)

// SnapshotEvent is published after every poll cycle and carries the full
// replacement snapshot for one connection. Consumers must treat it as a
// whole: stale fields from a previous cycle never survive into the next.
type SnapshotEvent struct {
	ConnectionID string
	Snapshot     domain.DeviceSnapshot
}

// ConnectionStatus is published on state transitions only, not on every
// cycle.
type ConnectionStatus struct {
	ConnectionID string
	State        ConnectionState
	Err          string
	Target       string
	Timestamp    time.Time
}

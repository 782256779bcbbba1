package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meshmon/internal/domain"
)

var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotRecord is one cached poll result. Payload holds the serialized
// snapshot view; the flat columns exist for listing without decoding it.
type SnapshotRecord struct {
	ConnectionID string
	Kind         string
	Target       string
	NodeID       string
	Error        string
	Payload      map[string]any
	PolledAt     time.Time
}

type SnapshotRepo struct {
	db *sql.DB
}

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Replace stores the snapshot as the single current row for the connection.
// The cache is latest-only: there is no history to append to.
func (r *SnapshotRepo) Replace(ctx context.Context, connectionID string, snap domain.DeviceSnapshot) error {
	payload, err := json.Marshal(snap.AsMap())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var nodeID string
	if snap.Telemetry != nil {
		nodeID = snap.Telemetry.NodeID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots(connection_id, kind, target, node_id, error, payload, polled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(connection_id) DO UPDATE SET
			kind = excluded.kind,
			target = excluded.target,
			node_id = excluded.node_id,
			error = excluded.error,
			payload = excluded.payload,
			polled_at = excluded.polled_at
	`, connectionID, string(snap.Kind), snapshotTarget(snap), nodeID, snap.Error, string(payload), toUnixMillis(snap.PolledAt))
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, connectionID string) (SnapshotRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT connection_id, kind, target, node_id, error, payload, polled_at
		FROM snapshots
		WHERE connection_id = ?
	`, connectionID)

	rec, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("%w for connection %q", ErrNoSnapshot, connectionID)
	}
	if err != nil {
		return SnapshotRecord{}, err
	}

	return rec, nil
}

func (r *SnapshotRepo) List(ctx context.Context) ([]SnapshotRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT connection_id, kind, target, node_id, error, payload, polled_at
		FROM snapshots
		ORDER BY connection_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return out, nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, connectionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE connection_id = ?`, connectionID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	return nil
}

func scanSnapshot(scan func(...any) error) (SnapshotRecord, error) {
	var (
		rec      SnapshotRecord
		payload  string
		polledMs int64
	)
	if err := scan(&rec.ConnectionID, &rec.Kind, &rec.Target, &rec.NodeID, &rec.Error, &payload, &polledMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SnapshotRecord{}, err
		}

		return SnapshotRecord{}, fmt.Errorf("scan snapshot: %w", err)
	}
	rec.PolledAt = fromUnixMillis(polledMs)
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return SnapshotRecord{}, fmt.Errorf("decode snapshot payload: %w", err)
		}
	}

	return rec, nil
}

func snapshotTarget(s domain.DeviceSnapshot) string {
	switch s.Kind {
	case domain.KindSerial:
		return s.SerialPort
	case domain.KindTCP:
		if s.TCPHost == "" {
			return ""
		}
		port := s.TCPPort
		if port <= 0 {
			port = domain.DefaultTCPPort
		}

		return fmt.Sprintf("%s:%d", s.TCPHost, port)
	default:
		return ""
	}
}

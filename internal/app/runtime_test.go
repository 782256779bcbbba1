package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meshmon/internal/config"
	"meshmon/internal/connectors"
	"meshmon/internal/domain"
)

func initTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	t.Setenv("MESHMON_HOME", t.TempDir())

	rt, err := Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	return rt
}

func readySnapshot() domain.DeviceSnapshot {
	return domain.DeviceSnapshot{
		Kind:      domain.KindTCP,
		TCPHost:   "192.168.0.5",
		TCPPort:   4403,
		Telemetry: &domain.NodeTelemetry{NodeID: "!a1b2c3d4"},
		PolledAt:  time.Now(),
	}
}

func TestInitializeCreatesRuntime(t *testing.T) {
	rt := initTestRuntime(t)

	if _, err := os.Stat(rt.Paths.DBFile); err != nil {
		t.Fatalf("expected snapshot db to exist: %v", err)
	}
	if rt.Config.Poll.IntervalSeconds != config.DefaultPollIntervalSeconds {
		t.Fatalf("config defaults not applied: %+v", rt.Config.Poll)
	}
	if got := len(rt.Registry.List()); got != 0 {
		t.Fatalf("expected empty registry, got %d pollers", got)
	}
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MESHMON_HOME", home)
	raw := `{"connections": [{"id": "a", "connector": "bluetooth"}]}`
	if err := os.WriteFile(filepath.Join(home, ConfigFilename), []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	if _, err := Initialize(context.Background()); err == nil {
		t.Fatalf("expected invalid config to fail initialization")
	}
}

func TestPublishSnapshotFansOutAndTracksState(t *testing.T) {
	rt := initTestRuntime(t)

	snapSub := rt.Bus.Subscribe(connectors.TopicSnapshot)
	statusSub := rt.Bus.Subscribe(connectors.TopicConnStatus)

	rt.publishSnapshot("home", readySnapshot())

	select {
	case raw := <-snapSub:
		event, ok := raw.(connectors.SnapshotEvent)
		if !ok || event.ConnectionID != "home" {
			t.Fatalf("snapshot event = %#v", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("snapshot event never published")
	}

	select {
	case raw := <-statusSub:
		status, ok := raw.(connectors.ConnectionStatus)
		if !ok || status.State != connectors.ConnectionStateReady {
			t.Fatalf("status event = %#v", raw)
		}
		if status.Target != "tcp 192.168.0.5:4403" {
			t.Fatalf("status target = %q", status.Target)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("status event never published")
	}

	current, known := rt.CurrentConnStatus("home")
	if !known || current.State != connectors.ConnectionStateReady {
		t.Fatalf("current status = %+v known=%v", current, known)
	}
}

func TestPublishSnapshotSuppressesRepeatedState(t *testing.T) {
	rt := initTestRuntime(t)
	statusSub := rt.Bus.Subscribe(connectors.TopicConnStatus)

	rt.publishSnapshot("home", readySnapshot())
	<-statusSub

	// A second healthy cycle must not publish another transition.
	rt.publishSnapshot("home", readySnapshot())
	select {
	case raw := <-statusSub:
		t.Fatalf("unexpected status event: %#v", raw)
	case <-time.After(100 * time.Millisecond):
	}

	failed := readySnapshot()
	failed.Telemetry = nil
	failed.Error = "connect: no route to host"
	rt.publishSnapshot("home", failed)

	select {
	case raw := <-statusSub:
		status, ok := raw.(connectors.ConnectionStatus)
		if !ok || status.State != connectors.ConnectionStateDegraded {
			t.Fatalf("status event = %#v", raw)
		}
		if status.Err == "" {
			t.Fatalf("degraded status must carry the error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("degraded transition never published")
	}
}

func TestSnapshotsReachTheCache(t *testing.T) {
	rt := initTestRuntime(t)

	rt.publishSnapshot("home", readySnapshot())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := rt.Snapshots.Get(context.Background(), "home")
		if err == nil {
			if rec.NodeID != "!a1b2c3d4" {
				t.Fatalf("cached record = %+v", rec)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot never reached the cache")
}

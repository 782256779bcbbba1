package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"meshmon/internal/bus"
	"meshmon/internal/config"
	"meshmon/internal/connectors"
	"meshmon/internal/device"
	"meshmon/internal/domain"
	"meshmon/internal/logging"
	"meshmon/internal/persistence"
	"meshmon/internal/poll"
)

const writerQueueCapacity = 512

// Runtime wires the daemon: config, logging, bus, snapshot cache, device
// manager, and the per-connection pollers.
type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.Bus
	DB         *sql.DB

	Snapshots   *persistence.SnapshotRepo
	WriterQueue *persistence.WriterQueue

	Devices  *device.Manager
	Registry *poll.Registry

	connStatusMu sync.RWMutex
	connStatus   map[string]connectors.ConnectionStatus
}

func Initialize(parent context.Context) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		connStatus: make(map[string]connectors.ConnectionStatus),
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting meshmon runtime", "version", BuildVersion(), "connections", len(cfg.Connections))

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	rt.Snapshots = persistence.NewSnapshotRepo(db)

	configured := make([]string, 0, len(rt.Config.Connections))
	for _, conn := range rt.Config.Connections {
		configured = append(configured, conn.ID)
	}
	if pruned, err := persistence.PruneSnapshots(ctx, db, configured); err != nil {
		slog.Warn("prune stale snapshots", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned stale snapshots", "count", pruned)
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), writerQueueCapacity)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue
	persistence.StartSnapshotProjection(ctx, b, writerQueue, rt.Snapshots)

	rt.Devices = device.NewManager()
	rt.Registry = poll.NewRegistry()

	return rt, nil
}

// StartPollers registers one poller per configured connection and brings
// each up in the background. A connection whose first read fails is not
// fatal: setup is retried at the poll interval until it succeeds or the
// daemon stops.
func (r *Runtime) StartPollers(ctx context.Context) {
	interval := r.Config.Poll.Interval()
	for _, conn := range r.Config.Connections {
		p := poll.NewPoller(conn.ID, conn.Spec(), interval, r.Devices, r.publishSnapshot)
		if err := r.Registry.Add(p); err != nil {
			slog.Warn("skipping connection", "connection", conn.ID, "error", err)
			continue
		}
		go r.startWithRetry(ctx, p)
	}

	if r.Registry.EnsureCommandsRegistered() {
		go r.watchRefreshSignal(ctx)
	}
}

// watchRefreshSignal triggers an immediate poll of every connection on
// SIGHUP. Registered once per registry.
func (r *Runtime) watchRefreshSignal(ctx context.Context) {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGHUP)
	defer signal.Stop(sigC)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigC:
			pollers := r.Registry.List()
			slog.Info("refresh signal received", "connections", len(pollers))
			for _, p := range pollers {
				p.RequestRefresh()
			}
		}
	}
}

func (r *Runtime) startWithRetry(ctx context.Context, p *poll.Poller) {
	for {
		err := p.Start(ctx)
		if err == nil {
			return
		}
		slog.Warn("connection not ready, retrying setup",
			"connection", p.ID(), "retry_in", p.Interval(), "error", err)
		r.publishConnState(p.ID(), p.Spec(), connectors.ConnectionStateDegraded, err.Error())

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval()):
		}
	}
}

// publishSnapshot is the poller fanout: every cycle goes to the bus, and
// state transitions derived from the snapshot go to the status topic.
func (r *Runtime) publishSnapshot(id string, snapshot domain.DeviceSnapshot) {
	r.Bus.Publish(connectors.TopicSnapshot, connectors.SnapshotEvent{
		ConnectionID: id,
		Snapshot:     snapshot,
	})

	state := connectors.ConnectionStateReady
	if snapshot.Error != "" {
		state = connectors.ConnectionStateDegraded
	}
	spec := domain.ConnectionSpec{
		Kind:       snapshot.Kind,
		SerialPort: snapshot.SerialPort,
		TCPHost:    snapshot.TCPHost,
		TCPPort:    snapshot.TCPPort,
	}
	r.publishConnState(id, spec, state, snapshot.Error)
}

func (r *Runtime) publishConnState(id string, spec domain.ConnectionSpec, state connectors.ConnectionState, errMsg string) {
	r.connStatusMu.Lock()
	if prev, known := r.connStatus[id]; known && prev.State == state {
		r.connStatusMu.Unlock()

		return
	}
	status := connectors.ConnectionStatus{
		ConnectionID: id,
		State:        state,
		Err:          errMsg,
		Target:       spec.Describe(),
		Timestamp:    time.Now(),
	}
	r.connStatus[id] = status
	r.connStatusMu.Unlock()

	r.Bus.Publish(connectors.TopicConnStatus, status)
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	logger := r.LogManager.Logger("conn")
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			if status.Err != "" {
				logger.Warn("connection state changed",
					"connection", status.ConnectionID, "state", status.State, "target", status.Target, "error", status.Err)
				continue
			}
			logger.Info("connection state changed",
				"connection", status.ConnectionID, "state", status.State, "target", status.Target)
		}
	}
}

// CurrentConnStatus returns the last observed status for a connection.
func (r *Runtime) CurrentConnStatus(id string) (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status, known := r.connStatus[id]
	r.connStatusMu.RUnlock()

	return status, known
}

func (r *Runtime) Close() error {
	if r.Registry != nil {
		pollers := r.Registry.List()
		r.Registry.Shutdown()
		if r.Bus != nil {
			for _, p := range pollers {
				r.publishConnState(p.ID(), p.Spec(), connectors.ConnectionStateStopped, "")
			}
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}

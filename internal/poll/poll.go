// Package poll runs the recurring telemetry refresh for configured
// connections. Each connection gets one Poller driving device reads on a
// fixed interval; a process-wide Registry tracks the active pollers and
// resolves command selectors against them.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meshmon/internal/device"
	"meshmon/internal/domain"
)

// DefaultInterval is used when a poller is built without an explicit one.
const DefaultInterval = 30 * time.Second

var (
	// ErrNotReady signals that the setup-time first poll failed and the
	// connection should be retried later rather than activated.
	ErrNotReady = errors.New("connection not ready")

	// ErrUnknownConnection is returned when a selector names no
	// registered connection.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrNoConnections is returned when a selector-less command runs with
	// nothing registered.
	ErrNoConnections = errors.New("no connections configured")

	// ErrAmbiguousConnection is returned when a selector-less command
	// runs against more than one registered connection.
	ErrAmbiguousConnection = errors.New("multiple connections configured, specify one")
)

// SnapshotFunc receives every published snapshot, including error ones.
type SnapshotFunc func(id string, snapshot domain.DeviceSnapshot)

// Poller owns the poll cycle of one configured connection. The first poll
// runs synchronously inside Start; afterwards a background loop refreshes
// the snapshot on the interval. Every cycle replaces the whole snapshot: a
// failed cycle publishes an error snapshot without previous telemetry.
type Poller struct {
	id       string
	spec     domain.ConnectionSpec
	interval time.Duration
	logger   *slog.Logger

	read       func(ctx context.Context, spec domain.ConnectionSpec) (domain.DeviceSnapshot, error)
	now        func() time.Time
	onSnapshot SnapshotFunc

	mu        sync.RWMutex
	latest    domain.DeviceSnapshot
	hasLatest bool

	refreshC chan struct{}
	stopC    chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPoller(id string, spec domain.ConnectionSpec, interval time.Duration, manager *device.Manager, onSnapshot SnapshotFunc) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		id:         id,
		spec:       spec,
		interval:   interval,
		logger:     slog.With("component", "poll", "connection", id),
		read:       manager.Read,
		now:        time.Now,
		onSnapshot: onSnapshot,
		refreshC:   make(chan struct{}, 1),
		stopC:      make(chan struct{}),
	}
}

func (p *Poller) ID() string                  { return p.id }
func (p *Poller) Spec() domain.ConnectionSpec { return p.spec }
func (p *Poller) Interval() time.Duration     { return p.interval }

// Start runs the first poll synchronously and, on success, launches the
// background refresh loop. A failing first poll is a setup failure: nothing
// is published and the caller is expected to retry Start later.
func (p *Poller) Start(ctx context.Context) error {
	snapshot, err := p.read(ctx, p.spec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	p.publish(snapshot)

	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info("polling started", "target", p.spec.Describe(), "interval", p.interval)

	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopC:
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.refreshC:
			p.poll(ctx)
		}
	}
}

// poll runs one steady-state cycle. Failures degrade into the snapshot's
// error field; they never escape the loop.
func (p *Poller) poll(ctx context.Context) {
	snapshot, err := p.read(ctx, p.spec)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("poll failed", "error", err)
		snapshot = p.errorSnapshot(err)
	}
	p.publish(snapshot)
}

func (p *Poller) errorSnapshot(err error) domain.DeviceSnapshot {
	return ErrorSnapshot(p.spec, err, p.now())
}

// ErrorSnapshot builds the snapshot a failed read cycle publishes. The spec
// is echoed so consumers can still tell which target was unreachable.
func ErrorSnapshot(spec domain.ConnectionSpec, err error, at time.Time) domain.DeviceSnapshot {
	snapshot := domain.DeviceSnapshot{
		Kind:       spec.Kind,
		SerialPort: spec.SerialPort,
		TCPHost:    spec.TCPHost,
		Error:      err.Error(),
		PolledAt:   at,
	}
	if spec.Kind == domain.KindTCP {
		snapshot.TCPPort = spec.EffectiveTCPPort()
	}

	return snapshot
}

func (p *Poller) publish(snapshot domain.DeviceSnapshot) {
	p.mu.Lock()
	p.latest = snapshot
	p.hasLatest = true
	p.mu.Unlock()

	if p.onSnapshot != nil {
		p.onSnapshot(p.id, snapshot)
	}
}

// Latest returns the most recently published snapshot.
func (p *Poller) Latest() (domain.DeviceSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latest, p.hasLatest
}

// RequestRefresh asks the loop for an immediate out-of-schedule poll.
// Requests arriving while one is already pending are coalesced.
func (p *Poller) RequestRefresh() {
	select {
	case p.refreshC <- struct{}{}:
	default:
	}
}

// Stop terminates the refresh loop and waits for it to exit. Safe to call
// more than once, and before Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopC)
	})
	p.wg.Wait()
}

// Package discovery finds reachable radios on the local network, either by
// sweeping a subnet on the TCP API port or by browsing mDNS announcements.
// Discovery is best effort: unreachable hosts are the expected case and
// never fail a scan.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"meshmon/internal/device"
	"meshmon/internal/domain"
)

const (
	// DefaultProbeTimeout bounds the bare TCP connect per candidate host.
	DefaultProbeTimeout = 500 * time.Millisecond

	// probeReadTimeout bounds the full device read against a host whose
	// port accepted the connect.
	probeReadTimeout = 10 * time.Second

	defaultConcurrency = 32

	// minSubnetBits refuses ranges larger than a /16; a sweep over more
	// than 65k hosts is a configuration mistake, not a discovery run.
	minSubnetBits = 16
)

// Options configure one subnet scan. Zero values select the defaults: the
// well-known radio port, the default probe timeout and the local /24.
type Options struct {
	Port        int
	Timeout     time.Duration
	Subnet      string
	Concurrency int
}

// Scanner probes hosts for radios. The zero value is not usable; construct
// with NewScanner.
type Scanner struct {
	logger *slog.Logger

	dial      func(ctx context.Context, addr string, timeout time.Duration) error
	probe     func(ctx context.Context, host string, port int) (*domain.NodeTelemetry, error)
	localAddr func() netip.Addr
}

func NewScanner(manager *device.Manager) *Scanner {
	return &Scanner{
		logger: slog.With("component", "discovery"),
		dial:   dialProbe,
		probe: func(ctx context.Context, host string, port int) (*domain.NodeTelemetry, error) {
			spec := domain.ConnectionSpec{Kind: domain.KindTCP, TCPHost: host, TCPPort: port}
			snapshot, err := manager.Read(ctx, spec)
			if err != nil {
				return nil, err
			}

			return snapshot.Telemetry, nil
		},
		localAddr: localIPv4,
	}
}

// Scan probes every host of the selected subnet on the radio TCP port and
// returns the candidates that answered a full device read, in host order.
func (s *Scanner) Scan(ctx context.Context, opts Options) ([]domain.TCPCandidate, error) {
	port := opts.Port
	if port <= 0 {
		port = domain.DefaultTCPPort
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	hosts, err := s.hosts(opts)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(hosts) {
		concurrency = len(hosts)
	}

	s.logger.Info("scanning for radios", "hosts", len(hosts), "port", port, "concurrency", concurrency)

	// Results are placed by host index so the output order matches the
	// subnet order regardless of which worker finished first.
	results := make([]*domain.TCPCandidate, len(hosts))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.probeHost(ctx, hosts[idx].String(), port, timeout)
			}
		}()
	}

feed:
	for idx := range hosts {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	var candidates []domain.TCPCandidate
	for _, candidate := range results {
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}
	s.logger.Info("scan finished", "candidates", len(candidates))

	return candidates, nil
}

func (s *Scanner) probeHost(ctx context.Context, host string, port int, timeout time.Duration) *domain.TCPCandidate {
	if err := s.dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)), timeout); err != nil {
		return nil // closed or unreachable, the common case
	}

	readCtx, cancel := context.WithTimeout(ctx, probeReadTimeout)
	defer cancel()
	telemetry, err := s.probe(readCtx, host, port)
	if err != nil {
		s.logger.Debug("host answered but device read failed", "host", host, "error", err)

		return nil
	}

	return &domain.TCPCandidate{Host: host, Port: port, Telemetry: telemetry}
}

func (s *Scanner) hosts(opts Options) ([]netip.Addr, error) {
	subnet := strings.TrimSpace(opts.Subnet)
	if subnet != "" {
		prefix, err := netip.ParsePrefix(subnet)
		if err != nil {
			return nil, fmt.Errorf("parse subnet: %w", err)
		}

		return prefixHosts(prefix)
	}

	local := s.localAddr()
	prefix, err := local.Prefix(24)
	if err != nil {
		return nil, fmt.Errorf("derive local subnet: %w", err)
	}

	return prefixHosts(prefix)
}

func prefixHosts(prefix netip.Prefix) ([]netip.Addr, error) {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("subnet must be IPv4: %s", prefix)
	}
	if prefix.Bits() < minSubnetBits {
		return nil, fmt.Errorf("subnet too large: %s", prefix)
	}

	var all []netip.Addr
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		all = append(all, addr)
	}
	// Drop the network and broadcast addresses.
	if prefix.Bits() < 31 && len(all) > 2 {
		all = all[1 : len(all)-1]
	}

	hosts := all[:0]
	for _, addr := range all {
		if addr.IsLoopback() || addr.IsUnspecified() {
			continue
		}
		hosts = append(hosts, addr)
	}

	return hosts, nil
}

func dialProbe(ctx context.Context, addr string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	return conn.Close()
}

// localIPv4 finds the machine's outbound IPv4 address. The UDP dial never
// sends a packet; it only asks the kernel which source address routing
// would pick. Falls back to hostname resolution, then loopback.
func localIPv4() netip.Addr {
	if conn, err := net.Dial("udp4", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			if ip, ok := netip.AddrFromSlice(addr.IP.To4()); ok {
				return ip
			}
		}
	}

	if hostname, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupHost(hostname); err == nil {
			for _, raw := range addrs {
				if ip, err := netip.ParseAddr(raw); err == nil && ip.Is4() && !ip.IsLoopback() {
					return ip
				}
			}
		}
	}

	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

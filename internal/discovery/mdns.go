package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"meshmon/internal/domain"
)

const (
	mdnsServiceType   = "_meshtastic._tcp"
	mdnsDomain        = "local."
	mdnsBrowseTimeout = 5 * time.Second
)

// BrowseMDNS collects radios announcing the Meshtastic TCP service on the
// local network. Entries carry no telemetry; callers wanting node identity
// run a device read against the returned host afterwards.
func (s *Scanner) BrowseMDNS(ctx context.Context) ([]domain.TCPCandidate, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, mdnsBrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var mu sync.Mutex
	var candidates []domain.TCPCandidate
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			candidate, ok := candidateFromEntry(entry)
			if !ok {
				continue
			}
			mu.Lock()
			candidates = append(candidates, candidate)
			mu.Unlock()
			s.logger.Debug("mdns announcement", "host", candidate.Host, "port", candidate.Port)
		}
	}()

	if err := resolver.Browse(browseCtx, mdnsServiceType, mdnsDomain, entries); err != nil {
		cancel()
		wg.Wait()

		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-browseCtx.Done()
	wg.Wait()

	return candidates, nil
}

func candidateFromEntry(entry *zeroconf.ServiceEntry) (domain.TCPCandidate, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return domain.TCPCandidate{}, false
	}
	port := entry.Port
	if port <= 0 {
		port = domain.DefaultTCPPort
	}

	return domain.TCPCandidate{Host: entry.AddrIPv4[0].String(), Port: port}, true
}

package poll

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the process-wide table of active pollers, keyed by connection
// id. It replaces ambient global state: created once at startup, entries
// added on connection setup and removed on teardown.
type Registry struct {
	mu                 sync.Mutex
	pollers            map[string]*Poller
	commandsRegistered bool
}

func NewRegistry() *Registry {
	return &Registry{pollers: map[string]*Poller{}}
}

// Add registers a poller under its connection id.
func (r *Registry) Add(p *Poller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pollers[p.ID()]; exists {
		return fmt.Errorf("connection %q already registered", p.ID())
	}
	r.pollers[p.ID()] = p

	return nil
}

// Remove unregisters and stops the poller for id. Removing an unknown id is
// a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	p, ok := r.pollers[id]
	delete(r.pollers, id)
	r.mu.Unlock()

	if ok {
		p.Stop()
	}
}

func (r *Registry) Get(id string) (*Poller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pollers[id]

	return p, ok
}

// List returns the registered pollers sorted by connection id.
func (r *Registry) List() []*Poller {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*Poller, 0, len(r.pollers))
	for _, p := range r.pollers {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })

	return list
}

// Resolve maps a command selector to a poller: an explicit id must match a
// registered connection, an empty selector is allowed only when exactly one
// connection exists.
func (r *Registry) Resolve(selector string) (*Poller, error) {
	selector = strings.TrimSpace(selector)

	r.mu.Lock()
	defer r.mu.Unlock()

	if selector != "" {
		p, ok := r.pollers[selector]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, selector)
		}

		return p, nil
	}

	switch len(r.pollers) {
	case 0:
		return nil, ErrNoConnections
	case 1:
		for _, p := range r.pollers {
			return p, nil
		}
	}

	return nil, ErrAmbiguousConnection
}

// EnsureCommandsRegistered reports whether command registration still has
// to happen. The first caller gets true and owns the registration; later
// callers get false.
func (r *Registry) EnsureCommandsRegistered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commandsRegistered {
		return false
	}
	r.commandsRegistered = true

	return true
}

// Shutdown stops and removes every poller.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	pollers := make([]*Poller, 0, len(r.pollers))
	for _, p := range r.pollers {
		pollers = append(pollers, p)
	}
	r.pollers = map[string]*Poller{}
	r.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

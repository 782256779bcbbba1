package device

import "sync"

// lockTable hands out one mutex per physical target. Two sessions against
// the same serial port or tcp endpoint is undefined behavior on the device
// side, so holders block each other; distinct targets stay independent.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[string]*sync.Mutex{}}
}

// acquire blocks until the target lock is held and returns its release func.
func (t *lockTable) acquire(target string) func() {
	t.mu.Lock()
	lock, ok := t.locks[target]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[target] = lock
	}
	t.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

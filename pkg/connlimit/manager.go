// Package connlimit enforces global and per-address concurrency caps for
// the query server.
//
// The global count is a single atomic counter; per-address counts live in
// a sharded map so unrelated clients never contend on one lock. A slot is
// represented by a Guard whose release is idempotent, so explicit release
// followed by a deferred one decrements exactly once.
package connlimit

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ErrGlobalLimit is returned by Acquire when the total concurrency cap is
// reached.
var ErrGlobalLimit = errors.New("global connection limit reached")

// PerAddrLimitError is returned by Acquire when a single address exceeds
// its concurrency cap.
type PerAddrLimitError struct {
	Addr string
}

func (e *PerAddrLimitError) Error() string {
	return fmt.Sprintf("per-address connection limit reached for %s", e.Addr)
}

// Config bounds the concurrency a Manager admits. A value of 0 for either
// limit means unlimited.
type Config struct {
	MaxTotal   int
	MaxPerAddr int
}

// DefaultConfig returns the caps used when none are configured.
func DefaultConfig() Config {
	return Config{MaxTotal: 10_000, MaxPerAddr: 1_000}
}

const shardCount = 32

// shard holds per-address counts for a subset of the address space.
type shard struct {
	mu     sync.Mutex
	counts map[string]int
}

// Manager tracks in-flight request slots globally and per client address.
// It is safe for concurrent use.
type Manager struct {
	cfg    Config
	total  atomic.Int64
	shards [shardCount]*shard
}

// New creates a Manager with the given caps.
func New(cfg Config) *Manager {
	m := &Manager{cfg: cfg}
	for i := range m.shards {
		m.shards[i] = &shard{counts: make(map[string]int)}
	}
	return m
}

func (m *Manager) shardFor(addr string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(addr))
	return m.shards[h.Sum32()%shardCount]
}

// Acquire admits one slot for addr, returning a Guard that owns it.
// The global counter is checked first; on a global rejection the
// per-address count is untouched, and on a per-address rejection both
// increments are rolled back.
func (m *Manager) Acquire(addr string) (*Guard, error) {
	total := m.total.Add(1)
	if m.cfg.MaxTotal > 0 && total > int64(m.cfg.MaxTotal) {
		m.total.Add(-1)
		return nil, ErrGlobalLimit
	}

	s := m.shardFor(addr)
	s.mu.Lock()
	n := s.counts[addr] + 1
	if m.cfg.MaxPerAddr > 0 && n > m.cfg.MaxPerAddr {
		s.mu.Unlock()
		m.total.Add(-1)
		return nil, &PerAddrLimitError{Addr: addr}
	}
	s.counts[addr] = n
	s.mu.Unlock()

	return &Guard{manager: m, addr: addr}, nil
}

// release returns one slot for addr. The map entry is removed when the
// per-address count reaches zero so short-lived clients leave no state.
func (m *Manager) release(addr string) {
	m.total.Add(-1)

	s := m.shardFor(addr)
	s.mu.Lock()
	if n := s.counts[addr]; n > 1 {
		s.counts[addr] = n - 1
	} else {
		delete(s.counts, addr)
	}
	s.mu.Unlock()
}

// ActiveTotal returns the number of admitted slots across all addresses.
func (m *Manager) ActiveTotal() int {
	return int(m.total.Load())
}

// ActiveFor returns the number of admitted slots for a single address.
func (m *Manager) ActiveFor(addr string) int {
	s := m.shardFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[addr]
}

// Guard owns exactly one admitted slot. It must be released when request
// handling ends; releasing more than once has no effect.
type Guard struct {
	manager  *Manager
	addr     string
	released atomic.Bool
}

// Addr returns the client address the slot was admitted for.
func (g *Guard) Addr() string {
	return g.addr
}

// Release frees the slot. Safe to call multiple times and from a defer
// after an explicit call; only the first call decrements.
func (g *Guard) Release() {
	if g.released.CompareAndSwap(false, true) {
		g.manager.release(g.addr)
	}
}

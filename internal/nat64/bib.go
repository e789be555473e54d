package nat64

import (
	"fmt"
	"sync"
)

// BIB is one binding: a (remote v6 transport address) <-> (local v4
// transport address) pair, owning every session opened against it. A BIB
// is created the first time a v6 host is seen talking through a given
// local port and destroyed once its last session expires (two-phase:
// sessions drain first, then the BIB is detached from both indices).
type BIB struct {
	Proto   Proto
	V6Taddr TransportAddr // remote v6 host's transport address (X')
	V4Taddr TransportAddr // NAT64's own v4 transport address assigned to this binding (T)

	// fromPool4 records whether V4Taddr was drawn from pool4.get_any (true,
	// the ordinary v6-initiated path) or taken directly from the packet's
	// v4 destination without a draw (false, the tentative v4-initiated
	// path — see filterFromV4). The reaper's cascade-free path
	// only returns the port to pool4 when it came from pool4 in the first
	// place, or invariant 3 (issued - returned = live BIBs) breaks.
	fromPool4 bool

	mu       sync.Mutex
	sessions map[TransportAddr]*Session // keyed by the v4 remote endpoint (Z)
}

func newBIB(proto Proto, v6, v4 TransportAddr) *BIB {
	return &BIB{
		Proto:    proto,
		V6Taddr:  v6,
		V4Taddr:  v4,
		sessions: make(map[TransportAddr]*Session),
	}
}

func (b *BIB) sessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *BIB) lookupSession(v4Remote TransportAddr) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[v4Remote]
}

func (b *BIB) addSession(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.V4Remote] = s
}

// removeSession detaches a session and reports whether the BIB is now
// empty, so the caller can cascade the BIB's own destruction.
func (b *BIB) removeSession(s *Session) (empty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s.V4Remote)
	return len(b.sessions) == 0
}

// ErrBIBNotFound is returned when a lookup by v6 or v4 key misses.
var ErrBIBNotFound = fmt.Errorf("bib entry not found")

// ErrBIBExists is returned by create when a v6-keyed entry already exists
// for this protocol — a caller should have looked up first (spec §7's
// ALREADY_EXISTS class, the Go analogue of the reference implementation's
// partial-pool-registration crit log: an invariant violation, not a
// routine miss).
var ErrBIBExists = fmt.Errorf("bib entry already exists")

// bibTable is the dual-indexed container for one protocol's BIB entries:
// one map keyed by the remote v6 transport address, one by the local v4
// transport address, both protected by a single RWMutex — modeled on
// bfd.Manager's sessions/sessionsByPeer pair.
type bibTable struct {
	mu   sync.RWMutex
	byV6 map[TransportAddr]*BIB
	byV4 map[TransportAddr]*BIB
}

func newBIBTable() *bibTable {
	return &bibTable{
		byV6: make(map[TransportAddr]*BIB),
		byV4: make(map[TransportAddr]*BIB),
	}
}

func (t *bibTable) lookupByV6(key TransportAddr) *BIB {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byV6[key]
}

func (t *bibTable) lookupByV4(key TransportAddr) *BIB {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byV4[key]
}

// create registers a new BIB under both indices. Returns ErrBIBExists if
// the v6 key is already bound — the caller is expected to have checked
// under a read lock first and this is a genuine race or a logic bug, not
// a routine path.
func (t *bibTable) create(proto Proto, v6, v4 TransportAddr) (*BIB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byV6[v6]; ok {
		return nil, ErrBIBExists
	}

	b := newBIB(proto, v6, v4)
	t.byV6[v6] = b
	t.byV4[v4] = b
	return b, nil
}

// destroy detaches a BIB from both indices. Called only once its session
// count has reached zero (the reaper's cascade-free path) or by an
// explicit admin teardown.
func (t *bibTable) destroy(b *BIB) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byV6, b.V6Taddr)
	delete(t.byV4, b.V4Taddr)
}

func (t *bibTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byV6)
}

// forEach calls fn for every BIB under a read lock. fn must not mutate
// the table; it receives a stable snapshot-free view since the lock is
// held for the duration, matching how short the visitor is expected to
// run (spec §5: no blocking within the lock).
func (t *bibTable) forEach(fn func(*BIB)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, b := range t.byV6 {
		fn(b)
	}
}

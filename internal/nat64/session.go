package nat64

import (
	"container/list"
	"time"
)

// Session is one flow's state: the four transport addresses RFC 6146
// names X'/Y'/Z/T, its position in the TCP state machine (meaningful only
// for TCP; UDP/ICMP sessions stay at TCPEstablished and never consult the
// FSM), and its membership in exactly one expiry queue at a time.
//
// A Session is owned by exactly one BIB (bib) and is only ever mutated
// while its BIB-table's lock is held by the orchestrator — there is no
// independent goroutine per session, unlike the BFD session this package
// was modeled on: spec §5 requires filtering/updating to be synchronous,
// non-blocking, and entirely within a single packet's call stack.
type Session struct {
	bib *BIB // non-owning back-reference

	V6Remote TransportAddr // x: remote v6 host's transport address (same as bib.V6Taddr)
	V6Dst    TransportAddr // y: the v6-side destination this session was opened toward (embedded v4 address)
	V4Local  TransportAddr // t: NAT64's own v4 transport address (same as bib.V4Taddr)
	V4Remote TransportAddr // z: the v4 host's transport address

	state TCPState // only consulted when bib.Proto == ProtoTCP

	expiresAt time.Time
	queueKind ExpiryKind
	element   *list.Element
}

func newSession(bib *BIB, v6Dst, v4Remote TransportAddr) *Session {
	return &Session{
		bib:      bib,
		V6Remote: bib.V6Taddr,
		V6Dst:    v6Dst,
		V4Local:  bib.V4Taddr,
		V4Remote: v4Remote,
		state:    TCPClosed,
	}
}

// State returns the session's current TCP state. Always TCPEstablished
// for non-TCP sessions.
func (s *Session) State() TCPState {
	if s.bib.Proto != ProtoTCP {
		return TCPEstablished
	}
	return s.state
}

// ExpiresAt returns the session's current expiry deadline.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

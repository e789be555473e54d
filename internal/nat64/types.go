// Package nat64 implements the stateful filtering and updating core of a
// NAT64 translator: the binding information base, per-flow session table
// with TCP state tracking, the IPv4 transport-address pool, expiry-driven
// garbage collection, and the orchestrator tying them together.
//
// This package has no notion of packet bytes, checksums, or sockets. It
// consumes and produces five-tuples and hands back a verdict; translating
// an actual packet and putting it on the wire is the caller's job (see
// internal/ingress).
package nat64

import (
	"fmt"
	"net/netip"
)

// Proto is one of the three layer-4 protocols NAT64 tracks state for.
type Proto uint8

const (
	ProtoUDP Proto = iota
	ProtoTCP
	ProtoICMP
)

func (p Proto) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoTCP:
		return "tcp"
	case ProtoICMP:
		return "icmp"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// TransportAddr is an address/port pair. Port is always host order within
// this package; wire-order conversion belongs to the translation plane.
type TransportAddr struct {
	Addr netip.Addr
	Port uint16
}

func (t TransportAddr) String() string {
	return fmt.Sprintf("%s#%d", t.Addr, t.Port)
}

func (t TransportAddr) IsValid() bool {
	return t.Addr.IsValid()
}

// FiveTuple identifies one flow direction: protocol plus source and
// destination transport addresses.
type FiveTuple struct {
	Proto   Proto
	SrcAddr TransportAddr
	DstAddr TransportAddr
}

// Direction records which side of the NAT64 a packet arrived on.
type Direction uint8

const (
	DirectionV6 Direction = iota
	DirectionV4
)

func (d Direction) String() string {
	if d == DirectionV6 {
		return "v6"
	}
	return "v4"
}

// PacketMeta carries the TCP control bits the FSM needs, alongside an
// embedded v6 address for new v6-initiated flows (RFC 6052 embedding,
// needed to populate a Session's V6Dst on creation). Non-TCP flows leave
// the TCP fields zero.
type PacketMeta struct {
	Direction Direction
	TCPSyn    bool
	TCPFin    bool
	TCPRst    bool
	V6Dst     TransportAddr // only meaningful for DirectionV6, new flows

	// ICMPInfo marks an ICMPv6 informational message (echo request/reply,
	// as opposed to an error message). Only meaningful when Proto is
	// ProtoICMP and Direction is DirectionV6; consulted against
	// FilteringConfig.DropICMPv6Info (RFC 6146 §3.3).
	ICMPInfo bool
}

// Verdict is the orchestrator's disposition for a packet.
type Verdict uint8

const (
	VerdictDrop Verdict = iota
	VerdictAccept
)

func (v Verdict) String() string {
	if v == VerdictAccept {
		return "accept"
	}
	return "drop"
}

// FilterResult is what Core.Filter hands back: the translated tuple (valid
// only when Verdict is VerdictAccept) and the disposition.
type FilterResult struct {
	Translated FiveTuple
	Verdict    Verdict
}

// Kind classifies why a core operation failed, for metrics labeling and
// for callers that want to branch on failure category without string
// matching.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPoolEmpty
	KindAllocFailed
	KindNotFound
	KindAlreadyExists
	KindBadConfig
	KindProtoUnsupported
	// KindFiltered marks a packet dropped by a configured filtering policy
	// rather than a lookup or allocation failure: address-dependent
	// filtering rejecting an unrecognized peer, or drop_icmpv6_info
	// discarding an ICMPv6 informational message.
	KindFiltered
)

func (k Kind) String() string {
	switch k {
	case KindPoolEmpty:
		return "pool_empty"
	case KindAllocFailed:
		return "alloc_failed"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindBadConfig:
		return "bad_config"
	case KindProtoUnsupported:
		return "proto_unsupported"
	case KindFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// CoreError wraps a failure with its Kind so callers can branch on
// category (metrics labeling, admin responses) while errors.Is/As still
// reach the underlying cause.
type CoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nat64: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("nat64: %s: %s", e.Op, e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

func newCoreError(op string, kind Kind, err error) *CoreError {
	return &CoreError{Op: op, Kind: kind, Err: err}
}

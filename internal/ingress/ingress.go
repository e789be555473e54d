// Package ingress defines the boundary between nat64core and a packet
// capture/injection layer. nat64core has no notion of wire bytes, network
// byte order, or sockets (see internal/nat64's package doc); a caller on
// this boundary is responsible for:
//
//   - receiving raw IPv4/IPv6 packets from the kernel or a userspace
//     packet path (AF_PACKET, a TUN device, DPDK, ...),
//   - parsing them into a FiveTuple/PacketMeta pair, converting ports from
//     network to host order,
//   - extracting or synthesizing the IPv4-embedded address per RFC 6052
//     (stripping/adding the Well-Known or configured NAT64 prefix),
//   - calling nat64.Core.Filter with the result,
//   - and, on VerdictAccept, rewriting the packet's addresses/ports/
//     checksums per the Translated tuple and re-injecting it.
//
// None of that plumbing is implemented here. This package only names the
// interfaces a translation plane is expected to satisfy, so that code
// wiring a real capture layer in front of nat64.Core has a documented
// contract to implement against.
package ingress

import (
	"net/netip"

	"github.com/anthropic-labs/nat64core/internal/nat64"
)

// RawPacket is an unparsed IPv4 or IPv6 packet as read off the wire.
type RawPacket struct {
	Data []byte
}

// Parser turns a raw packet into the tuple/meta pair nat64.Core.Filter
// consumes, or reports that the packet is not one NAT64 should act on
// (e.g. a packet outside the configured NAT64 prefix).
type Parser interface {
	Parse(pkt RawPacket) (nat64.FiveTuple, nat64.PacketMeta, bool, error)
}

// Rewriter applies a FilterResult back onto the original packet bytes:
// address/port substitution, IPv4/IPv6 header translation, and checksum
// recomputation.
type Rewriter interface {
	Rewrite(pkt RawPacket, result nat64.FilterResult) (RawPacket, error)
}

// PrefixConfig names the NAT64 prefix used to embed/extract IPv4
// addresses in IPv6 addresses (RFC 6052). Embedded here only as the
// shape a Parser/Rewriter implementation needs; nat64core itself never
// reads it.
type PrefixConfig struct {
	Prefix netip.Prefix
}

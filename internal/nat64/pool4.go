package nat64

import (
	"container/list"
	"fmt"
	"net/netip"
	"sync"
)

// ErrPool4Empty is returned by getAny and getSimilar when no address in the
// pool has a free port compatible with the requested section.
var ErrPool4Empty = fmt.Errorf("pool4 is empty")

// ErrPool4NotFound is returned when an address does not belong to the pool.
var ErrPool4NotFound = fmt.Errorf("address does not belong to pool4")

// ErrPool4Inconsistent is returned by register and remove when an address was
// present in some but not all of the per-protocol pools. This should never
// happen in practice since register/remove always touch all three pools
// atomically; if it does, the pool is in a state a caller cannot safely
// reason about.
var ErrPool4Inconsistent = fmt.Errorf("pool4 address present in some but not all protocol pools")

// addrSection is a parity/range partition of the ports belonging to one
// pool4 address, mirroring struct addr_section in the original allocator:
// a never-before-used high-water mark (nextPort/maxPort) plus a FIFO of
// previously used, now-returned ports.
type addrSection struct {
	minPort  uint32 // original high-water start, kept only for occupancy reporting
	nextPort uint32
	maxPort  uint32
	free     list.List // of uint16
}

func newSection(next, max uint32) *addrSection {
	s := &addrSection{minPort: next, nextPort: next, maxPort: max}
	s.free.Init()
	return s
}

// extract draws one port from the section: previously-returned ports are
// reused before any new (never-before-used) port is handed out, giving the
// FIFO free list priority over the high-water mark.
func (s *addrSection) extract() (uint16, bool) {
	if e := s.free.Front(); e != nil {
		s.free.Remove(e)
		return e.Value.(uint16), true
	}
	if s.nextPort > s.maxPort {
		return 0, false
	}
	port := uint16(s.nextPort)
	s.nextPort += 2
	return port, true
}

func (s *addrSection) putBack(port uint16) {
	s.free.PushBack(port)
}

// occupancy reports how many ports in this section are currently allocated
// versus free, derived from the high-water mark and the free-list length
// rather than a separate counter.
func (s *addrSection) occupancy() (inUse, free int) {
	total := int(s.maxPort-s.minPort)/2 + 1
	drawn := int(s.nextPort-s.minPort) / 2
	inUse = drawn - s.free.Len()
	if inUse < 0 {
		inUse = 0
	}
	return inUse, total - inUse
}

// section picks which of a node's four port ranges a given port number
// falls into: the original low/high split is 0-1023 vs 1024-65535, and
// within each range even and odd ports are kept disjoint.
func section(node *pool4Node, port uint16) *addrSection {
	switch {
	case port < 1024 && port%2 == 0:
		return node.evenLow
	case port < 1024:
		return node.oddLow
	case port%2 == 0:
		return node.evenHigh
	default:
		return node.oddHigh
	}
}

// pool4Node is one registered IPv4 address and its four port sections.
type pool4Node struct {
	addr     netip.Addr
	oddLow   *addrSection // 1-1023
	evenLow  *addrSection // 0-1022
	oddHigh  *addrSection // 1025-65535
	evenHigh *addrSection // 1024-65534
}

func newPool4Node(addr netip.Addr) *pool4Node {
	return &pool4Node{
		addr:     addr,
		oddLow:   newSection(1, 1023),
		evenLow:  newSection(0, 1022),
		oddHigh:  newSection(1025, 65535),
		evenHigh: newSection(1024, 65534),
	}
}

// addrList is one protocol's pool: a registration-ordered list of
// addresses, each with its own port sections, all guarded by one lock.
// Registration order is preserved because getAny scans nodes in order
// and the first address with a free compatible port wins — this is the
// allocator's fairness rule, not an accident of map iteration.
type addrList struct {
	mu    sync.Mutex
	nodes []*pool4Node
}

func (l *addrList) find(addr netip.Addr) *pool4Node {
	for _, n := range l.nodes {
		if n.addr == addr {
			return n
		}
	}
	return nil
}

// pool4 is the three-protocol-pool container: one addrList each for UDP,
// TCP, and ICMP, registered and removed together so that every v4 address
// exists in either all three pools or none of them.
type pool4 struct {
	udp  addrList
	tcp  addrList
	icmp addrList
}

func newPool4() *pool4 {
	return &pool4{}
}

func (p *pool4) listFor(proto Proto) *addrList {
	switch proto {
	case ProtoUDP:
		return &p.udp
	case ProtoTCP:
		return &p.tcp
	case ProtoICMP:
		return &p.icmp
	default:
		return nil
	}
}

// register adds addr to all three protocol pools. If it is already present
// in all three, the call is a no-op and returns nil. If it is present in
// some pools but not all (register/remove normally keep them in lockstep),
// ErrPool4Inconsistent is returned without mutating anything.
func (p *pool4) register(addr netip.Addr) error {
	lists := []*addrList{&p.tcp, &p.udp, &p.icmp}
	for _, l := range lists {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	present := 0
	for _, l := range lists {
		if l.find(addr) != nil {
			present++
		}
	}
	if present == len(lists) {
		return nil
	}
	if present != 0 {
		return fmt.Errorf("%w: registering %s", ErrPool4Inconsistent, addr)
	}

	for _, l := range lists {
		l.nodes = append(l.nodes, newPool4Node(addr))
	}
	return nil
}

// remove deletes addr from all three pools. A partial hit (present in some
// pools but not all) indicates the pools have already drifted out of sync
// and is reported rather than silently "fixed", matching the original
// allocator's RESPONSE_NOT_FOUND + crit log behavior.
func (p *pool4) remove(addr netip.Addr) error {
	lists := []*addrList{&p.tcp, &p.udp, &p.icmp}
	for _, l := range lists {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	deleted := 0
	for _, l := range lists {
		for i, n := range l.nodes {
			if n.addr == addr {
				l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
				deleted++
				break
			}
		}
	}

	if deleted != 0 && deleted != len(lists) {
		return fmt.Errorf("%w: %s found in %d of %d pools", ErrPool4Inconsistent, addr, deleted, len(lists))
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrPool4NotFound, addr)
	}
	return nil
}

// getAny draws any transport address with a port compatible with the
// hinted port's parity/range, scanning registered addresses in
// registration order and returning the first one with room.
func (p *pool4) getAny(proto Proto, hintPort uint16) (TransportAddr, error) {
	l := p.listFor(proto)
	if l == nil {
		return TransportAddr{}, fmt.Errorf("%w: unsupported protocol", ErrPool4NotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.nodes) == 0 {
		return TransportAddr{}, ErrPool4Empty
	}

	for _, node := range l.nodes {
		sec := section(node, hintPort)
		if port, ok := sec.extract(); ok {
			return TransportAddr{Addr: node.addr, Port: port}, nil
		}
	}
	return TransportAddr{}, ErrPool4Empty
}

// getSimilar draws a port from a specific, already-known pool4 address
// rather than scanning the whole pool — used when the caller wants the
// same outside address as an existing binding (hairpinning, ICMP errors).
func (p *pool4) getSimilar(proto Proto, addr netip.Addr, hintPort uint16) (TransportAddr, error) {
	l := p.listFor(proto)
	if l == nil {
		return TransportAddr{}, fmt.Errorf("%w: unsupported protocol", ErrPool4NotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	node := l.find(addr)
	if node == nil {
		return TransportAddr{}, fmt.Errorf("%w: %s", ErrPool4NotFound, addr)
	}
	sec := section(node, hintPort)
	port, ok := sec.extract()
	if !ok {
		return TransportAddr{}, ErrPool4Empty
	}
	return TransportAddr{Addr: addr, Port: port}, nil
}

// putBack returns a previously allocated transport address to its
// section's free list, to be reused before any unused port in that
// section's range.
func (p *pool4) putBack(proto Proto, ta TransportAddr) error {
	l := p.listFor(proto)
	if l == nil {
		return fmt.Errorf("%w: unsupported protocol", ErrPool4NotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	node := l.find(ta.Addr)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrPool4NotFound, ta.Addr)
	}
	section(node, ta.Port).putBack(ta.Port)
	return nil
}

// contains reports whether addr is registered. Inspects the UDP pool only,
// since register/remove always keep all three pools in lockstep — the
// original allocator does the same (pool4_contains only checks its UDP
// list).
func (p *pool4) contains(addr netip.Addr) bool {
	p.udp.mu.Lock()
	defer p.udp.mu.Unlock()
	return p.udp.find(addr) != nil
}

// list returns the registered addresses in registration order. Reads the
// UDP pool only, for the same reason as contains.
func (p *pool4) list() []netip.Addr {
	p.udp.mu.Lock()
	defer p.udp.mu.Unlock()

	out := make([]netip.Addr, len(p.udp.nodes))
	for i, n := range p.udp.nodes {
		out[i] = n.addr
	}
	return out
}

// sectionOccupancy is one parity/range section's port usage, summed across
// every address registered in a protocol's pool.
type sectionOccupancy struct {
	inUse int
	free  int
}

// occupancy reports per-section port usage for proto, keyed by section
// name ("even_low", "odd_low", "even_high", "odd_high"). Used to populate
// the pool4_ports_in_use/pool4_ports_free metrics.
func (p *pool4) occupancy(proto Proto) map[string]sectionOccupancy {
	l := p.listFor(proto)
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := map[string]sectionOccupancy{
		"even_low": {}, "odd_low": {}, "even_high": {}, "odd_high": {},
	}
	for _, node := range l.nodes {
		for name, sec := range map[string]*addrSection{
			"even_low": node.evenLow, "odd_low": node.oddLow,
			"even_high": node.evenHigh, "odd_high": node.oddHigh,
		} {
			inUse, free := sec.occupancy()
			o := out[name]
			o.inUse += inUse
			o.free += free
			out[name] = o
		}
	}
	return out
}

package nat64

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// CoreOption configures a Core at construction time, mirroring the
// functional-options pattern bfd.NewManager uses for ManagerOption.
type CoreOption func(*Core)

// WithCoreMetrics wires a MetricsReporter into the core. Without this
// option, the core reports to a no-op sink.
func WithCoreMetrics(m MetricsReporter) CoreOption {
	return func(c *Core) { c.metrics = m }
}

// WithFilteringConfig sets the starting filtering configuration, overriding
// DefaultFilteringConfig.
func WithFilteringConfig(cfg FilteringConfig) CoreOption {
	return func(c *Core) { c.cfg = cfg }
}

// WithReaperInterval overrides the default reaper tick period.
func WithReaperInterval(d time.Duration) CoreOption {
	return func(c *Core) { c.reaperInterval = d }
}

// Core is the Filter/Update orchestrator: it owns the three per-protocol
// BIB tables, the pool4 allocator, and the five expiry queues, and is the
// single entry point the translation plane calls per packet. Modeled on
// bfd.Manager as the table-owning, lock-holding root value — but unlike
// Manager, Core has no per-flow goroutines: every call into Filter runs
// to completion on the caller's own goroutine, since the packet path must
// be synchronous and non-blocking.
type Core struct {
	logger  *slog.Logger
	metrics MetricsReporter

	pool4 *pool4
	bib   [3]*bibTable // indexed by Proto

	cfgMu sync.RWMutex
	cfg   FilteringConfig

	expiry *expiryQueues

	// sessMu guards sessCounts, the running live-session total per
	// protocol reported to SetSessionCount. It is distinct from any
	// individual BIB's session map — a gauge of the whole proto, not one
	// binding — so it is tracked independently rather than derived by
	// summing every BIB on each report.
	sessMu     sync.Mutex
	sessCounts [3]int // indexed by Proto

	reaperInterval time.Duration
}

// NewCore builds a Core with empty tables and the default filtering
// configuration, ready to have pool4 addresses registered into it.
func NewCore(logger *slog.Logger, opts ...CoreOption) *Core {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Core{
		logger:         logger.With(slog.String("component", "nat64core")),
		metrics:        noopMetrics{},
		pool4:          newPool4(),
		cfg:            DefaultFilteringConfig(),
		reaperInterval: 30 * time.Second,
	}
	for i := range c.bib {
		c.bib[i] = newBIBTable()
	}

	for _, opt := range opts {
		opt(c)
	}

	c.expiry = newExpiryQueues(c.cfg, c.logger, c.metrics)
	return c
}

func (c *Core) bibTableFor(proto Proto) *bibTable {
	if int(proto) >= len(c.bib) {
		return nil
	}
	return c.bib[proto]
}

// bumpSessionCount adjusts the running live-session total for proto by
// delta and reports the new total, keeping nat64d_core_sessions an
// absolute live count rather than the constant 1 every creation site used
// to clobber it with.
func (c *Core) bumpSessionCount(proto Proto, delta int) {
	c.sessMu.Lock()
	c.sessCounts[proto] += delta
	n := c.sessCounts[proto]
	c.sessMu.Unlock()
	c.metrics.SetSessionCount(proto, n)
}

// tentativeV6Placeholder synthesizes a unique, non-embedding v6 transport
// address to key a tentative v4-initiated BIB's v6 side in the dual index.
// This package has no notion of packet bytes and cannot derive a real RFC
// 6052 embedded address (that's internal/ingress's job); the placeholder
// exists only so the BIB survives in byV6 without colliding, pending a
// real v6 destination that would come from static port-forwarding
// configuration this core doesn't yet model. See DESIGN.md Open Question
// decision #4.
func tentativeV6Placeholder(v4 TransportAddr) TransportAddr {
	b := v4.Addr.As4()
	addr := netip.AddrFrom16([16]byte{10: 0xff, 11: 0xff, 12: b[0], 13: b[1], 14: b[2], 15: b[3]})
	return TransportAddr{Addr: addr, Port: v4.Port}
}

// reportPool4Occupancy pushes current pool4 port usage to the metrics
// sink for every protocol and section. Called once per reaper tick: the
// gauges only need to track allocator pressure over time, not react to
// every individual packet.
func (c *Core) reportPool4Occupancy() {
	for _, proto := range [...]Proto{ProtoUDP, ProtoTCP, ProtoICMP} {
		for section, occ := range c.pool4.occupancy(proto) {
			c.metrics.SetPool4Ports(proto, section, occ.inUse, occ.free)
		}
	}
}

// Pool4Register adds addr to all three protocol pools. See DESIGN.md
// Open Question decisions for why this core never falls back to the
// legacy linear port search pool4Register was paired with upstream.
func (c *Core) Pool4Register(addr netip.Addr) error {
	if err := c.pool4.register(addr); err != nil {
		return newCoreError("pool4_register", KindAllocFailed, err)
	}
	c.logger.Info("pool4 address registered", slog.String("addr", addr.String()))
	return nil
}

// Pool4Remove removes addr from all three protocol pools.
func (c *Core) Pool4Remove(addr netip.Addr) error {
	if err := c.pool4.remove(addr); err != nil {
		return newCoreError("pool4_remove", KindNotFound, err)
	}
	c.logger.Info("pool4 address removed", slog.String("addr", addr.String()))
	return nil
}

func (c *Core) Pool4Contains(addr netip.Addr) bool {
	return c.pool4.contains(addr)
}

func (c *Core) Pool4List() []netip.Addr {
	return c.pool4.list()
}

// Filter implements the per-packet algorithm (spec §4.5): look up or
// create a BIB, look up or create a session against it, advance the TCP
// FSM (or simply renew for UDP/ICMP), and hand back the translated tuple
// and verdict. It never blocks on I/O and holds no lock across the call
// boundary into another table.
func (c *Core) Filter(tuple FiveTuple, meta PacketMeta) (FilterResult, error) {
	bt := c.bibTableFor(tuple.Proto)
	if bt == nil {
		c.metrics.IncPacketsDropped(tuple.Proto, KindProtoUnsupported)
		return FilterResult{Verdict: VerdictDrop}, newCoreError("filter", KindProtoUnsupported, nil)
	}

	if meta.Direction == DirectionV6 {
		return c.filterFromV6(bt, tuple, meta)
	}
	return c.filterFromV4(bt, tuple, meta)
}

// filterFromV6 handles a packet arriving from the IPv6 side: the BIB is
// keyed by the v6 source (X'), created on first sight if absent.
func (c *Core) filterFromV6(bt *bibTable, tuple FiveTuple, meta PacketMeta) (FilterResult, error) {
	proto := tuple.Proto
	v6Key := tuple.SrcAddr

	if proto == ProtoICMP && meta.ICMPInfo {
		c.cfgMu.RLock()
		dropInfo := c.cfg.DropICMPv6Info
		c.cfgMu.RUnlock()
		if dropInfo {
			c.metrics.IncPacketsDropped(proto, KindFiltered)
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v6", KindFiltered, nil)
		}
	}

	b := bt.lookupByV6(v6Key)
	if b == nil {
		v4ta, err := c.pool4.getAny(proto, v6Key.Port)
		if err != nil {
			c.metrics.IncPacketsDropped(proto, KindPoolEmpty)
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v6", KindPoolEmpty, err)
		}

		b, err = bt.create(proto, v6Key, v4ta)
		if err != nil {
			// Roll back the allocated port: the BIB table rejected the
			// insert (a racing creator won), so this port was drawn for
			// nothing.
			_ = c.pool4.putBack(proto, v4ta)
			c.metrics.IncPacketsDropped(proto, KindAlreadyExists)
			c.logger.Error("bib insert collision", slog.String("op", "filter_from_v6"), slog.String("invariant", "v6 key uniqueness"))
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v6", KindAlreadyExists, err)
		}
		b.fromPool4 = true
		c.metrics.SetBIBCount(proto, bt.count())
	}

	sess := b.lookupSession(tuple.DstAddr)
	if sess == nil {
		sess = newSession(b, meta.V6Dst, tuple.DstAddr)
		b.addSession(sess)
		kind := c.initialExpiryKind(proto)
		c.expiry.queue(kind).push(sess, kind, now())
		c.bumpSessionCount(proto, 1)
	}

	c.advance(sess, proto, DirectionV6, meta)

	return FilterResult{
		Translated: FiveTuple{Proto: proto, SrcAddr: b.V4Taddr, DstAddr: tuple.DstAddr},
		Verdict:    VerdictAccept,
	}, nil
}

// filterFromV4 handles a packet arriving from the IPv4 side: the BIB is
// keyed by the v4 destination (T). Ordinarily this must already exist — a
// v4-side packet has no v6 return address of its own to bind one — but
// RFC 6146 §3.5.2 carves out one exception: an unsolicited v4 TCP SYN may
// open a tentative binding that completes once the inside host responds,
// unless drop_v4_initiated_tcp disables it (see DESIGN.md Open Question
// decision #4).
func (c *Core) filterFromV4(bt *bibTable, tuple FiveTuple, meta PacketMeta) (FilterResult, error) {
	proto := tuple.Proto
	v4Key := tuple.DstAddr

	b := bt.lookupByV4(v4Key)
	if b == nil {
		c.cfgMu.RLock()
		dropV4Syn := c.cfg.DropExternalInitiatedTCP
		c.cfgMu.RUnlock()

		if proto != ProtoTCP || !meta.TCPSyn || dropV4Syn {
			c.metrics.IncPacketsDropped(proto, KindNotFound)
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v4", KindNotFound, ErrBIBNotFound)
		}

		var err error
		b, err = bt.create(proto, tentativeV6Placeholder(v4Key), v4Key)
		if err != nil {
			c.metrics.IncPacketsDropped(proto, KindAlreadyExists)
			c.logger.Error("bib insert collision", slog.String("op", "filter_from_v4"), slog.String("invariant", "v4 key uniqueness"))
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v4", KindAlreadyExists, err)
		}
		// b.fromPool4 stays false: v4Key was never drawn via pool4.getAny,
		// so the reaper's cascade-free path must not return it.
		c.metrics.SetBIBCount(proto, bt.count())

		sess := newSession(b, TransportAddr{}, tuple.SrcAddr)
		sess.state = TCPV4SynRcv
		b.addSession(sess)
		c.expiry.queue(ExpiryTCPIncomingSyn).push(sess, ExpiryTCPIncomingSyn, now())
		c.bumpSessionCount(proto, 1)

		return FilterResult{
			Translated: FiveTuple{Proto: proto, SrcAddr: sess.V6Dst, DstAddr: b.V6Taddr},
			Verdict:    VerdictAccept,
		}, nil
	}

	sess := b.lookupSession(tuple.SrcAddr)
	if sess == nil {
		c.cfgMu.RLock()
		addrDependent := c.cfg.AddressDependentFiltering
		c.cfgMu.RUnlock()

		if addrDependent {
			// This v4 peer has never been contacted by the inside host
			// through this binding; address-dependent filtering (RFC 6146
			// §3.5.4) restricts the pinhole to previously-contacted peers.
			c.metrics.IncPacketsDropped(proto, KindFiltered)
			return FilterResult{Verdict: VerdictDrop}, newCoreError("filter_from_v4", KindFiltered, nil)
		}

		sess = newSession(b, TransportAddr{}, tuple.SrcAddr)
		b.addSession(sess)
		kind := c.initialExpiryKind(proto)
		c.expiry.queue(kind).push(sess, kind, now())
		c.bumpSessionCount(proto, 1)
	}

	c.advance(sess, proto, DirectionV4, meta)

	return FilterResult{
		Translated: FiveTuple{Proto: proto, SrcAddr: sess.V6Dst, DstAddr: b.V6Taddr},
		Verdict:    VerdictAccept,
	}, nil
}

func (c *Core) initialExpiryKind(proto Proto) ExpiryKind {
	switch proto {
	case ProtoUDP:
		return ExpiryUDPDefault
	case ProtoICMP:
		return ExpiryICMPDefault
	default:
		return ExpiryTCPTrans
	}
}

// advance applies the FSM (TCP) or a flat renewal (UDP/ICMP) to a session
// that has just seen a packet.
func (c *Core) advance(sess *Session, proto Proto, dir Direction, meta PacketMeta) {
	if proto != ProtoTCP {
		kind := c.initialExpiryKind(proto)
		c.expiry.queue(kind).renew(sess, now())
		return
	}

	result := ApplyTCP(sess.state, dir, TCPFlags{SYN: meta.TCPSyn, FIN: meta.TCPFin, RST: meta.TCPRst})
	sess.state = result.NewState
	if result.Changed {
		c.metrics.IncTCPStateTransition(result.OldState, result.NewState)
	}
	if result.Renewed {
		if sess.queueKind != result.Renew {
			c.expiry.queue(sess.queueKind).remove(sess)
			c.expiry.queue(result.Renew).push(sess, result.Renew, now())
		} else {
			c.expiry.queue(result.Renew).renew(sess, now())
		}
	}
}

// now is a seam for tests that want to control the clock; production
// code always uses wall-clock time.
var now = time.Now

// RunReaper blocks, sweeping every expiry queue on a fixed interval, until
// ctx is cancelled. Wired into the daemon's errgroup the way bfd.Manager's
// RunDispatch is wired into cmd/gobfd's server goroutine group.
func (c *Core) RunReaper(ctx context.Context) error {
	ticker := time.NewTicker(c.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep reaps every queue once. Per queue: expired TCP sessions in
// ESTABLISHED are demoted into a grace period instead of freed; everything
// else is detached from its BIB and, if that empties the BIB, the BIB is
// destroyed and its port returned to pool4 — the cascade-free path.
//
// Lock order here is queue-then-BIB-then-pool4, the reverse of the
// packet path's pool4-then-BIB-then-queue: reapExpired detaches expired
// sessions under the queue lock, then releases it before onExpire (and so
// before the cascade below) ever touches the BIB table or pool4, so no
// lock is held out of order across that boundary.
func (c *Core) sweep() {
	for kind := ExpiryKind(0); kind < numExpiryQueues; kind++ {
		q := c.expiry.queue(kind)
		q.reapExpired(now(), func(s *Session) bool {
			return c.reapOne(s, kind)
		})
	}
	c.reportPool4Occupancy()
}

// reapOne handles one expired session. Returns true if the session was
// re-queued (demoted) rather than freed; the caller (reapExpired) has
// already detached it from the queue it expired on.
func (c *Core) reapOne(s *Session, fromKind ExpiryKind) bool {
	if s.bib.Proto == ProtoTCP {
		newState, action := TCPTimeoutFSM(s.state)
		if action == TCPReapDemoted {
			s.state = newState
			c.metrics.IncTCPStateTransition(TCPEstablished, newState)
			c.expiry.queue(ExpiryTCPTrans).push(s, ExpiryTCPTrans, now())
			return true
		}
	}

	bt := c.bibTableFor(s.bib.Proto)
	empty := s.bib.removeSession(s)
	c.metrics.IncSessionsReaped(s.bib.Proto, fromKind)
	c.bumpSessionCount(s.bib.Proto, -1)

	if empty {
		bt.destroy(s.bib)
		if s.bib.fromPool4 {
			_ = c.pool4.putBack(s.bib.Proto, s.bib.V4Taddr)
		}
		c.metrics.SetBIBCount(s.bib.Proto, bt.count())
		c.logger.Info("bib cascade-freed",
			slog.String("proto", s.bib.Proto.String()),
			slog.String("v6", s.bib.V6Taddr.String()),
			slog.String("v4", s.bib.V4Taddr.String()),
		)
	}
	return false
}

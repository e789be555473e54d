package nat64

// This file is the admin-facing read/write surface named in spec §6:
// clone_config/set_config and the bib/session foreach visitors. It holds
// no transport of its own — wiring these methods onto a CLI or RPC
// service is the admin layer's job, per spec §1's "deliberately out of
// scope" list.

// CloneConfig returns a snapshot of the live filtering configuration.
func (c *Core) CloneConfig() FilteringConfig {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// SetConfig validates and installs a new filtering configuration,
// reconfiguring the expiry queues' timeouts in place. Existing sessions
// keep their current deadlines; only renewals after this call observe
// the new timeouts, matching the reference semantics where a timeout is
// read fresh out of expiry_base on every renewal rather than baked into
// the session at creation time.
func (c *Core) SetConfig(cfg FilteringConfig) error {
	if err := cfg.Validate(); err != nil {
		return newCoreError("set_config", KindBadConfig, err)
	}

	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()

	c.expiry.reconfigure(cfg)
	c.logger.Info("filtering configuration updated")
	return nil
}

// BIBInfo is a read-only snapshot of one BIB entry for introspection.
type BIBInfo struct {
	Proto        Proto
	V6Taddr      TransportAddr
	V4Taddr      TransportAddr
	SessionCount int
}

// ForEachBIB calls fn once per live BIB entry for the given protocol,
// under a read lock; fn should not block or call back into Core.
func (c *Core) ForEachBIB(proto Proto, fn func(BIBInfo)) {
	bt := c.bibTableFor(proto)
	if bt == nil {
		return
	}
	bt.forEach(func(b *BIB) {
		fn(BIBInfo{
			Proto:        b.Proto,
			V6Taddr:      b.V6Taddr,
			V4Taddr:      b.V4Taddr,
			SessionCount: b.sessionCount(),
		})
	})
}

// SessionInfo is a read-only snapshot of one session for introspection.
type SessionInfo struct {
	Proto    Proto
	V6Remote TransportAddr
	V6Dst    TransportAddr
	V4Local  TransportAddr
	V4Remote TransportAddr
	State    TCPState
}

// ForEachSession calls fn once per live session for the given protocol.
func (c *Core) ForEachSession(proto Proto, fn func(SessionInfo)) {
	bt := c.bibTableFor(proto)
	if bt == nil {
		return
	}
	bt.forEach(func(b *BIB) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, s := range b.sessions {
			fn(SessionInfo{
				Proto:    b.Proto,
				V6Remote: s.V6Remote,
				V6Dst:    s.V6Dst,
				V4Local:  s.V4Local,
				V4Remote: s.V4Remote,
				State:    s.State(),
			})
		}
	})
}

// BIBCount returns the live BIB count for a protocol.
func (c *Core) BIBCount(proto Proto) int {
	bt := c.bibTableFor(proto)
	if bt == nil {
		return 0
	}
	return bt.count()
}

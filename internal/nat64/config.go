package nat64

import (
	"fmt"
	"time"
)

// FilteringConfig holds the live, reconfigurable filtering and updating
// parameters (spec §6's filtering_config). The admin layer reads/writes
// this via Core.CloneConfig/Core.SetConfig; internal/config only supplies
// the startup defaults and file/env overrides.
type FilteringConfig struct {
	UDPTimeout            time.Duration
	ICMPTimeout           time.Duration
	TCPTransTimeout       time.Duration
	TCPEstTimeout         time.Duration
	TCPIncomingSynTimeout time.Duration

	// DropExternalInitiatedTCP rejects a v4-initiated TCP SYN that has no
	// matching BIB, per RFC 6146 §3.5.2's "IPv4-initiated connections"
	// policy knob.
	DropExternalInitiatedTCP bool

	// DropICMPv6Info drops v6 ICMP informational messages instead of
	// translating them (RFC 6146 §3.3).
	DropICMPv6Info bool

	// AddressDependentFiltering restricts an existing BIB's pinhole to
	// the specific remote v4 address/port a v6 host has talked to, per
	// RFC 6146 §3.5.2's address-dependent filtering mode.
	AddressDependentFiltering bool
}

// DefaultFilteringConfig returns the reference timeouts (spec §4.4) and a
// conservative default policy (address-dependent filtering on, dropping
// neither direction's TCP SYNs nor ICMPv6 info messages).
func DefaultFilteringConfig() FilteringConfig {
	return FilteringConfig{
		UDPTimeout:                DefaultUDPTimeout,
		ICMPTimeout:               DefaultICMPTimeout,
		TCPTransTimeout:           DefaultTCPTransTimeout,
		TCPEstTimeout:             DefaultTCPEstTimeout,
		TCPIncomingSynTimeout:     DefaultTCPIncomingSyn,
		DropExternalInitiatedTCP:  false,
		DropICMPv6Info:            false,
		AddressDependentFiltering: true,
	}
}

// Validate rejects non-positive timeouts; a zero or negative timeout
// would make every session expire immediately or never, neither of which
// is a configuration a caller meant to express.
func (c FilteringConfig) Validate() error {
	fields := map[string]time.Duration{
		"udp_timeout":             c.UDPTimeout,
		"icmp_timeout":            c.ICMPTimeout,
		"tcp_trans_timeout":       c.TCPTransTimeout,
		"tcp_est_timeout":         c.TCPEstTimeout,
		"tcp_incoming_syn_timeout": c.TCPIncomingSynTimeout,
	}
	for name, d := range fields {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrBadFilteringConfig, name, d)
		}
	}
	return nil
}

// ErrBadFilteringConfig is returned by FilteringConfig.Validate.
var ErrBadFilteringConfig = fmt.Errorf("invalid filtering configuration")

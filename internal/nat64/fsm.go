package nat64

// This file implements the NAT64 TCP state machine. As with the BFD FSM
// this package was modeled on, it is a pure function over state + input:
// no side effects, no Session dependency, trivially unit-testable against
// the reference pseudocode it was transcribed from. Unlike BFD's FSM,
// a transition here depends on three independent flag bits (SYN/FIN/RST)
// rather than one enumerated received state, and v6-initiated and
// v4-initiated packets are handled by different tables, so this is
// expressed as two direction-specific switches rather than one shared
// map — a map key enumerating every (state, syn, fin, rst) combination
// would be far less readable than the reference pseudocode it mirrors.
//
// State diagram (flow opened by a v6 host is the common case):
//
//	CLOSED --v6 SYN--> V6_SYN_RCV --v4 SYN--> ESTABLISHED
//	ESTABLISHED --FIN(either side)--> *_FIN_RCV --FIN(other side)--> V6_FIN_V4_FIN (terminal)
//	ESTABLISHED --RST--> FOUR_MIN --non-RST--> ESTABLISHED (grace reopen)

// TCPState is a TCP session's position in the NAT64 TCP state machine.
// UDP and ICMP sessions always report TCPEstablished from Session.State
// (see Open Question decision #2 in DESIGN.md) and don't consult this table.
type TCPState uint8

const (
	TCPClosed TCPState = iota
	TCPV6SynRcv
	TCPV4SynRcv
	TCPFourMin
	TCPEstablished
	TCPV6FinRcv
	TCPV4FinRcv
	TCPV6FinV4Fin
)

func (s TCPState) String() string {
	switch s {
	case TCPClosed:
		return "CLOSED"
	case TCPV6SynRcv:
		return "V6_SYN_RCV"
	case TCPV4SynRcv:
		return "V4_SYN_RCV"
	case TCPFourMin:
		return "FOUR_MIN"
	case TCPEstablished:
		return "ESTABLISHED"
	case TCPV6FinRcv:
		return "V6_FIN_RCV"
	case TCPV4FinRcv:
		return "V4_FIN_RCV"
	case TCPV6FinV4Fin:
		return "V6_FIN_V4_FIN"
	default:
		return "UNKNOWN"
	}
}

// TCPFlags carries the control bits of one TCP segment relevant to the FSM.
type TCPFlags struct {
	SYN bool
	FIN bool
	RST bool
}

// TCPResult is the outcome of applying one segment to the FSM: the new
// state, whether a renewal is due and on which queue, and whether the
// state actually changed (for logging/metrics, mirroring FSMResult.Changed
// in the BFD FSM).
type TCPResult struct {
	OldState TCPState
	NewState TCPState
	Renew    ExpiryKind
	Renewed  bool
	Changed  bool
}

// ApplyTCP applies one segment to a TCP session's state machine. dir
// indicates which side the segment arrived from: a v6-side segment drives
// tcp6 semantics (NAT64 is relaying a v6-host-initiated flow toward v4),
// a v4-side segment drives tcp4 semantics.
func ApplyTCP(state TCPState, dir Direction, flags TCPFlags) TCPResult {
	if dir == DirectionV6 {
		return applyTCP6(state, flags)
	}
	return applyTCP4(state, flags)
}

// applyTCP6 mirrors tcp6_fsm: the path driven by segments arriving from
// the IPv6 side.
func applyTCP6(state TCPState, f TCPFlags) TCPResult {
	r := TCPResult{OldState: state, NewState: state}

	switch state {
	case TCPClosed:
		if f.SYN {
			r.NewState = TCPV6SynRcv
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		}
	case TCPV6SynRcv:
		if f.SYN {
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		}
	case TCPV4SynRcv:
		if f.SYN {
			r.NewState = TCPEstablished
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPFourMin:
		if !f.RST {
			r.NewState = TCPEstablished
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPEstablished:
		switch {
		case f.FIN:
			r.NewState = TCPV6FinRcv
		case f.RST:
			r.NewState = TCPFourMin
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		default:
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPV6FinRcv:
		r.Renew, r.Renewed = ExpiryTCPEst, true
	case TCPV4FinRcv:
		if f.FIN {
			r.NewState = TCPV6FinV4Fin
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		} else {
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPV6FinV4Fin:
		// terminal, awaiting GC.
	}

	r.Changed = r.NewState != r.OldState
	return r
}

// applyTCP4 mirrors tcp4_fsm: the path driven by segments arriving from
// the IPv4 side.
func applyTCP4(state TCPState, f TCPFlags) TCPResult {
	r := TCPResult{OldState: state, NewState: state}

	switch state {
	case TCPClosed:
		// A v4 segment against a session that never saw a v6 SYN (e.g.
		// address_dependent_filtering off, admitting an unsolicited peer
		// onto an existing BIB) is a no-op in the reference. A brand new
		// v4-initiated flow with no BIB at all bypasses this table
		// entirely: filterFromV4 drops it straight into V4_SYN_RCV. See
		// DESIGN.md Open Question decision #4.
	case TCPV6SynRcv:
		if f.SYN {
			r.NewState = TCPEstablished
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPV4SynRcv:
		// No-op even on SYN retransmit: the reference implementation
		// leaves this branch empty.
	case TCPFourMin:
		if !f.RST {
			r.NewState = TCPEstablished
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPEstablished:
		switch {
		case f.FIN:
			r.NewState = TCPV4FinRcv
		case f.RST:
			r.NewState = TCPFourMin
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		default:
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPV6FinRcv:
		if f.FIN {
			r.NewState = TCPV6FinV4Fin
			r.Renew, r.Renewed = ExpiryTCPTrans, true
		} else {
			r.Renew, r.Renewed = ExpiryTCPEst, true
		}
	case TCPV4FinRcv:
		r.Renew, r.Renewed = ExpiryTCPEst, true
	case TCPV6FinV4Fin:
		// terminal, awaiting GC.
	}

	r.Changed = r.NewState != r.OldState
	return r
}

// TCPReapAction is what the reaper does with an expired TCP session:
// demote it into a grace period instead of freeing it outright, when the
// session was ESTABLISHED.
type TCPReapAction uint8

const (
	TCPReapFree TCPReapAction = iota
	TCPReapDemoted
)

// TCPTimeoutFSM decides what happens when a TCP session's expiry deadline
// is reached: an ESTABLISHED session is demoted to FOUR_MIN with a fresh
// TCP_TRANS deadline instead of being freed, giving either side one more
// window to reopen cleanly (mirrors tcp_timeout_fsm).
func TCPTimeoutFSM(state TCPState) (newState TCPState, action TCPReapAction) {
	if state == TCPEstablished {
		return TCPFourMin, TCPReapDemoted
	}
	return state, TCPReapFree
}

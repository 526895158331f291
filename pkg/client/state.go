// Package client implements the ClientEngine lease state machine (§4.3):
// one cooperative, single-threaded run loop driving DISCOVER/OFFER/
// REQUEST/ACK negotiation, renewal and rebinding, per network interface.
package client

import (
	"fmt"
	"net"
)

// DhcpState is a client lifecycle label (§3).
type DhcpState int

const (
	Init DhcpState = iota
	InitReboot
	Selecting
	SelectingSent
	Rebooting
	Requesting
	RequestingSent
	Bound
	Renewing
	RenewingSent
	Rebinding
	RebindingSent
)

func (s DhcpState) String() string {
	switch s {
	case Init:
		return "Init"
	case InitReboot:
		return "InitReboot"
	case Selecting:
		return "Selecting"
	case SelectingSent:
		return "SelectingSent"
	case Rebooting:
		return "Rebooting"
	case Requesting:
		return "Requesting"
	case RequestingSent:
		return "RequestingSent"
	case Bound:
		return "Bound"
	case Renewing:
		return "Renewing"
	case RenewingSent:
		return "RenewingSent"
	case Rebinding:
		return "Rebinding"
	case RebindingSent:
		return "RebindingSent"
	default:
		return "Unknown"
	}
}

// transitions enumerates, for each state, the set of legal sinks (§4.3).
// Every other (from, to) pair is illegal.
var transitions = map[DhcpState]map[DhcpState]bool{
	Init:          set(Selecting),
	InitReboot:    set(Init, InitReboot, Bound),
	Selecting:     set(SelectingSent),
	SelectingSent: set(Selecting, Requesting, Init),
	Rebooting:     set(Init, InitReboot, Bound),
	Requesting:    set(RequestingSent),
	RequestingSent: set(Init, Requesting, Bound),
	Bound:         set(Bound, Renewing),
	Renewing:      set(RenewingSent),
	RenewingSent:  set(Init, Renewing, Rebinding, Bound),
	Rebinding:     set(RebindingSent),
	RebindingSent: set(Init, Bound),
}

func set(states ...DhcpState) map[DhcpState]bool {
	m := make(map[DhcpState]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}

// IllegalTransitionError reports an attempt to move between states with no
// edge in the transition table (spec.md §7: DhcpStateError{from,to}).
type IllegalTransitionError struct {
	From, To DhcpState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("dhcp client: illegal transition %s -> %s", e.From, e.To)
}

// InvalidStateError reports a programmer-invariant violation within a
// state, e.g. entering Bound with no T1 set (spec.md §7: Invalid(reason)).
type InvalidStateError struct {
	State  DhcpState
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("dhcp client: invalid in state %s: %s", e.State, e.Reason)
}

// transition validates from -> to against the table and returns to, or an
// IllegalTransitionError.
func transition(from, to DhcpState) (DhcpState, error) {
	if sinks, ok := transitions[from]; ok && sinks[to] {
		return to, nil
	}
	return from, &IllegalTransitionError{From: from, To: to}
}

// LeaseState is the mutable negotiation state owned by one ClientEngine
// run (§3's ClientState).
type LeaseState struct {
	ServerIdentifier net.IP
	OfferedIP        net.IP
	OfferedLeaseTime uint32

	RenewalTime    uint32 // T1
	RebindingTime  uint32 // T2

	RenewalTimeLeft   uint32
	RebindingTimeLeft uint32

	Xid uint32
}

// reset clears negotiation state before starting a fresh DISCOVER cycle.
func (s *LeaseState) reset(xid uint32) {
	*s = LeaseState{Xid: xid}
}

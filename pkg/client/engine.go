package client

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

// MinimalRetransDurationSecs is the 60-second retransmission floor: the
// client abandons RENEW/REBIND retransmission once the time left drops
// below twice this value (§9, RFC 2131 divergence).
const MinimalRetransDurationSecs = 60

// PriorLease is what leasehistory hands the engine at startup so it can
// decide between Init and InitReboot (SPEC_FULL §4.3).
type PriorLease struct {
	IP        net.IP
	ExpiresAt time.Time
}

// AssignAddressFunc performs the external OS command sequence that brings
// the interface up and assigns the leased IP (§6); left abstract here so
// tests can substitute a no-op.
type AssignAddressFunc func(ip net.IP, leaseSeconds uint32) error

// Config parameterizes one ClientEngine run.
type Config struct {
	HWAddr             dhcp.HardwareAddr
	ClientIdentifier   []byte
	MaxDhcpMessageSize uint16
	ReadTimeout        time.Duration
	AssignAddress      AssignAddressFunc
	PriorLease         *PriorLease
	Logf               func(format string, args ...interface{})
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return 2 * time.Second
}

func (c Config) logf(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Engine drives exactly one lease lifecycle (§4.3). It is not safe for
// concurrent use; the run loop is strictly sequential by design.
type Engine struct {
	cfg     Config
	sock    Socket
	builder *dhcp.Builder

	state DhcpState
	lease LeaseState

	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewEngine constructs an Engine bound to sock. The initial state is
// InitReboot when cfg.PriorLease names an unexpired lease, else Init
// (SPEC_FULL §4.3).
func NewEngine(sock Socket, cfg Config) *Engine {
	e := &Engine{
		cfg:     cfg,
		sock:    sock,
		builder: dhcp.NewBuilder(cfg.HWAddr, cfg.ClientIdentifier, cfg.MaxDhcpMessageSize),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
	if cfg.PriorLease != nil && time.Now().Before(cfg.PriorLease.ExpiresAt) {
		e.state = InitReboot
	} else {
		e.state = Init
	}
	return e
}

// State returns the engine's current DhcpState, mostly for diagnostics
// and the control API.
func (e *Engine) State() DhcpState { return e.state }

// Lease returns a copy of the engine's current negotiation state.
func (e *Engine) Lease() LeaseState { return e.lease }

// moveTo validates and applies a state transition.
func (e *Engine) moveTo(to DhcpState) error {
	next, err := transition(e.state, to)
	if err != nil {
		return err
	}
	e.state = next
	return nil
}

// Run executes the state machine until ctx is cancelled or a fatal error
// occurs (§4.3's run loop, §7's "first fatal error" propagation rule).
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.step(ctx); err != nil {
			return err
		}
	}
}

func (e *Engine) step(ctx context.Context) error {
	switch e.state {
	case Init:
		return e.handleInit(ctx)
	case InitReboot:
		return e.handleInitReboot(ctx)
	case Rebooting:
		return e.handleRebooting(ctx)
	case Selecting:
		return e.handleSelecting(ctx)
	case SelectingSent:
		return e.handleSelectingSent(ctx)
	case Requesting:
		return e.handleRequesting(ctx)
	case RequestingSent:
		return e.handleRequestingSent(ctx)
	case Bound:
		return e.handleBound(ctx)
	case Renewing:
		return e.handleRenewing(ctx)
	case RenewingSent:
		return e.handleRenewingSent(ctx)
	case Rebinding:
		return e.handleRebinding(ctx)
	case RebindingSent:
		return e.handleRebindingSent(ctx)
	default:
		return &InvalidStateError{State: e.state, Reason: "unhandled state"}
	}
}

// validate implements the "every received message" helper from §4.3:
// xid must match and DhcpMessageType must be one of want.
func (e *Engine) validate(m *dhcp.Message, want ...uint8) bool {
	if m.Xid != e.lease.Xid {
		return false
	}
	got := m.MessageType()
	for _, w := range want {
		if got == w {
			return true
		}
	}
	return false
}

func (e *Engine) handleInit(ctx context.Context) error {
	d := time.Duration(1+e.rng.Intn(10)) * time.Second
	e.sleep(d)
	e.lease.reset(e.rng.Uint32())
	return e.moveTo(Selecting)
}

func (e *Engine) handleSelecting(ctx context.Context) error {
	dest := e.lease.ServerIdentifier // nil unless a prior OFFER left one cached
	m, err := e.builder.MakeDiscover(e.lease.Xid, dest, nil, nil)
	if err != nil {
		return err
	}
	if err := e.sock.Send(m, net.IPv4bcast, ServerPort); err != nil {
		return err
	}
	e.cfg.logf("dhcp-client: sent DISCOVER xid=%#x", e.lease.Xid)
	return e.moveTo(SelectingSent)
}

func (e *Engine) handleSelectingSent(ctx context.Context) error {
	m, from, err := e.sock.Receive(e.cfg.readTimeout())
	if err == ErrReadTimeout {
		return e.moveTo(Init)
	}
	if err != nil {
		return err
	}
	if !e.validate(m, dhcp.MsgTypeOffer) {
		return nil
	}

	if sid, ok := m.GetOption(dhcp.OptServerIdentifier); ok {
		e.lease.ServerIdentifier = sid.IPv4()
	} else if from != nil {
		e.lease.ServerIdentifier = from
	}
	if lt, ok := m.GetOption(dhcp.OptIpAddrLeaseTime); ok {
		e.lease.OfferedLeaseTime = lt.Uint32()
	}
	e.lease.OfferedIP = m.YIAddr
	e.cfg.logf("dhcp-client: OFFER %s from %s", e.lease.OfferedIP, e.lease.ServerIdentifier)
	return e.moveTo(Requesting)
}

func (e *Engine) handleRequesting(ctx context.Context) error {
	m, err := e.builder.MakeRequest(e.lease.Xid, e.lease.ServerIdentifier, e.lease.OfferedIP, e.lease.OfferedLeaseTime)
	if err != nil {
		return err
	}
	if err := e.sock.Send(m, net.IPv4bcast, ServerPort); err != nil {
		return err
	}
	return e.moveTo(RequestingSent)
}

func (e *Engine) handleRequestingSent(ctx context.Context) error {
	m, _, err := e.sock.Receive(e.cfg.readTimeout())
	if err == ErrReadTimeout {
		return e.moveTo(Init)
	}
	if err != nil {
		return err
	}
	if m.Xid != e.lease.Xid {
		return nil
	}
	switch m.MessageType() {
	case dhcp.MsgTypeAck:
		if err := e.enterBoundFrom(m); err != nil {
			return err
		}
		return e.moveTo(Bound)
	case dhcp.MsgTypeNak:
		return e.moveTo(Init)
	default:
		return nil
	}
}

// enterBoundFrom extracts T1/T2 (or their defaults), assigns the address
// via the OS-command collaborator, and checks the Bound invariant from
// §8: renewal_time <= rebinding_time <= offered_lease_time.
func (e *Engine) enterBoundFrom(m *dhcp.Message) error {
	lease := e.lease.OfferedLeaseTime
	if lt, ok := m.GetOption(dhcp.OptIpAddrLeaseTime); ok {
		lease = lt.Uint32()
	}
	t1 := uint32(float64(lease) * 0.5)
	if opt, ok := m.GetOption(dhcp.OptRenewalT1Time); ok {
		t1 = opt.Uint32()
	}
	t2 := uint32(float64(lease) * 0.875)
	if opt, ok := m.GetOption(dhcp.OptRebindingT2Time); ok {
		t2 = opt.Uint32()
	}
	if t1 > t2 || t2 > lease {
		return &InvalidStateError{State: Bound, Reason: "renewal_time/rebinding_time/lease_time out of order"}
	}

	ip := m.YIAddr
	if e.cfg.AssignAddress != nil {
		if err := e.cfg.AssignAddress(ip, lease); err != nil {
			return err
		}
	}

	e.lease.OfferedIP = ip
	e.lease.OfferedLeaseTime = lease
	e.lease.RenewalTime = t1
	e.lease.RebindingTime = t2
	e.cfg.logf("dhcp-client: bound %s lease=%ds T1=%ds T2=%ds", ip, lease, t1, t2)
	return nil
}

func (e *Engine) handleBound(ctx context.Context) error {
	e.sleep(time.Duration(e.lease.RenewalTime) * time.Second)
	// Set once on entry to Renewing, the only sink handleBound takes; handleRenewing must
	// not touch this again, or RenewingSent's halving on retry would be
	// discarded on the very next Renewing cycle.
	e.lease.RenewalTimeLeft = e.lease.RebindingTime - e.lease.RenewalTime
	return e.moveTo(Renewing)
}

func (e *Engine) handleRenewing(ctx context.Context) error {
	e.lease.Xid = e.rng.Uint32()
	m, err := e.builder.MakeRenewing(e.lease.Xid, e.lease.OfferedIP, e.lease.OfferedLeaseTime)
	if err != nil {
		return err
	}
	if err := e.sock.Send(m, e.lease.ServerIdentifier, ServerPort); err != nil {
		return err
	}
	return e.moveTo(RenewingSent)
}

func (e *Engine) handleRenewingSent(ctx context.Context) error {
	timeout := time.Duration(e.lease.RenewalTimeLeft) * time.Second
	m, _, err := e.sock.Receive(timeout)
	if err == ErrReadTimeout {
		if e.lease.RenewalTimeLeft < 2*MinimalRetransDurationSecs {
			return e.moveTo(Rebinding)
		}
		e.lease.RenewalTimeLeft /= 2
		e.sleep(time.Duration(e.lease.RenewalTimeLeft) * time.Second)
		return e.moveTo(Renewing)
	}
	if err != nil {
		return err
	}
	if m.Xid != e.lease.Xid {
		return nil
	}
	switch m.MessageType() {
	case dhcp.MsgTypeAck:
		if err := e.enterBoundFrom(m); err != nil {
			return err
		}
		return e.moveTo(Bound)
	case dhcp.MsgTypeNak:
		return e.moveTo(Init)
	default:
		return nil
	}
}

func (e *Engine) handleRebinding(ctx context.Context) error {
	e.lease.ServerIdentifier = nil
	e.lease.Xid = e.rng.Uint32()
	e.lease.RebindingTimeLeft = e.lease.OfferedLeaseTime - e.lease.RebindingTime
	m, err := e.builder.MakeRenewing(e.lease.Xid, e.lease.OfferedIP, e.lease.OfferedLeaseTime)
	if err != nil {
		return err
	}
	if err := e.sock.Send(m, net.IPv4bcast, ServerPort); err != nil {
		return err
	}
	return e.moveTo(RebindingSent)
}

// handleRebindingSent is symmetric to handleRenewingSent in its halving
// retry logic, but the transition table gives RebindingSent no self/
// retransmit sink — so a retry just sleeps and loops without an explicit
// transition, and any exhaustion goes straight to Init.
func (e *Engine) handleRebindingSent(ctx context.Context) error {
	timeout := time.Duration(e.lease.RebindingTimeLeft) * time.Second
	m, _, err := e.sock.Receive(timeout)
	if err == ErrReadTimeout {
		if e.lease.RebindingTimeLeft < 2*MinimalRetransDurationSecs {
			return e.moveTo(Init)
		}
		e.lease.RebindingTimeLeft /= 2
		e.sleep(time.Duration(e.lease.RebindingTimeLeft) * time.Second)
		return nil
	}
	if err != nil {
		return err
	}
	if m.Xid != e.lease.Xid {
		return nil
	}
	switch m.MessageType() {
	case dhcp.MsgTypeAck:
		if err := e.enterBoundFrom(m); err != nil {
			return err
		}
		return e.moveTo(Bound)
	case dhcp.MsgTypeNak:
		return e.moveTo(Init)
	default:
		return nil
	}
}

// handleInitReboot builds the broadcast REQUEST carrying the persisted
// lease's address (RFC 2131 §4.4.1, SPEC_FULL §4.3). An ACK moves to
// Bound and a NAK or read timeout moves to Init; a reply with another xid
// or message type leaves the state at InitReboot, so the next step resends.
func (e *Engine) handleInitReboot(ctx context.Context) error {
	if e.lease.Xid == 0 {
		e.lease.Xid = e.rng.Uint32()
	}
	m := dhcp.NewMessage(e.lease.Xid, e.cfg.HWAddr)
	if err := m.AddOption(dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeRequest)); err != nil {
		return err
	}
	if err := m.AddOption(dhcp.IPv4Option(dhcp.OptRequestedIpAddr, e.cfg.PriorLease.IP)); err != nil {
		return err
	}
	if e.cfg.MaxDhcpMessageSize != 0 {
		if err := m.AddOption(dhcp.Uint16Option(dhcp.OptMaxDhcpMessageSize, e.cfg.MaxDhcpMessageSize)); err != nil {
			return err
		}
	}
	if err := e.sock.Send(m, net.IPv4bcast, ServerPort); err != nil {
		return err
	}

	reply, _, err := e.sock.Receive(e.cfg.readTimeout())
	if err == ErrReadTimeout {
		return e.moveTo(Init)
	}
	if err != nil {
		return err
	}
	if reply.Xid != e.lease.Xid {
		return nil
	}
	switch reply.MessageType() {
	case dhcp.MsgTypeAck:
		if err := e.enterBoundFrom(reply); err != nil {
			return err
		}
		return e.moveTo(Bound)
	case dhcp.MsgTypeNak:
		return e.moveTo(Init)
	default:
		return nil
	}
}

// handleRebooting exists only for the DhcpState enum's totality — no
// transition in the table ever enters Rebooting, so this handler is
// unreachable in practice.
func (e *Engine) handleRebooting(ctx context.Context) error {
	return e.moveTo(Init)
}

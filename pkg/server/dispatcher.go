package server

import (
	"fmt"
	"net"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

// ConfigError reports an invalid ServerDispatcher build configuration
// (§4.4: "renew_percent < rebind_percent is a builder precondition").
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "dhcp server: invalid config: " + e.Reason }

// PoolConfig names one address range (§4.4, §6).
type PoolConfig struct {
	Name  string
	Start net.IP
	End   net.IP
}

// Config is the ServerDispatcher's build-time configuration (§4.4).
type Config struct {
	ServerIdentifier net.IP
	LeaseTime        time.Duration
	RenewPercent     float64
	RebindPercent    float64
	RenewTime        *time.Duration
	RebindTime       *time.Duration
	Pools            []PoolConfig
	Logf             func(format string, args ...interface{})
}

func (c *Config) applyDefaults() {
	if c.LeaseTime == 0 {
		c.LeaseTime = time.Hour
	}
	if c.RenewPercent == 0 {
		c.RenewPercent = 0.5
	}
	if c.RebindPercent == 0 {
		c.RebindPercent = 0.875
	}
}

func (c Config) validate() error {
	if len(c.Pools) == 0 {
		return &ConfigError{Reason: "at least one address pool must be configured"}
	}
	if (c.RenewTime == nil) != (c.RebindTime == nil) {
		return &ConfigError{Reason: "renew_time and rebind_time must be set together"}
	}
	if c.RenewTime == nil && c.RenewPercent >= c.RebindPercent {
		return &ConfigError{Reason: "renew_percent must be < rebind_percent"}
	}
	return nil
}

// Dispatcher accepts UDP datagrams on port 67, routes by DhcpMessageType,
// and consults the LeaseStore to allocate and commit addresses (§4.4).
type Dispatcher struct {
	cfg   Config
	pools []*Pool
	store *LeaseStore
	sock  Socket
}

// NewDispatcher validates cfg and builds a Dispatcher bound to store and
// sock. Only Discover, Request, Decline, Release and Inform are handled;
// Offer/Ack/Nak arriving here are logged and dropped (§4.4).
func NewDispatcher(cfg Config, store *LeaseStore, sock Socket) (*Dispatcher, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, len(cfg.Pools))
	for _, pc := range cfg.Pools {
		p, err := NewPool(pc.Name, pc.Start, pc.End)
		if err != nil {
			return nil, &ConfigError{Reason: err.Error()}
		}
		pools = append(pools, p)
	}
	return &Dispatcher{cfg: cfg, pools: pools, store: store, sock: sock}, nil
}

// Leases returns every committed lease, for the control API's
// GET /v1/leases.
func (d *Dispatcher) Leases() map[StorageKey]Lease {
	return d.store.All()
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.cfg.Logf != nil {
		d.cfg.Logf(format, args...)
	}
}

// Serve runs the accept loop until stop is closed: decode, check for a
// DhcpMessageType, and dispatch (§4.4 steps 1-3).
func (d *Dispatcher) Serve(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		m, from, err := d.sock.Receive()
		if err != nil {
			return err
		}
		if err := d.handleDatagram(m, from); err != nil {
			d.logf("dhcp-server: %v", err)
		}
	}
}

func (d *Dispatcher) handleDatagram(m *dhcp.Message, from net.IP) error {
	msgType, ok := m.GetOption(dhcp.OptDhcpMessageType)
	if !ok {
		d.logf("dhcp-server: dropped datagram with no DhcpMessageType")
		return nil
	}
	switch msgType.Uint8() {
	case dhcp.MsgTypeDiscover:
		return d.handleDiscover(m)
	case dhcp.MsgTypeRequest:
		return d.handleRequest(m)
	case dhcp.MsgTypeDecline:
		return d.handleDecline(m)
	case dhcp.MsgTypeRelease:
		return d.handleRelease(m)
	case dhcp.MsgTypeInform:
		return d.handleInform(m)
	case dhcp.MsgTypeOffer, dhcp.MsgTypeAck, dhcp.MsgTypeNak:
		d.logf("dhcp-server: dropped server-origin message type %d", msgType.Uint8())
		return nil
	default:
		d.logf("dhcp-server: dropped unknown message type %d", msgType.Uint8())
		return nil
	}
}

// isHeldByOther reports whether ip is already committed to a hardware
// address other than hw.
func (d *Dispatcher) isHeldByOther(ip net.IP, hw dhcp.HardwareAddr) bool {
	key, held := d.store.HeldBy(ip)
	return held && key.HardwareAddr != hw.String()
}

// chooseAddress resolves the open allocation question per SPEC_FULL
// §4.4: held-lease > requested-in-pool > first-free.
func (d *Dispatcher) chooseAddress(hw dhcp.HardwareAddr, requested net.IP) (net.IP, error) {
	if l, ok := d.store.Retrieve(keyFor(hw, "")); ok {
		if ip := net.ParseIP(l.IPAddr); ip != nil {
			for _, p := range d.pools {
				if p.Contains(ip) && !p.IsQuarantined(ip) {
					return ip, nil
				}
			}
		}
	}

	if requested != nil {
		for _, p := range d.pools {
			if p.Contains(requested) && !p.IsQuarantined(requested) && !d.isHeldByOther(requested, hw) {
				return requested, nil
			}
		}
	}

	for _, p := range d.pools {
		if ip, ok := p.FirstFree(func(ip net.IP) bool { return d.isHeldByOther(ip, hw) }); ok {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("dhcp server: pools exhausted")
}

func (d *Dispatcher) timers() (t1, t2 time.Duration) {
	if d.cfg.RenewTime != nil {
		return *d.cfg.RenewTime, *d.cfg.RebindTime
	}
	t1 = time.Duration(float64(d.cfg.LeaseTime) * d.cfg.RenewPercent)
	t2 = time.Duration(float64(d.cfg.LeaseTime) * d.cfg.RebindPercent)
	return t1, t2
}

func (d *Dispatcher) replyDest(m *dhcp.Message, yiaddr net.IP) (net.IP, int) {
	if m.Flags&dhcp.BroadcastFlag != 0 || m.CIAddr == nil || m.CIAddr.Equal(net.IPv4zero) {
		return net.IPv4bcast, ClientPort
	}
	return yiaddr, ClientPort
}

func (d *Dispatcher) handleDiscover(m *dhcp.Message) error {
	ip, err := d.chooseAddress(m.CHAddr, requestedAddr(m))
	if err != nil {
		d.logf("dhcp-server: DISCOVER from %s: %v", m.CHAddr, err)
		return nil
	}
	t1, t2 := d.timers()
	offer := dhcp.NewMessage(m.Xid, m.CHAddr)
	offer.Opcode = dhcp.BootReply
	offer.YIAddr = ip
	offer.Flags = m.Flags
	mustAddAll(offer,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeOffer),
		dhcp.IPv4Option(dhcp.OptServerIdentifier, d.cfg.ServerIdentifier),
		dhcp.Uint32Option(dhcp.OptIpAddrLeaseTime, uint32(d.cfg.LeaseTime.Seconds())),
		dhcp.Uint32Option(dhcp.OptRenewalT1Time, uint32(t1.Seconds())),
		dhcp.Uint32Option(dhcp.OptRebindingT2Time, uint32(t2.Seconds())),
	)
	dest, port := d.replyDest(m, ip)
	return d.sock.Send(offer, dest, port)
}

func (d *Dispatcher) handleRequest(m *dhcp.Message) error {
	requested := requestedAddr(m)
	if requested == nil {
		requested = m.CIAddr
	}
	candidate, err := d.chooseAddress(m.CHAddr, requested)
	if err != nil || requested == nil || !candidate.Equal(requested) {
		return d.sendNak(m)
	}

	t1, t2 := d.timers()
	lease := Lease{
		HardwareAddr: m.CHAddr.String(),
		IPAddr:       requested.String(),
		LeaseSeconds: uint32(d.cfg.LeaseTime.Seconds()),
		GrantedAt:    time.Now(),
	}
	if err := d.store.Store(keyFor(m.CHAddr, ""), lease); err != nil {
		return err
	}

	ack := dhcp.NewMessage(m.Xid, m.CHAddr)
	ack.Opcode = dhcp.BootReply
	ack.YIAddr = requested
	ack.Flags = m.Flags
	mustAddAll(ack,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeAck),
		dhcp.IPv4Option(dhcp.OptServerIdentifier, d.cfg.ServerIdentifier),
		dhcp.Uint32Option(dhcp.OptIpAddrLeaseTime, lease.LeaseSeconds),
		dhcp.Uint32Option(dhcp.OptRenewalT1Time, uint32(t1.Seconds())),
		dhcp.Uint32Option(dhcp.OptRebindingT2Time, uint32(t2.Seconds())),
	)
	dest, port := d.replyDest(m, requested)
	return d.sock.Send(ack, dest, port)
}

func (d *Dispatcher) sendNak(m *dhcp.Message) error {
	nak := dhcp.NewMessage(m.Xid, m.CHAddr)
	nak.Opcode = dhcp.BootReply
	mustAddAll(nak,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeNak),
		dhcp.IPv4Option(dhcp.OptServerIdentifier, d.cfg.ServerIdentifier),
	)
	return d.sock.Send(nak, net.IPv4bcast, ClientPort)
}

func (d *Dispatcher) handleDecline(m *dhcp.Message) error {
	ip := requestedAddr(m)
	if ip == nil {
		return nil
	}
	for _, p := range d.pools {
		if p.Contains(ip) {
			p.Quarantine(ip)
		}
	}
	d.store.Delete(keyFor(m.CHAddr, ""))
	return nil
}

func (d *Dispatcher) handleRelease(m *dhcp.Message) error {
	d.store.Delete(keyFor(m.CHAddr, ""))
	return nil
}

// handleInform replies with a DHCPACK echoing ciaddr and carrying the
// configured options but no yiaddr/lease time (RFC 2131 §4.4.1,
// SPEC_FULL §4.4 — supplements the original spec's stub).
func (d *Dispatcher) handleInform(m *dhcp.Message) error {
	ack := dhcp.NewMessage(m.Xid, m.CHAddr)
	ack.Opcode = dhcp.BootReply
	ack.CIAddr = m.CIAddr
	mustAddAll(ack,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeAck),
		dhcp.IPv4Option(dhcp.OptServerIdentifier, d.cfg.ServerIdentifier),
	)
	return d.sock.Send(ack, m.CIAddr, ClientPort)
}

func requestedAddr(m *dhcp.Message) net.IP {
	if opt, ok := m.GetOption(dhcp.OptRequestedIpAddr); ok {
		return opt.IPv4()
	}
	return nil
}

func mustAddAll(m *dhcp.Message, opts ...dhcp.Option) {
	for _, o := range opts {
		// Construction-time options here are all internally consistent
		// (one add per tag, valid payloads); a failure would be a bug in
		// this package, not a caller input problem.
		if err := m.AddOption(o); err != nil {
			panic(err)
		}
	}
}

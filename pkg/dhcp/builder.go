package dhcp

import "net"

// defaultParameterRequestList is the option set make_discover/make_request
// ask for when the caller doesn't override it (§4.2).
var defaultParameterRequestList = []OptionTag{
	OptRouter,
	OptDomainNameServer,
	OptRenewalT1Time,
	OptRebindingT2Time,
}

// Builder assembles outbound client messages. It holds no mutable state:
// every call is a pure function of its arguments plus these three fields
// (§4.2: "stateless apart from the client's hardware address, optional
// client identifier, and the negotiated MaxDhcpMessageSize").
type Builder struct {
	hwAddr         HardwareAddr
	clientID       Option // OptClientIdentifier, precomputed
	maxMessageSize uint16 // 0 means "don't advertise"
}

// NewBuilder constructs a Builder. clientID, if nil, defaults to
// {type: HtypeEthernet, id: hwAddr bytes} per §4.2.
func NewBuilder(hwAddr HardwareAddr, clientID []byte, maxMessageSize uint16) *Builder {
	id := clientID
	idType := HtypeEthernet
	if id == nil {
		id = hwAddr.Bytes()
	}
	return &Builder{
		hwAddr:         hwAddr,
		clientID:       ClientIdentifierOption(idType, id),
		maxMessageSize: maxMessageSize,
	}
}

func (b *Builder) base(xid uint32) *Message {
	return NewMessage(xid, b.hwAddr)
}

func serverIdentifier(destination net.IP) net.IP {
	if destination == nil {
		return net.IPv4bcast
	}
	return destination
}

func (b *Builder) addCommonOptions(m *Message, requestList []OptionTag) error {
	if err := m.AddOption(b.clientID); err != nil {
		return err
	}
	if b.maxMessageSize != 0 {
		if err := m.AddOption(Uint16Option(OptMaxDhcpMessageSize, b.maxMessageSize)); err != nil {
			return err
		}
	}
	if requestList == nil {
		requestList = defaultParameterRequestList
	}
	prl := make([]byte, len(requestList))
	for i, t := range requestList {
		prl[i] = byte(t)
	}
	return m.AddOption(BytesOption(OptParameterRequestList, prl))
}

// MakeDiscover builds a DHCPDISCOVER (§4.2). requestedAddr and
// requestedLease are optional (nil to omit).
func (b *Builder) MakeDiscover(xid uint32, destination net.IP, requestedAddr net.IP, requestedLease *uint32) (*Message, error) {
	m := b.base(xid)
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeDiscover)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptServerIdentifier, serverIdentifier(destination))); err != nil {
		return nil, err
	}
	if requestedAddr != nil {
		if err := m.AddOption(IPv4Option(OptRequestedIpAddr, requestedAddr)); err != nil {
			return nil, err
		}
	}
	if requestedLease != nil {
		if err := m.AddOption(Uint32Option(OptIpAddrLeaseTime, *requestedLease)); err != nil {
			return nil, err
		}
	}
	if err := b.addCommonOptions(m, nil); err != nil {
		return nil, err
	}
	return m, nil
}

// MakeRequest builds a DHCPREQUEST in the SELECTING→REQUESTING path
// (§4.2): broadcast, carries ServerIdentifier and RequestedIpAddr.
func (b *Builder) MakeRequest(xid uint32, destination net.IP, offeredAddr net.IP, offeredLease uint32) (*Message, error) {
	m := b.base(xid)
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeRequest)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptServerIdentifier, serverIdentifier(destination))); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptRequestedIpAddr, offeredAddr)); err != nil {
		return nil, err
	}
	if err := m.AddOption(Uint32Option(OptIpAddrLeaseTime, offeredLease)); err != nil {
		return nil, err
	}
	if err := b.addCommonOptions(m, nil); err != nil {
		return nil, err
	}
	return m, nil
}

// MakeRenewing builds the unicast DHCPREQUEST used in RENEWING and
// REBINDING (§4.2): same fields as MakeRequest but omits ServerIdentifier,
// and sets ciaddr to addr since the message is no longer broadcast from an
// unconfigured client.
func (b *Builder) MakeRenewing(xid uint32, addr net.IP, lease uint32) (*Message, error) {
	m := b.base(xid)
	m.CIAddr = addr
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeRequest)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptRequestedIpAddr, addr)); err != nil {
		return nil, err
	}
	if err := m.AddOption(Uint32Option(OptIpAddrLeaseTime, lease)); err != nil {
		return nil, err
	}
	if err := b.addCommonOptions(m, nil); err != nil {
		return nil, err
	}
	return m, nil
}

// MakeDecline builds a DHCPDECLINE (SPEC_FULL §4.2, RFC 2131 §4.4): no
// ParameterRequestList, carries only ClientIdentifier, RequestedIpAddr
// (the declined address) and ServerIdentifier.
func (b *Builder) MakeDecline(xid uint32, declinedAddr net.IP, serverID net.IP) (*Message, error) {
	m := b.base(xid)
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeDecline)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptRequestedIpAddr, declinedAddr)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptServerIdentifier, serverID)); err != nil {
		return nil, err
	}
	if err := m.AddOption(b.clientID); err != nil {
		return nil, err
	}
	return m, nil
}

// MakeRelease builds a DHCPRELEASE (SPEC_FULL §4.2, RFC 2131 §4.4): unicast
// to the owning server, ciaddr set, no ParameterRequestList.
func (b *Builder) MakeRelease(xid uint32, clientAddr net.IP, serverID net.IP) (*Message, error) {
	m := b.base(xid)
	m.CIAddr = clientAddr
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeRelease)); err != nil {
		return nil, err
	}
	if err := m.AddOption(IPv4Option(OptServerIdentifier, serverID)); err != nil {
		return nil, err
	}
	if err := m.AddOption(b.clientID); err != nil {
		return nil, err
	}
	return m, nil
}

// MakeInform builds a DHCPINFORM (SPEC_FULL §4.2, RFC 2131 §4.4.1): for a
// client with an externally configured address that only wants options.
// ciaddr is set, no IpAddrLeaseTime/RequestedIpAddr/ServerIdentifier.
func (b *Builder) MakeInform(xid uint32, ciaddr net.IP) (*Message, error) {
	m := b.base(xid)
	m.CIAddr = ciaddr
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeInform)); err != nil {
		return nil, err
	}
	if err := b.addCommonOptions(m, nil); err != nil {
		return nil, err
	}
	return m, nil
}

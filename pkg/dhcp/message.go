package dhcp

import "net"

// BOOTP opcodes (§3).
const (
	BootRequest uint8 = 1
	BootReply   uint8 = 2
)

// HtypeEthernet is the hardware type for 802.3 Ethernet (htype=1).
const HtypeEthernet uint8 = 1

// MagicCookie is the 4-byte literal separating the BOOTP fixed fields
// from the DHCP options area (§3, §4.1).
var MagicCookie = [4]byte{99, 130, 83, 99}

// MinWireLength is the minimum total encoded length of a message; Encode
// pads with zero bytes to reach it (§3, §4.1).
const MinWireLength = 300

// BroadcastFlag is the single flag bit RFC 2131 defines in the 16-bit
// flags field.
const BroadcastFlag uint16 = 0x8000

// Message is the in-memory representation of a DHCP packet: the BOOTP
// fixed header plus an ordered option list (§3).
type Message struct {
	Opcode uint8
	Htype  uint8
	Hops   uint8
	Xid    uint32
	Secs   uint16
	Flags  uint16

	CIAddr net.IP
	YIAddr net.IP
	SIAddr net.IP
	GIAddr net.IP

	CHAddr HardwareAddr

	SName [64]byte
	File  [128]byte

	Options []Option
}

// NewMessage returns a Message with the BOOTP fixed header defaulted:
// opcode BootRequest, htype Ethernet, all-zero addresses, hlen from addr.
func NewMessage(xid uint32, addr HardwareAddr) *Message {
	return &Message{
		Opcode: BootRequest,
		Htype:  HtypeEthernet,
		Xid:    xid,
		CIAddr: net.IPv4zero,
		YIAddr: net.IPv4zero,
		SIAddr: net.IPv4zero,
		GIAddr: net.IPv4zero,
		CHAddr: addr,
	}
}

// GetOption returns the first option with the given tag (first-wins, per
// spec.md §9's note on defensive duplicate handling on input).
func (m *Message) GetOption(tag OptionTag) (Option, bool) {
	for _, o := range m.Options {
		if o.Tag == tag {
			return o, true
		}
	}
	return Option{}, false
}

// AddOption appends opt, rejecting a tag already present (§3: "at most
// one option per tag per message").
func (m *Message) AddOption(opt Option) error {
	if _, exists := m.GetOption(opt.Tag); exists {
		return &Error{Kind: DuplicateOption, Tag: opt.Tag}
	}
	if err := validateOptionData(opt.Tag, opt.Data); err != nil {
		return err
	}
	m.Options = append(m.Options, opt)
	return nil
}

// MessageType returns the value of the DhcpMessageType option (53), or 0
// if absent.
func (m *Message) MessageType() uint8 {
	if o, ok := m.GetOption(OptDhcpMessageType); ok {
		return o.Uint8()
	}
	return 0
}

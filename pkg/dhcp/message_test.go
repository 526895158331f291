package dhcp

import "testing"

func testHWAddr(t *testing.T) HardwareAddr {
	t.Helper()
	h, err := ParseHardwareAddr("de:ad:be:ef:12:34")
	if err != nil {
		t.Fatalf("ParseHardwareAddr() error = %v", err)
	}
	return h
}

func TestNewMessageDefaults(t *testing.T) {
	h := testHWAddr(t)
	m := NewMessage(42, h)

	if m.Opcode != BootRequest {
		t.Errorf("Opcode = %d, want BootRequest", m.Opcode)
	}
	if m.Htype != HtypeEthernet {
		t.Errorf("Htype = %d, want HtypeEthernet", m.Htype)
	}
	if m.Xid != 42 {
		t.Errorf("Xid = %d, want 42", m.Xid)
	}
	if !m.CHAddr.Equal(h) {
		t.Errorf("CHAddr = %v, want %v", m.CHAddr, h)
	}
}

func TestAddOptionRejectsDuplicateTag(t *testing.T) {
	m := NewMessage(1, testHWAddr(t))
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeDiscover)); err != nil {
		t.Fatalf("first AddOption() error = %v", err)
	}
	err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeOffer))
	if err == nil {
		t.Fatal("second AddOption() with same tag = nil, want DuplicateOption error")
	}
	de, ok := err.(*Error)
	if !ok || de.Kind != DuplicateOption {
		t.Errorf("error = %v, want DuplicateOption", err)
	}
}

func TestAddOptionRejectsInvalidData(t *testing.T) {
	m := NewMessage(1, testHWAddr(t))
	err := m.AddOption(Option{Tag: OptSubnetMask, Data: []byte{1, 2}})
	if err == nil {
		t.Fatal("AddOption() with short subnet mask = nil, want error")
	}
}

func TestGetOptionFirstWins(t *testing.T) {
	m := &Message{
		Options: []Option{
			{Tag: OptHostName, Data: []byte("first")},
			{Tag: OptHostName, Data: []byte("second")},
		},
	}
	opt, ok := m.GetOption(OptHostName)
	if !ok {
		t.Fatal("GetOption() = false, want true")
	}
	if opt.String() != "first" {
		t.Errorf("GetOption() = %q, want %q", opt.String(), "first")
	}
}

func TestMessageType(t *testing.T) {
	m := NewMessage(1, testHWAddr(t))
	if got := m.MessageType(); got != 0 {
		t.Errorf("MessageType() on bare message = %d, want 0", got)
	}
	if err := m.AddOption(Uint8Option(OptDhcpMessageType, MsgTypeRequest)); err != nil {
		t.Fatalf("AddOption() error = %v", err)
	}
	if got := m.MessageType(); got != MsgTypeRequest {
		t.Errorf("MessageType() = %d, want MsgTypeRequest", got)
	}
}

package server

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

type fakeSocket struct {
	sent []sentMsg
}

type sentMsg struct {
	msg  *dhcp.Message
	dest net.IP
	port int
}

func (f *fakeSocket) Send(m *dhcp.Message, dest net.IP, port int) error {
	f.sent = append(f.sent, sentMsg{msg: m, dest: dest, port: port})
	return nil
}
func (f *fakeSocket) Receive() (*dhcp.Message, net.IP, error) { return nil, nil, nil }
func (f *fakeSocket) Close() error                            { return nil }

func testHWAddr(t *testing.T, s string) dhcp.HardwareAddr {
	t.Helper()
	h, err := dhcp.ParseHardwareAddr(s)
	if err != nil {
		t.Fatalf("ParseHardwareAddr(%q) error = %v", s, err)
	}
	return h
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeSocket) {
	t.Helper()
	store, err := NewLeaseStore(filepath.Join(t.TempDir(), "leases.json"), time.Minute)
	if err != nil {
		t.Fatalf("NewLeaseStore() error = %v", err)
	}
	sock := &fakeSocket{}
	d, err := NewDispatcher(Config{
		ServerIdentifier: net.ParseIP("192.168.1.1"),
		LeaseTime:        time.Hour,
		Pools: []PoolConfig{
			{Name: "default", Start: net.ParseIP("192.168.1.100"), End: net.ParseIP("192.168.1.102")},
		},
	}, store, sock)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d, sock
}

func TestNewDispatcherRejectsBadPercentOrdering(t *testing.T) {
	store, err := NewLeaseStore(filepath.Join(t.TempDir(), "leases.json"), time.Minute)
	if err != nil {
		t.Fatalf("NewLeaseStore() error = %v", err)
	}
	_, err = NewDispatcher(Config{
		RenewPercent:  0.9,
		RebindPercent: 0.5,
		Pools:         []PoolConfig{{Name: "x", Start: net.ParseIP("10.0.0.1"), End: net.ParseIP("10.0.0.2")}},
	}, store, &fakeSocket{})
	if err == nil {
		t.Fatal("NewDispatcher() with renew_percent >= rebind_percent = nil error, want ConfigError")
	}
}

func TestNewDispatcherRequiresAtLeastOnePool(t *testing.T) {
	store, err := NewLeaseStore(filepath.Join(t.TempDir(), "leases.json"), time.Minute)
	if err != nil {
		t.Fatalf("NewLeaseStore() error = %v", err)
	}
	if _, err := NewDispatcher(Config{}, store, &fakeSocket{}); err == nil {
		t.Fatal("NewDispatcher() with no pools = nil error, want ConfigError")
	}
}

func discoverMessage(t *testing.T, hw dhcp.HardwareAddr, xid uint32) *dhcp.Message {
	t.Helper()
	m := dhcp.NewMessage(xid, hw)
	mustAddAll(m, dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeDiscover))
	return m
}

func TestHandleDiscoverOffersFirstFree(t *testing.T) {
	d, sock := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")

	if err := d.handleDiscover(discoverMessage(t, hw, 1)); err != nil {
		t.Fatalf("handleDiscover() error = %v", err)
	}
	if len(sock.sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(sock.sent))
	}
	offer := sock.sent[0].msg
	if offer.MessageType() != dhcp.MsgTypeOffer {
		t.Errorf("MessageType() = %d, want MsgTypeOffer", offer.MessageType())
	}
	if !offer.YIAddr.Equal(net.ParseIP("192.168.1.100")) {
		t.Errorf("YIAddr = %v, want 192.168.1.100 (first free)", offer.YIAddr)
	}
}

func TestHandleRequestCommitsAndAcks(t *testing.T) {
	d, sock := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")

	req := dhcp.NewMessage(2, hw)
	mustAddAll(req,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeRequest),
		dhcp.IPv4Option(dhcp.OptRequestedIpAddr, net.ParseIP("192.168.1.100")),
	)
	if err := d.handleRequest(req); err != nil {
		t.Fatalf("handleRequest() error = %v", err)
	}
	if len(sock.sent) != 1 || sock.sent[0].msg.MessageType() != dhcp.MsgTypeAck {
		t.Fatalf("expected one ACK sent, got %+v", sock.sent)
	}

	lease, ok := d.store.Retrieve(keyFor(hw, ""))
	if !ok || lease.IPAddr != "192.168.1.100" {
		t.Errorf("store.Retrieve() = %+v, %v, want committed 192.168.1.100", lease, ok)
	}
}

func TestHandleRequestNaksAddressHeldByAnotherClient(t *testing.T) {
	d, sock := newTestDispatcher(t)
	owner := testHWAddr(t, "aa:aa:aa:aa:aa:aa")
	if err := d.store.Store(keyFor(owner, ""), Lease{HardwareAddr: owner.String(), IPAddr: "192.168.1.100"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	challenger := testHWAddr(t, "bb:bb:bb:bb:bb:bb")
	req := dhcp.NewMessage(3, challenger)
	mustAddAll(req,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeRequest),
		dhcp.IPv4Option(dhcp.OptRequestedIpAddr, net.ParseIP("192.168.1.100")),
	)
	if err := d.handleRequest(req); err != nil {
		t.Fatalf("handleRequest() error = %v", err)
	}
	if len(sock.sent) != 1 || sock.sent[0].msg.MessageType() != dhcp.MsgTypeNak {
		t.Fatalf("expected one NAK sent, got %+v", sock.sent)
	}
}

func TestHandleDiscoverPrefersHeldLease(t *testing.T) {
	d, sock := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")
	if err := d.store.Store(keyFor(hw, ""), Lease{HardwareAddr: hw.String(), IPAddr: "192.168.1.101"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := d.handleDiscover(discoverMessage(t, hw, 4)); err != nil {
		t.Fatalf("handleDiscover() error = %v", err)
	}
	if !sock.sent[0].msg.YIAddr.Equal(net.ParseIP("192.168.1.101")) {
		t.Errorf("YIAddr = %v, want 192.168.1.101 (held lease)", sock.sent[0].msg.YIAddr)
	}
}

func TestHandleDeclineQuarantinesAddress(t *testing.T) {
	d, _ := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")

	decline := dhcp.NewMessage(5, hw)
	mustAddAll(decline,
		dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeDecline),
		dhcp.IPv4Option(dhcp.OptRequestedIpAddr, net.ParseIP("192.168.1.100")),
	)
	if err := d.handleDecline(decline); err != nil {
		t.Fatalf("handleDecline() error = %v", err)
	}
	if !d.pools[0].IsQuarantined(net.ParseIP("192.168.1.100")) {
		t.Error("declined address not quarantined")
	}
}

func TestHandleReleaseFreesLease(t *testing.T) {
	d, _ := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")
	if err := d.store.Store(keyFor(hw, ""), Lease{HardwareAddr: hw.String(), IPAddr: "192.168.1.100"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	release := dhcp.NewMessage(6, hw)
	mustAddAll(release, dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeRelease))
	if err := d.handleRelease(release); err != nil {
		t.Fatalf("handleRelease() error = %v", err)
	}
	if _, ok := d.store.Retrieve(keyFor(hw, "")); ok {
		t.Error("lease still present after RELEASE")
	}
}

func TestHandleInformRepliesWithoutLeaseFields(t *testing.T) {
	d, sock := newTestDispatcher(t)
	hw := testHWAddr(t, "de:ad:be:ef:12:34")

	inform := dhcp.NewMessage(7, hw)
	inform.CIAddr = net.ParseIP("192.168.1.50")
	mustAddAll(inform, dhcp.Uint8Option(dhcp.OptDhcpMessageType, dhcp.MsgTypeInform))

	if err := d.handleInform(inform); err != nil {
		t.Fatalf("handleInform() error = %v", err)
	}
	ack := sock.sent[0].msg
	if ack.MessageType() != dhcp.MsgTypeAck {
		t.Errorf("MessageType() = %d, want MsgTypeAck", ack.MessageType())
	}
	if !ack.CIAddr.Equal(net.ParseIP("192.168.1.50")) {
		t.Errorf("CIAddr = %v, want echoed 192.168.1.50", ack.CIAddr)
	}
	if _, ok := ack.GetOption(dhcp.OptIpAddrLeaseTime); ok {
		t.Error("INFORM reply carries IpAddrLeaseTime, want none")
	}
}

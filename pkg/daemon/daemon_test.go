package daemon

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/client"
	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

func TestNewWithoutStoragePathLeavesHistoryNil(t *testing.T) {
	d, err := New(Config{Version: "v1.0.0"}, "client")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.History() != nil {
		t.Error("History() = non-nil, want nil when StoragePath is empty")
	}
	if d.Counters() == nil {
		t.Fatal("Counters() = nil")
	}
}

func TestNewWithStorageDisabledLeavesHistoryNil(t *testing.T) {
	d, err := New(Config{StoragePath: "disabled"}, "server")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.History() != nil {
		t.Error("History() = non-nil, want nil when StoragePath is \"disabled\"")
	}
}

func TestNewOpensHistoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	d, err := New(Config{StoragePath: path}, "client")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.History() == nil {
		t.Fatal("History() = nil, want open store")
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func testHWAddr(t *testing.T) dhcp.HardwareAddr {
	t.Helper()
	h, err := dhcp.ParseHardwareAddr("de:ad:be:ef:12:34")
	if err != nil {
		t.Fatalf("ParseHardwareAddr() error = %v", err)
	}
	return h
}

func TestClientStatusAdapterReportsState(t *testing.T) {
	eng := client.NewEngine(fakeIdleSocket{}, client.Config{HWAddr: testHWAddr(t)})
	a := &clientStatusAdapter{iface: "eth0", engine: eng}

	status := a.Status()
	if status.Interface != "eth0" {
		t.Errorf("Interface = %q, want eth0", status.Interface)
	}
	if status.State != "Init" {
		t.Errorf("State = %q, want Init", status.State)
	}
	if status.IP != "" {
		t.Errorf("IP = %q, want empty before a lease is bound", status.IP)
	}
}

// fakeIdleSocket never yields a packet; only used to build an Engine for
// the adapter test above, which never calls Run.
type fakeIdleSocket struct{}

func (fakeIdleSocket) Send(*dhcp.Message, net.IP, int) error { return nil }
func (fakeIdleSocket) Receive(time.Duration) (*dhcp.Message, net.IP, error) {
	return nil, nil, nil
}
func (fakeIdleSocket) Close() error { return nil }

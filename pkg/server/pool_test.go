package server

import (
	"net"
	"testing"
)

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("net.ParseIP(%q) = nil", s)
	}
	return ip
}

func TestPoolContains(t *testing.T) {
	p, err := NewPool("default", mustParseIP(t, "192.168.1.100"), mustParseIP(t, "192.168.1.110"))
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if !p.Contains(mustParseIP(t, "192.168.1.105")) {
		t.Error("Contains() = false for address inside range")
	}
	if p.Contains(mustParseIP(t, "192.168.1.111")) {
		t.Error("Contains() = true for address outside range")
	}
}

func TestPoolFirstFreeSkipsHeldAndQuarantined(t *testing.T) {
	p, err := NewPool("default", mustParseIP(t, "192.168.1.100"), mustParseIP(t, "192.168.1.102"))
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	p.Quarantine(mustParseIP(t, "192.168.1.100"))

	held := map[string]bool{"192.168.1.101": true}
	ip, ok := p.FirstFree(func(ip net.IP) bool { return held[ip.String()] })
	if !ok {
		t.Fatal("FirstFree() = false, want true")
	}
	if !ip.Equal(mustParseIP(t, "192.168.1.102")) {
		t.Errorf("FirstFree() = %v, want 192.168.1.102", ip)
	}
}

func TestPoolFirstFreeExhausted(t *testing.T) {
	p, err := NewPool("default", mustParseIP(t, "192.168.1.100"), mustParseIP(t, "192.168.1.100"))
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	p.Quarantine(mustParseIP(t, "192.168.1.100"))
	if _, ok := p.FirstFree(func(net.IP) bool { return false }); ok {
		t.Error("FirstFree() = true on exhausted pool, want false")
	}
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("192.168.1.100-192.168.1.200")
	if err != nil {
		t.Fatalf("ParseRange() error = %v", err)
	}
	if !start.Equal(mustParseIP(t, "192.168.1.100")) || !end.Equal(mustParseIP(t, "192.168.1.200")) {
		t.Errorf("ParseRange() = %v, %v", start, end)
	}
	if _, _, err := ParseRange("not-a-range"); err == nil {
		t.Error("ParseRange(\"not-a-range\") = nil error, want error")
	}
}

package controlapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vulcan-rs/vulcan/pkg/server"
)

type fakeServerLeases struct {
	leases map[server.StorageKey]server.Lease
}

func (f *fakeServerLeases) Leases() map[server.StorageKey]server.Lease { return f.leases }

type fakeClientStatus struct {
	status ClientStatus
}

func (f *fakeClientStatus) Status() ClientStatus { return f.status }

func TestHandleStatusReturnsOK(t *testing.T) {
	s := NewServer(Config{Version: "v1.0.0"})
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	s.auth(s.handleStatus)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body["version"] != "v1.0.0" {
		t.Errorf("version = %q, want v1.0.0", body["version"])
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	s := NewServer(Config{Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	s.auth(s.handleStatus)(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	s := NewServer(Config{Token: "secret", Version: "v1.0.0"})
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.auth(s.handleStatus)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandleLeasesListsServerLeases(t *testing.T) {
	key := server.StorageKey{HardwareAddr: "de:ad:be:ef:12:34"}
	s := NewServer(Config{Server: &fakeServerLeases{leases: map[server.StorageKey]server.Lease{
		key: {HardwareAddr: key.HardwareAddr, IPAddr: "192.168.1.50"},
	}}})

	req := httptest.NewRequest(http.MethodGet, "/v1/leases", nil)
	w := httptest.NewRecorder()
	s.handleLeases(w, req)

	var leases []server.Lease
	if err := json.Unmarshal(w.Body.Bytes(), &leases); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(leases) != 1 || leases[0].IPAddr != "192.168.1.50" {
		t.Errorf("leases = %+v", leases)
	}
}

func TestHandleLeaseReportsClientStatus(t *testing.T) {
	s := NewServer(Config{Client: &fakeClientStatus{status: ClientStatus{Interface: "eth0", State: "Bound", IP: "192.168.1.50"}}})

	req := httptest.NewRequest(http.MethodGet, "/v1/lease", nil)
	w := httptest.NewRecorder()
	s.handleLease(w, req)

	var status ClientStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if status.State != "Bound" || status.IP != "192.168.1.50" {
		t.Errorf("status = %+v", status)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	if !rl.get("10.0.0.1").Allow() {
		t.Fatal("first request should be allowed")
	}
	if rl.get("10.0.0.1").Allow() {
		t.Error("second immediate request should be blocked by the zero refill rate")
	}
}

package client

import "testing"

func TestTransitionTableMatchesSpec(t *testing.T) {
	want := map[DhcpState]map[DhcpState]bool{
		Init:           set(Selecting),
		InitReboot:     set(Init, InitReboot, Bound),
		Selecting:      set(SelectingSent),
		SelectingSent:  set(Selecting, Requesting, Init),
		Rebooting:      set(Init, InitReboot, Bound),
		Requesting:     set(RequestingSent),
		RequestingSent: set(Init, Requesting, Bound),
		Bound:          set(Bound, Renewing),
		Renewing:       set(RenewingSent),
		RenewingSent:   set(Init, Renewing, Rebinding, Bound),
		Rebinding:      set(RebindingSent),
		RebindingSent:  set(Init, Bound),
	}

	allStates := []DhcpState{Init, InitReboot, Selecting, SelectingSent, Rebooting,
		Requesting, RequestingSent, Bound, Renewing, RenewingSent, Rebinding, RebindingSent}

	for _, from := range allStates {
		for _, to := range allStates {
			_, err := transition(from, to)
			wantOK := want[from][to]
			gotOK := err == nil
			if gotOK != wantOK {
				t.Errorf("transition(%s, %s): ok=%v, want %v", from, to, gotOK, wantOK)
			}
		}
	}
}

func TestIllegalTransitionError(t *testing.T) {
	_, err := transition(Bound, Requesting)
	if err == nil {
		t.Fatal("transition(Bound, Requesting) = nil error, want IllegalTransitionError")
	}
	if _, ok := err.(*IllegalTransitionError); !ok {
		t.Errorf("error type = %T, want *IllegalTransitionError", err)
	}
}

func TestLeaseStateReset(t *testing.T) {
	s := LeaseState{OfferedLeaseTime: 3600, RenewalTime: 1800}
	s.reset(42)
	if s.Xid != 42 {
		t.Errorf("Xid = %d, want 42", s.Xid)
	}
	if s.OfferedLeaseTime != 0 || s.RenewalTime != 0 {
		t.Error("reset() did not clear prior negotiation state")
	}
}

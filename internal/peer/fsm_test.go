package peer

import "testing"

// TestTransitionTableTotal asserts that Lookup never panics for any
// (state, event) combination and that every transition it does define
// points at one of the six RFC 4271 states (P6).
func TestTransitionTableTotal(t *testing.T) {
	valid := map[State]bool{}
	for _, s := range allStates {
		valid[s] = true
	}

	for _, s := range allStates {
		for _, e := range allEvents {
			tr, ok := Lookup(s, e)
			if !ok {
				continue // RFC 4271 leaves this combination as "ignore"; not a totality failure
			}
			if !valid[tr.NextState] {
				t.Fatalf("Lookup(%s, %s) returned out-of-range next state %v", s, e, tr.NextState)
			}
		}
	}
}

// TestEstablishedOnlyFromKeepaliveInOpenConfirm checks the one
// transition the spec calls out explicitly.
func TestEstablishedOnlyFromKeepaliveInOpenConfirm(t *testing.T) {
	tr, ok := Lookup(StateOpenConfirm, EventKeepaliveMsg)
	if !ok || tr.NextState != StateEstablished {
		t.Fatalf("expected OpenConfirm+KeepaliveMsg -> Established, got %+v ok=%v", tr, ok)
	}
}

func TestHoldTimerExpiresReturnsToIdleFromEveryActiveState(t *testing.T) {
	for _, s := range []State{StateOpenSent, StateOpenConfirm, StateEstablished} {
		tr, ok := Lookup(s, EventHoldTimerExpires)
		if !ok || tr.NextState != StateIdle {
			t.Fatalf("state %s: expected HoldTimerExpires -> Idle, got %+v ok=%v", s, tr, ok)
		}
		if tr.Actions&ActionSendNotification == 0 {
			t.Fatalf("state %s: expected HoldTimerExpires to send a NOTIFICATION", s)
		}
	}
}

func TestManualStartFromIdleGoesToConnect(t *testing.T) {
	tr, ok := Lookup(StateIdle, EventManualStart)
	if !ok || tr.NextState != StateConnect {
		t.Fatalf("expected Idle+ManualStart -> Connect, got %+v ok=%v", tr, ok)
	}
}

package breaker

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)

	if b.State() != StateClosed {
		t.Fatalf("expected initial state CLOSED, got %s", b.State())
	}

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED below threshold, got %s", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected Allow to reject while open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after non-consecutive failures, got %s", b.State())
	}
	if b.Failures() != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", b.Failures())
	}
}

func TestBreaker_HalfOpenProbeAfterResetTimeout(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected rejection before reset timeout")
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("expected probe to be allowed after reset timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN during probe, got %s", b.State())
	}
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	b := New(1, 5*time.Millisecond)

	b.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected probe allowed")
	}
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after successful probe, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatalf("expected Allow after close")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := New(2, 5*time.Millisecond)

	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected probe allowed")
	}
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after failed probe, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected rejection right after failed probe")
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	b := New(1, time.Minute)

	type hop struct{ from, to State }
	var hops []hop
	b.OnStateChange(func(from, to State) {
		hops = append(hops, hop{from, to})
	})

	b.RecordFailure()
	if len(hops) != 1 || hops[0].from != StateClosed || hops[0].to != StateOpen {
		t.Fatalf("unexpected transitions: %+v", hops)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "CLOSED",
		StateOpen:     "OPEN",
		StateHalfOpen: "HALF_OPEN",
		State(42):     "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

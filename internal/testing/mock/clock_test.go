package mock

import (
	"testing"
	"time"

	"coherence/internal/portal"
)

func TestMockClock_StartsStopped(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) || !clock.Now().Equal(start) {
		t.Errorf("expected clock to stay at %v", start)
	}
	if clock.Elapsed() != 0 {
		t.Errorf("expected no elapsed time, got %v", clock.Elapsed())
	}
}

func TestMockClock_ZeroTimeUsesNow(t *testing.T) {
	before := time.Now()
	clock := NewMockClock(time.Time{})
	after := time.Now()

	if now := clock.Now(); now.Before(before) || now.After(after) {
		t.Errorf("expected zero start to resolve to the current time, got %v", now)
	}
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(15 * time.Millisecond)
	clock.Advance(30 * time.Second)
	if want := start.Add(30*time.Second + 15*time.Millisecond); !clock.Now().Equal(want) {
		t.Errorf("expected %v, got %v", want, clock.Now())
	}

	clock.Set(start.Add(time.Hour))
	if clock.Elapsed() != time.Hour {
		t.Errorf("expected an hour elapsed after Set, got %v", clock.Elapsed())
	}
}

func TestMockClock_Tick(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Tick(time.Second)

	first := clock.Now()
	second := clock.Now()
	if !first.Equal(start) || second.Sub(first) != time.Second {
		t.Errorf("expected consecutive reads one second apart, got %v and %v", first, second)
	}

	clock.Tick(0)
	if !clock.Now().Equal(clock.Now()) {
		t.Error("expected clock to stop after a zero tick")
	}
}

func TestMockClock_DrivesPortalTimeout(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	p := portal.New(portal.WithName("slow"), portal.WithTimeout(time.Minute), portal.WithClock(clock))
	p.SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Pending()
	})

	if result := p.Test(nil); result.Code != portal.ResultPending {
		t.Fatalf("expected pending before the deadline, got %v", result.Code)
	}

	clock.Advance(2 * time.Minute)
	result := p.Test(nil)
	if result.Code != portal.ResultFailure {
		t.Fatalf("expected the portal to time out, got %v", result.Code)
	}
	if result.Message != portal.TimeoutMessagePrefix+"slow" {
		t.Errorf("unexpected timeout message %q", result.Message)
	}
}

func TestMockClock_TickEventuallyExpiresPortal(t *testing.T) {
	clock := NewMockClock(time.Time{})
	clock.Tick(time.Second)
	p := portal.New(portal.WithTimeout(3*time.Second), portal.WithClock(clock))
	p.SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Pending()
	})

	for i := 0; i < 10 && !p.Done(); i++ {
		p.Test(nil)
	}
	if !p.Done() {
		t.Fatal("expected ticking time to expire the portal")
	}
}

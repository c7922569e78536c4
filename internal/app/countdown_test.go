package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"webinar-quiz-client/internal/app"
)

func TestCountdownRecomputesFromClock(t *testing.T) {
	clock := newFakeClock()
	countdown := app.NewCountdown(epoch.Add(90*time.Second), clock.Now)

	if got := countdown.RemainingSeconds(); got != 90 {
		t.Fatalf("expected 90s remaining, got %d", got)
	}

	// A long suspension must not desynchronize the countdown.
	clock.Set(75*time.Second + 400*time.Millisecond)
	if got := countdown.RemainingSeconds(); got != 14 {
		t.Fatalf("expected 14s remaining, got %d", got)
	}

	clock.Set(10 * time.Minute)
	if got := countdown.Remaining(); got != 0 {
		t.Fatalf("expected remaining clamped to 0, got %v", got)
	}
}

func TestCountdownFiresExpiryOnce(t *testing.T) {
	clock := newFakeClock()
	countdown := app.NewCountdown(epoch.Add(2*time.Second), clock.Now)

	if _, expired := countdown.Tick(); expired {
		t.Fatalf("expected no expiry before deadline")
	}
	clock.Set(2 * time.Second)
	if remaining, expired := countdown.Tick(); !expired || remaining != 0 {
		t.Fatalf("expected expiry at deadline, got remaining=%d expired=%v", remaining, expired)
	}
	clock.Set(5 * time.Second)
	if _, expired := countdown.Tick(); expired {
		t.Fatalf("expected expiry to fire only once")
	}
}

func TestCountdownRunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	clock.Set(time.Minute)
	countdown := app.NewCountdown(epoch, clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	var ticks, expiries atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		countdown.Run(ctx, 2*time.Millisecond,
			func(int) { ticks.Add(1) },
			func() { expiries.Add(1) },
		)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown did not stop after cancel")
	}
	if ticks.Load() < 5 {
		t.Fatalf("expected several ticks, got %d", ticks.Load())
	}
	if expiries.Load() != 1 {
		t.Fatalf("expected exactly one expiry callback, got %d", expiries.Load())
	}
}

func TestFormatClockAndUrgency(t *testing.T) {
	cases := []struct {
		seconds int
		clock   string
		urgency string
	}{
		{seconds: 0, clock: "00:00", urgency: "critical"},
		{seconds: 59, clock: "00:59", urgency: "critical"},
		{seconds: 60, clock: "01:00", urgency: "warning"},
		{seconds: 299, clock: "04:59", urgency: "warning"},
		{seconds: 300, clock: "05:00", urgency: "calm"},
		{seconds: 3725, clock: "62:05", urgency: "calm"},
		{seconds: -3, clock: "00:00", urgency: "critical"},
	}
	for _, tc := range cases {
		if got := app.FormatClock(tc.seconds); got != tc.clock {
			t.Errorf("FormatClock(%d) = %s, want %s", tc.seconds, got, tc.clock)
		}
		if got := app.Urgency(tc.seconds); got != tc.urgency {
			t.Errorf("Urgency(%d) = %s, want %s", tc.seconds, got, tc.urgency)
		}
	}
}

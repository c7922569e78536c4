package app

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTickInterval is the countdown refresh cadence.
const DefaultTickInterval = time.Second

// Countdown turns a fixed deadline into remaining time and a one-shot expiry signal.
// Remaining time is always recomputed from the clock, so a suspended process
// resumes with the correct value.
type Countdown struct {
	expiresAt time.Time
	now       func() time.Time

	mu    sync.Mutex
	fired bool
}

func NewCountdown(expiresAt time.Time, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{expiresAt: expiresAt, now: now}
}

// Remaining returns max(0, expiresAt-now).
func (c *Countdown) Remaining() time.Duration {
	remaining := c.expiresAt.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds returns the whole seconds left.
func (c *Countdown) RemainingSeconds() int {
	return int(c.Remaining() / time.Second)
}

// Tick evaluates the countdown once. expired is true only on the first tick that
// observes the deadline.
func (c *Countdown) Tick() (remaining int, expired bool) {
	left := c.Remaining()
	c.mu.Lock()
	defer c.mu.Unlock()
	if left <= 0 && !c.fired {
		c.fired = true
		return 0, true
	}
	return int(left / time.Second), false
}

// Run ticks immediately and then every interval until ctx is cancelled.
// onExpire runs at most once.
func (c *Countdown) Run(ctx context.Context, interval time.Duration, onTick func(remaining int), onExpire func()) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		remaining, expired := c.Tick()
		if onTick != nil {
			onTick(remaining)
		}
		if expired && onExpire != nil {
			onExpire()
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Urgency buckets the remaining time for display.
func Urgency(seconds int) string {
	switch {
	case seconds < 60:
		return "critical"
	case seconds < 300:
		return "warning"
	default:
		return "calm"
	}
}

package app

import (
	"context"
	"time"
)

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Countdown emits the remaining whole seconds until a deadline and fires an
// expiry callback once when it reaches zero.
type Countdown struct {
	interval  time.Duration
	now       func() time.Time
	newTicker func(time.Duration) Ticker
}

func NewCountdown(interval time.Duration, now func() time.Time, newTicker func(time.Duration) Ticker) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	if now == nil {
		now = time.Now
	}
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &Countdown{interval: interval, now: now, newTicker: newTicker}
}

// Remaining returns whole seconds left until deadline, floored at zero.
func Remaining(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Run blocks until the deadline is reached or ctx is canceled. It calls tick
// with the remaining seconds immediately and on every interval, and calls
// expire exactly once when the remaining time hits zero. It reports whether
// expire was called.
func (c *Countdown) Run(ctx context.Context, deadline time.Time, tick func(remaining int), expire func()) bool {
	if c.step(deadline, tick, expire) {
		return true
	}

	ticker := c.newTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C():
			if ctx.Err() != nil {
				return false
			}
			if c.step(deadline, tick, expire) {
				return true
			}
		}
	}
}

func (c *Countdown) step(deadline time.Time, tick func(int), expire func()) bool {
	remaining := Remaining(deadline, c.now())
	if tick != nil {
		tick(remaining)
	}
	if remaining > 0 {
		return false
	}
	if expire != nil {
		expire()
	}
	return true
}

package network

import (
	"context"
	"time"
)

const (
	retry    = 10 * time.Second
	maxDelay = 2 * time.Minute
)

// Retry is a growing delay between reconnection attempts.
type Retry struct {
	t     time.Duration
	base  time.Duration
	left  int
	limit int
}

// NewRetry makes a retry with the initial delay, attempts < 1 means unlimited.
func NewRetry(attempts int, delay time.Duration) Retry {
	if delay <= 0 {
		delay = retry
	}
	return Retry{t: delay, base: delay, left: attempts, limit: attempts}
}

// Fail waits the current delay and doubles it for the next time.
// Returns false when no attempts are left or the context is done.
func (r *Retry) Fail(ctx context.Context) bool {
	if r.limit > 0 {
		if r.left <= 0 {
			return false
		}
		r.left--
	}
	timer := time.NewTimer(r.t)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	r.grow(2)
	return true
}

// grow multiplies the delay up to maxDelay, or the initial delay if that is longer.
func (r *Retry) grow(x int) {
	if x < 1 {
		return
	}
	limit := max(r.base, maxDelay)
	if r.t > limit/time.Duration(x) {
		r.t = limit
		return
	}
	r.t = min(r.t*time.Duration(x), limit)
}

func (r *Retry) Success()            { r.t = r.base; r.left = r.limit }
func (r *Retry) Time() time.Duration { return r.t }

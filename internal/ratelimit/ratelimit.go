// Package ratelimit paces outbound search calls. The limiter owns its
// own last-call clock so concurrent requests share one pacing rule
// without hidden package-level state.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limiter serializes calls to roughly one per interval.
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	last     time.Time
}

// New creates a limiter on the real clock.
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, realClock{})
}

// NewWithClock creates a limiter on an injected clock.
func NewWithClock(interval time.Duration, clock Clock) *Limiter {
	return &Limiter{clock: clock, interval: interval}
}

// Wait blocks until the interval since the previous call has elapsed,
// or the context is done. The slot is claimed either way so a caller
// that proceeds despite cancellation stays paced.
func (l *Limiter) Wait(ctx context.Context) {
	l.mu.Lock()
	now := l.clock.Now()
	wait := l.interval - now.Sub(l.last)
	if wait < 0 {
		wait = 0
	}
	l.last = now.Add(wait)
	l.mu.Unlock()

	if wait == 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}
	l.clock.Sleep(wait)
}

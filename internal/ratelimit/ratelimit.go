// Package ratelimit provides a token-bucket limiter shared by the
// Google API clients. All mutable limiter state lives behind a mutex,
// so a limiter value can be handed to whichever component issues
// external queries.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// minWait is the minimum wait when tokens are insufficient.
const minWait = 10 * time.Millisecond

// MinQPS clamps the configured rate to avoid division by zero.
const MinQPS = 0.1

// Limiter is a token bucket. Each external call acquires a cost in
// query units; the bucket refills at the configured rate.
type Limiter struct {
	mu             sync.Mutex
	clock          Clock
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefill     time.Time
	throttledUntil time.Time
}

// New creates a limiter that refills qps units per second and holds at
// most burst units. A typical Gmail-safe configuration is qps=5, burst=25.
func New(qps float64, burst int) *Limiter {
	return NewWithClock(realClock{}, qps, burst)
}

// NewWithClock creates a limiter with an injected clock for tests.
// Panics if clk is nil.
func NewWithClock(clk Clock, qps float64, burst int) *Limiter {
	if clk == nil {
		panic("ratelimit: Limiter requires a non-nil Clock")
	}
	if qps < MinQPS {
		qps = MinQPS
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		clock:      clk,
		tokens:     float64(burst),
		capacity:   float64(burst),
		refillRate: qps,
		lastRefill: clk.Now(),
	}
}

// Acquire blocks until cost units are available or the context is done.
func (l *Limiter) Acquire(ctx context.Context, cost int) error {
	for {
		wait := l.reserve(float64(cost))
		if wait == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}
}

// Throttle drains the bucket and suspends refills for the given
// duration. Used when the API reports quota exhaustion.
func (l *Limiter) Throttle(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.clock.Now().Add(d)
	// Never shorten an existing throttle window.
	if until.After(l.throttledUntil) {
		l.throttledUntil = until
	}
	l.lastRefill = l.throttledUntil
	l.tokens = 0
}

// Available returns the current token count.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// reserve takes cost tokens if possible, otherwise returns how long to
// wait before retrying.
func (l *Limiter) reserve(cost float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Before(l.throttledUntil) {
		return l.throttledUntil.Sub(now)
	}

	l.refill()

	if l.tokens >= cost {
		l.tokens -= cost
		return 0
	}

	deficit := cost - l.tokens
	wait := time.Duration(deficit / l.refillRate * float64(time.Second))
	if wait < minWait {
		wait = minWait
	}
	return wait
}

// refill credits elapsed time. Caller must hold the lock.
func (l *Limiter) refill() {
	now := l.clock.Now()
	// During a throttle window lastRefill stays pinned to the window
	// end so the suspended time is never credited.
	if now.Before(l.throttledUntil) {
		return
	}
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.lastRefill = now
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}

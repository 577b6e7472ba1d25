package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound requests.
type Limiter interface {
	// Allow takes a token if one is available.
	Allow() bool
	// Wait blocks until a token is taken or ctx is done.
	Wait(ctx context.Context) error
	// Reset refills the limiter.
	Reset()
}

// TokenBucket is a continuously refilling token bucket.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64 // tokens per second
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket creates a full bucket holding capacity tokens that refills
// at capacity tokens per period.
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if period <= 0 {
		period = time.Second
	}
	tb := &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		rate:     float64(capacity) / period.Seconds(),
		now:      time.Now,
	}
	tb.last = tb.now()
	return tb
}

// NewPerMinute is a bucket allowing n requests per minute.
func NewPerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		delay, ok := tb.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token or reports how long until one is due.
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	missing := 1 - tb.tokens
	return time.Duration(missing / tb.rate * float64(time.Second)), false
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.last = tb.now()
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff yields the wait before the next attempt.
type Backoff interface {
	NextDelay(attempt int) time.Duration
	Reset()
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at
// MaxDelay, with +/- JitterFactor randomisation.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || b.BaseDelay <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.JitterFactor > 0 {
		jitter := delay * b.JitterFactor
		delay += rand.Float64()*2*jitter - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (b *ExponentialBackoff) Reset() {}

// ConstantBackoff always waits Delay.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b ConstantBackoff) NextDelay(int) time.Duration { return b.Delay }
func (b ConstantBackoff) Reset()                      {}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call; values below 1 mean one attempt.
	MaxAttempts int
	Backoff     Backoff
	// RetryIf decides whether err warrants another attempt.
	RetryIf func(err error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultPolicy retries transient failures up to maxAttempts times with an
// exponential backoff starting at baseDelay.
func DefaultPolicy(maxAttempts int, baseDelay time.Duration) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    baseDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
			JitterFactor: 0.1,
		},
		RetryIf: DefaultRetryIf,
	}
}

// DefaultRetryIf retries only errors classified as transient. An expired
// session or a challenge page needs the caller's attention instead.
func DefaultRetryIf(err error) bool {
	var e *errs.Error
	if !errors.As(err, &e) {
		return false
	}
	return errs.IsRetryable(e.Type)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx is done.
func Do(ctx context.Context, p *Policy, op func(ctx context.Context) error) error {
	if p == nil {
		p = DefaultPolicy(3, time.Second)
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if p.Backoff != nil {
		p.Backoff.Reset()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{"attempt": attempt})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.NextDelay(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		log.WithError(err).WarnWithFields("Retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay_ms":     delay.Milliseconds(),
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

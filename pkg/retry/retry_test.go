package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "yggharvest/pkg/errors"
)

func fastPolicy(attempts int) *Policy {
	return &Policy{MaxAttempts: attempts, Backoff: ConstantBackoff{Delay: time.Millisecond}}
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) }

	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeTransient, "bad gateway", 502)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	for _, typ := range []errs.ErrorType{errs.ErrorTypeAuthExpired, errs.ErrorTypeMalformedContent} {
		calls := 0
		err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
			calls++
			return errs.New(typ, "no", 403)
		})
		assert.Equal(t, 1, calls, typ)
		assert.Equal(t, typ, errs.TypeOf(err))
	}

	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return errors.New("unclassified")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "unclassified errors are not retried")
}

func TestDoExhausts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "down", 503)
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.True(t, errs.IsTransient(err), "last error stays reachable")
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Policy{MaxAttempts: 10, Backoff: ConstantBackoff{Delay: time.Hour}}

	calls := 0
	err := Do(ctx, p, func(ctx context.Context) error {
		calls++
		cancel()
		return errs.New(errs.ErrorTypeTransient, "down", 503)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.Wrap(errs.ErrorTypeTransient, "reset", errors.New("ECONNRESET"))
		}
		return "feed", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "feed", got)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), &Policy{}, func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "x", 500)
	})
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoff(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, 2*time.Second, b.NextDelay(1))
	assert.Equal(t, 4*time.Second, b.NextDelay(2))
	assert.Equal(t, 5*time.Second, b.NextDelay(3))

	jittered := &ExponentialBackoff{BaseDelay: time.Second, Multiplier: 2, JitterFactor: 0.5}
	for i := 0; i < 50; i++ {
		d := jittered.NextDelay(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}

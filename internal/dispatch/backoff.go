package dispatch

import (
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// RetryPolicy bounds a retry session.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 1s base, up to 500ms of
// jitter and a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: domain.DefaultMaxAttempts,
		BaseDelay:   domain.DefaultRetryBase,
		MaxJitter:   domain.DefaultRetryJitter,
		MaxDelay:    domain.DefaultRetryCap,
	}
}

// backoff yields the wait before each attempt after the first: base,
// 2·base, 4·base... capped at MaxDelay, each plus jitter(MaxJitter), and
// stops after maxAttempts-1 values.
func (p RetryPolicy) backoff(maxAttempts int, jitter func(time.Duration) time.Duration) retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = domain.DefaultRetryBase
	}

	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithMaxRetries(uint64(max(maxAttempts-1, 0)), b)

	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if stop {
			return 0, true
		}
		return d + jitter(p.MaxJitter), false
	})
}

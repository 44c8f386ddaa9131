package domain

import (
	"context"
	"time"
)

// Clock provides the current time and a cancellable wait. Implementations may
// be real (production) or deterministic (testing).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep suspends the caller for d or until ctx is done, whichever comes
	// first. It returns ctx.Err() when the context ends the wait early.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep waits on a timer without blocking an OS thread.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Ensure RealClock implements Clock at compile time.
var _ Clock = RealClock{}

package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/domain/domaintest"
)

func TestRealClock(t *testing.T) {
	t.Run("returns current time", func(t *testing.T) {
		clock := domain.RealClock{}
		before := time.Now()
		got := clock.Now()
		after := time.Now()

		assert.False(t, got.Before(before), "clock.Now() should not be before reference time")
		assert.False(t, got.After(after), "clock.Now() should not be after reference time")
	})

	t.Run("sleep waits for the duration", func(t *testing.T) {
		clock := domain.RealClock{}
		start := time.Now()
		require.NoError(t, clock.Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("sleep returns early on cancellation", func(t *testing.T) {
		clock := domain.RealClock{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := clock.Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.True(t, clock.Now().Equal(fixedTime))
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		clock.Advance(1 * time.Hour)

		assert.True(t, clock.Now().Equal(fixedTime.Add(1*time.Hour)))
	})

	t.Run("sleep records durations and advances", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		require.NoError(t, clock.Sleep(context.Background(), time.Second))
		require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))

		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
		assert.True(t, clock.Now().Equal(fixedTime.Add(3*time.Second)))
	})

	t.Run("sleep honours cancelled context", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, clock.Sleep(ctx, time.Second), context.Canceled)
		assert.Empty(t, clock.Sleeps())
	})
}

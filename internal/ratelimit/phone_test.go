package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/dispatch"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/ratelimit"
	redisclient "github.com/aelexs/otp-dispatch/internal/redis"
)

var _ dispatch.PhoneLimiter = (*ratelimit.PhoneLimiter)(nil)

func newTestLimiter(t *testing.T, cfg ratelimit.Config) (*ratelimit.PhoneLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisclient.NewClient(redisclient.Config{Addr: mr.Addr(), Timeout: time.Second})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	return ratelimit.NewPhoneLimiter(client.RDB, cfg), mr
}

func TestPhoneLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows exactly up to the limit", func(t *testing.T) {
		rl, _ := newTestLimiter(t, ratelimit.Config{Limit: 3, Window: time.Minute})

		for i := 0; i < 3; i++ {
			require.NoError(t, rl.Allow(ctx, "abc"), "request %d should be allowed", i+1)
		}
		assert.ErrorIs(t, rl.Allow(ctx, "abc"), domain.ErrPhoneRateLimited)
	})

	t.Run("numbers are counted separately", func(t *testing.T) {
		rl, _ := newTestLimiter(t, ratelimit.Config{Limit: 1, Window: time.Minute})

		require.NoError(t, rl.Allow(ctx, "aaa"))
		require.NoError(t, rl.Allow(ctx, "bbb"))
		assert.ErrorIs(t, rl.Allow(ctx, "aaa"), domain.ErrPhoneRateLimited)
	})

	t.Run("sets TTL to the window once", func(t *testing.T) {
		rl, mr := newTestLimiter(t, ratelimit.Config{Limit: 10, Window: 15 * time.Minute})

		require.NoError(t, rl.Allow(ctx, "ttl"))
		key := "otp:dispatch:phone:ttl"
		assert.Equal(t, 15*time.Minute, mr.TTL(key))

		mr.FastForward(5 * time.Minute)
		require.NoError(t, rl.Allow(ctx, "ttl"))
		assert.Equal(t, 10*time.Minute, mr.TTL(key), "subsequent increments keep the original expiry")
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		rl, mr := newTestLimiter(t, ratelimit.Config{Limit: 1, Window: time.Minute})

		require.NoError(t, rl.Allow(ctx, "reset"))
		require.ErrorIs(t, rl.Allow(ctx, "reset"), domain.ErrPhoneRateLimited)

		mr.FastForward(61 * time.Second)
		assert.NoError(t, rl.Allow(ctx, "reset"))
	})

	t.Run("fails closed when redis is down", func(t *testing.T) {
		rl, mr := newTestLimiter(t, ratelimit.Config{})
		mr.Close()

		err := rl.Allow(ctx, "down")
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.NotErrorIs(t, err, domain.ErrPhoneRateLimited)
	})
}

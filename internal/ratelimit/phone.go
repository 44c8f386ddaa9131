// Package ratelimit throttles OTP dispatches per mobile number using a
// fixed-window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aelexs/otp-dispatch/internal/domain"
	redisclient "github.com/aelexs/otp-dispatch/internal/redis"
)

var tracer = otel.Tracer("otp-dispatch/ratelimit")

// fixedWindowScript increments a counter and sets its TTL on the first
// write, atomically. Works on Redis versions without EXPIRE ... NX.
const fixedWindowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

const keyPrefix = "otp:dispatch:phone:"

// Config bounds dispatches per number.
type Config struct {
	Limit  int
	Window time.Duration
}

// PhoneLimiter is a fail-closed per-number limiter: Redis errors deny the
// request rather than letting it through.
type PhoneLimiter struct {
	cmd    redisclient.Cmdable
	limit  int
	window time.Duration
}

// NewPhoneLimiter creates a PhoneLimiter.
func NewPhoneLimiter(cmd redisclient.Cmdable, cfg Config) *PhoneLimiter {
	if cfg.Limit <= 0 {
		cfg.Limit = domain.DefaultDispatchesPerPhone
	}
	if cfg.Window <= 0 {
		cfg.Window = domain.DefaultRateLimitWindow
	}
	return &PhoneLimiter{cmd: cmd, limit: cfg.Limit, window: cfg.Window}
}

// Allow counts one dispatch for phoneHash. It returns an error wrapping
// domain.ErrPhoneRateLimited once the window's quota is used up, and one
// wrapping domain.ErrUnavailable when Redis cannot be reached.
func (l *PhoneLimiter) Allow(ctx context.Context, phoneHash string) error {
	ctx, cancel := context.WithTimeout(ctx, domain.RedisTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "redis.ratelimit.allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
	)

	seconds := max(int(l.window/time.Second), 1)
	count, err := l.cmd.Eval(ctx, fixedWindowScript, []string{keyPrefix + phoneHash}, seconds).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rate limit check: %w: %w", domain.ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Int64("ratelimit.count", count))
	if count > int64(l.limit) {
		return fmt.Errorf("%d dispatches within %s: %w", count-1, l.window, domain.ErrPhoneRateLimited)
	}
	return nil
}

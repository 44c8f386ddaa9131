package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/otp"
)

// RetryDispatch sends until an attempt succeeds, a non-retryable failure
// occurs, ctx is done, or maxAttempts (RetryPolicy.MaxAttempts when <= 0)
// are used up. The same code is re-sent on every attempt; each attempt gets
// its own correlation id and X-Retry-* headers.
func (s *Service) RetryDispatch(ctx context.Context, mobileNumber string, opts Options, maxAttempts int) RetryOutcome {
	if maxAttempts <= 0 {
		maxAttempts = s.retry.MaxAttempts
	}

	start := s.clock.Now()
	out := RetryOutcome{SessionID: otp.NewCorrelationID()}
	logger := s.logger.With(slog.String("retry_session", out.SessionID.String()))
	backoff := s.retry.backoff(maxAttempts, s.jitter)
	m := &machine[RetryState]{state: RetryAttempting, allow: canRetryTransition}
	code := opts.OTP

	move := func(next RetryState) {
		if err := m.to(next); err != nil {
			logger.ErrorContext(ctx, "otp.retry.state", slog.String("error", err.Error()))
			m.state = RetryAborted
		}
	}

	for attempt := 1; m.state == RetryAttempting; attempt++ {
		attemptOpts := opts
		attemptOpts.CorrelationID = otp.NewCorrelationID()
		attemptOpts.Headers = lo.Assign(opts.Headers, map[string]string{
			domain.HeaderRetryAttempt: strconv.Itoa(attempt),
			domain.HeaderRetryMax:     strconv.Itoa(maxAttempts),
			domain.HeaderRetryID:      out.SessionID.String(),
		})

		res := s.dispatch(ctx, mobileNumber, code, attemptOpts, attempt == 1)
		out.Attempts = attempt
		out.LastResult = res
		code = lo.CoalesceOrEmpty(code, res.OTP)
		retryAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("gateway", res.Gateway)))

		switch {
		case res.Success:
			move(RetrySucceeded)
			continue
		case res.State == StateRejected, !domain.IsRetryable(res.Err), ctx.Err() != nil:
			// A rejected attempt never reached the gateway; later attempts skip
			// the limiter, so retrying it would bypass the quota.
			move(RetryAborted)
			continue
		}

		delay, stop := backoff.Next()
		if stop || attempt >= maxAttempts {
			move(RetryExhausted)
			continue
		}

		move(RetryWaiting)
		logger.WarnContext(ctx, "otp.retry.scheduled",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Int64("delay_ms", delay.Milliseconds()),
			slog.String("reason", string(res.Reason)),
		)
		if err := s.clock.Sleep(ctx, delay); err != nil {
			move(RetryAborted)
			out.Err = fmt.Errorf("retry wait interrupted: %w", err)
			continue
		}
		out.Delays = append(out.Delays, delay)
		move(RetryAttempting)
	}

	out.State = m.state
	out.TotalDuration = s.clock.Now().Sub(start)
	out.Succeeded = out.State == RetrySucceeded
	s.finishSession(ctx, logger, &out)
	return out
}

func (s *Service) finishSession(ctx context.Context, logger *slog.Logger, out *RetryOutcome) {
	attrs := []any{
		slog.Int("attempts", out.Attempts),
		slog.Int64("total_duration_ms", out.TotalDuration.Milliseconds()),
		slog.String("state", string(out.State)),
	}

	switch out.State {
	case RetrySucceeded:
		out.Message = fmt.Sprintf("%s after %d attempt(s)", out.LastResult.Message, out.Attempts)
		logger.InfoContext(ctx, "otp.retry.succeeded", attrs...)
	case RetryExhausted:
		out.Err = &RetryError{
			Attempts:  out.Attempts,
			Elapsed:   out.TotalDuration,
			SessionID: out.SessionID,
			Last:      out.LastResult.Err,
		}
		out.Message = out.Err.Error()
		retryExhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("gateway", out.LastResult.Gateway)))
		logger.ErrorContext(ctx, "otp.retry.exhausted", append(attrs, slog.String("error", out.Err.Error()))...)
	default:
		if out.Err == nil {
			out.Err = out.LastResult.Err
		}
		out.Message = fmt.Sprintf("%s (attempt %d of session %s)", out.LastResult.Message, out.Attempts, out.SessionID)
		logger.WarnContext(ctx, "otp.retry.aborted", append(attrs, slog.String("error", fmt.Sprint(out.Err)))...)
	}
}

package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/observability"
	"github.com/aelexs/otp-dispatch/internal/otp"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// Dispatch delivers one OTP to mobileNumber. An empty code is replaced by a
// fresh one of the gateway's default length. The returned Outcome is in a
// terminal state: completed, failed or rejected.
func (s *Service) Dispatch(ctx context.Context, mobileNumber, code string, opts Options) Outcome {
	return s.dispatch(ctx, mobileNumber, code, opts, true)
}

// dispatch runs one attempt. checkLimit is false for retries inside a
// session so a session consumes a single unit of the phone's quota.
func (s *Service) dispatch(ctx context.Context, rawNumber, code string, opts Options, checkLimit bool) Outcome {
	out := Outcome{
		StartedAt:     s.clock.Now(),
		Gateway:       lo.CoalesceOrEmpty(opts.Gateway, s.defaults.Gateway),
		CorrelationID: lo.CoalesceOrEmpty(opts.CorrelationID, otp.NewCorrelationID()),
		OTP:           code,
		State:         StateValidating,
	}
	opts.CorrelationID = out.CorrelationID

	ctx, span := tracer.Start(ctx, "dispatch.send", trace.WithAttributes(
		attribute.String("otp.gateway", out.Gateway),
		attribute.String("otp.correlation_id", out.CorrelationID.String()),
	))
	defer span.End()

	m := &machine[State]{state: StateValidating, allow: canTransition}
	s.run(ctx, m, &out, rawNumber, opts, checkLimit)
	out.State = m.state
	out.Success = out.State == StateCompleted
	out.Duration = s.clock.Now().Sub(out.StartedAt)
	out.Reason = domain.ReasonOf(out.Err)
	out.Message = message(out)

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Reason))
	}
	span.SetAttributes(attribute.String("otp.state", string(out.State)))
	dispatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", out.Gateway),
		attribute.String("outcome", string(out.State)),
	))
	dispatchDuration.Record(ctx, float64(out.DurationMs()),
		metric.WithAttributes(attribute.String("gateway", out.Gateway)))

	s.logOutcome(ctx, out, rawNumber)
	return out
}

func (s *Service) run(ctx context.Context, m *machine[State], out *Outcome, rawNumber string, opts Options, checkLimit bool) {
	move := func(next State, err error) {
		if terr := m.to(next); terr != nil {
			// Only reachable through a programming error; report it rather than panic.
			m.state = StateFailed
			out.Err = fmt.Errorf("%w: %w", domain.ErrTransport, terr)
			return
		}
		if err != nil {
			out.Err = err
		}
	}

	mobile, err := domain.NewMobileNumber(rawNumber)
	if err != nil {
		move(StateRejected, err)
		return
	}

	gw, err := s.gateways.Get(out.Gateway)
	if err != nil {
		move(StateRejected, err)
		return
	}

	if checkLimit && s.limiter != nil {
		if err := s.limiter.Allow(ctx, otp.HashPhone(mobile.String())); err != nil {
			move(StateRejected, err)
			return
		}
	}

	move(StateSending, nil)

	if out.OTP == "" {
		code, err := otp.GenerateCode(gw.CodeLength())
		if err != nil {
			move(StateFailed, err)
			return
		}
		out.OTP = code
	}

	req := gateway.Request{
		MobileNumber: mobile,
		OTP:          out.OTP,
		Transport:    s.defaults.transportConfig(opts),
	}
	observability.WithCorrelationID(s.logger, out.CorrelationID).DebugContext(ctx, "otp.dispatch.sending",
		slog.String("gateway", gw.Name()),
		slog.String("phone", observability.MaskPhone(mobile.String())),
		slog.Duration("timeout", req.Transport.Timeout),
	)

	res, err := deliver(ctx, gw, req)
	out.StatusCode = res.StatusCode
	out.Body = res.Body
	out.Code = res.Code
	if err != nil {
		move(StateFailed, err)
		return
	}
	move(StateCompleted, nil)
}

// deliver calls the gateway and converts a panic into a transport failure.
func deliver(ctx context.Context, gw gateway.Gateway, req gateway.Request) (res transport.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway %s panicked: %v: %w", gw.Name(), r, domain.ErrTransport)
			res = transport.Result{RequestID: req.Transport.RequestID, Gateway: gw.Name(), Err: err}
		}
	}()
	res = gw.Deliver(ctx, req)
	return res, gw.Check(res)
}

func message(out Outcome) string {
	switch out.State {
	case StateCompleted:
		return fmt.Sprintf("OTP sent via %s", out.Gateway)
	case StateRejected:
		return fmt.Sprintf("OTP request rejected: %v", out.Err)
	default:
		return fmt.Sprintf("OTP dispatch failed (%s, correlation id %s): %v", out.Reason, out.CorrelationID, out.Err)
	}
}

func (s *Service) logOutcome(ctx context.Context, out Outcome, rawNumber string) {
	attrs := []any{
		slog.String("phone", observability.MaskPhone(rawNumber)),
		slog.String("gateway", out.Gateway),
		slog.String("state", string(out.State)),
		slog.Int("status", out.StatusCode),
		slog.Int64("duration_ms", out.DurationMs()),
	}
	if s.logOTP && out.OTP != "" {
		attrs = append(attrs, slog.String("otp", observability.MaskOTP(out.OTP)))
	}
	if out.Err != nil {
		attrs = append(attrs,
			slog.String("reason", string(out.Reason)),
			slog.String("code", out.Code),
			slog.String("error", out.Err.Error()),
		)
	}

	logger := observability.WithCorrelationID(observability.WithTraceID(ctx, s.logger), out.CorrelationID)
	switch out.State {
	case StateCompleted:
		logger.InfoContext(ctx, "otp.dispatch.completed", attrs...)
	case StateRejected:
		logger.InfoContext(ctx, "otp.dispatch.rejected", attrs...)
	default:
		logger.WarnContext(ctx, "otp.dispatch.failed", attrs...)
	}
}

func attrResult(v string) attribute.KeyValue { return attribute.String("result", v) }

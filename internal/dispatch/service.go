// Package dispatch orchestrates OTP delivery: it validates a request, picks a
// gateway, sends through it, and retries transient failures with
// exponential backoff. Every call returns a result value; nothing escapes as
// a panic.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/observability"
	"github.com/aelexs/otp-dispatch/internal/otp"
)

var tracer = otel.Tracer("otp-dispatch/dispatch")

var (
	dispatchTotal      metric.Int64Counter
	dispatchDuration   metric.Float64Histogram
	retryAttemptsTotal metric.Int64Counter
	retryExhausted     metric.Int64Counter
	verifyTotal        metric.Int64Counter
)

func init() {
	m := otel.Meter("otp-dispatch/dispatch")

	dispatchTotal, _ = m.Int64Counter("otp_dispatch_total",
		metric.WithDescription("Total dispatch calls by gateway and terminal state"))
	dispatchDuration, _ = m.Float64Histogram("otp_dispatch_duration_ms",
		metric.WithDescription("Dispatch call duration"),
		metric.WithUnit("ms"))
	retryAttemptsTotal, _ = m.Int64Counter("otp_retry_attempts_total",
		metric.WithDescription("Total attempts made by retry sessions"))
	retryExhausted, _ = m.Int64Counter("otp_retry_exhausted_total",
		metric.WithDescription("Total retry sessions that ran out of attempts"))
	verifyTotal, _ = m.Int64Counter("otp_verify_total",
		metric.WithDescription("Total code verifications by result"))
}

// PhoneLimiter throttles dispatches per mobile number. Implementations
// return an error wrapping domain.ErrPhoneRateLimited when the caller is
// over quota.
type PhoneLimiter interface {
	Allow(ctx context.Context, phoneHash string) error
}

// ServiceConfig holds the dependencies for the dispatch service.
type ServiceConfig struct {
	Gateways *gateway.Registry
	Defaults Defaults
	Retry    RetryPolicy
	Limiter  PhoneLimiter // optional

	// LogOTP includes a masked code in dispatch log lines.
	LogOTP bool

	Clock  domain.Clock
	Jitter func(max time.Duration) time.Duration // defaults to uniform [0, max)
	Logger *slog.Logger
}

// Service implements Dispatch, RetryDispatch and Verify. It holds no
// per-call state and is safe for concurrent use.
type Service struct {
	gateways *gateway.Registry
	defaults Defaults
	retry    RetryPolicy
	limiter  PhoneLimiter
	logOTP   bool
	clock    domain.Clock
	jitter   func(time.Duration) time.Duration
	logger   *slog.Logger
}

// NewService creates a Service. The default gateway must be registered.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Gateways == nil {
		return nil, errors.New("dispatch: gateway registry is required")
	}
	if _, err := cfg.Gateways.Get(cfg.Defaults.Gateway); err != nil {
		return nil, err
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.RealClock{}
	}
	if cfg.Jitter == nil {
		cfg.Jitter = uniformJitter
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		gateways: cfg.Gateways,
		defaults: cfg.Defaults,
		retry:    cfg.Retry,
		limiter:  cfg.Limiter,
		logOTP:   cfg.LogOTP,
		clock:    cfg.Clock,
		jitter:   cfg.Jitter,
		logger:   cfg.Logger,
	}, nil
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Verify compares a submitted code with the expected one and logs the result.
func (s *Service) Verify(ctx context.Context, provided, expected string, caseInsensitive bool) bool {
	var opts []otp.VerifyOption
	if caseInsensitive {
		opts = append(opts, otp.WithCaseInsensitive())
	}
	ok := otp.Verify(provided, expected, opts...)

	result := "failed"
	if ok {
		result = "passed"
	}
	verifyTotal.Add(ctx, 1, metric.WithAttributes(attrResult(result)))
	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "otp.verify."+result,
		slog.Bool("case_insensitive", caseInsensitive),
	)
	return ok
}

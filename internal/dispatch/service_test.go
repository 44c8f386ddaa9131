package dispatch_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aelexs/otp-dispatch/internal/dispatch"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/domain/domaintest"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

const testPhone = "9876543210"

// stubSender implements gateway.Sender with a function field and counts calls.
type stubSender struct {
	mu     sync.Mutex
	calls  []transport.Config
	bodies []string
	sendFn func(call int, cfg transport.Config) transport.Result
}

func (s *stubSender) Send(_ context.Context, _, _ string, body []byte, cfg transport.Config) transport.Result {
	s.mu.Lock()
	s.calls = append(s.calls, cfg)
	s.bodies = append(s.bodies, string(body))
	n := len(s.calls)
	s.mu.Unlock()
	if s.sendFn != nil {
		return s.sendFn(n, cfg)
	}
	return transport.Result{RequestID: cfg.RequestID, StatusCode: 200}
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubSender) body(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i]
}

func (s *stubSender) call(i int) transport.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// stubLimiter implements dispatch.PhoneLimiter with a function field.
type stubLimiter struct {
	allowFn func(ctx context.Context, phoneHash string) error
}

func (l *stubLimiter) Allow(ctx context.Context, phoneHash string) error {
	if l.allowFn != nil {
		return l.allowFn(ctx, phoneHash)
	}
	return nil
}

// panicGateway blows up inside Deliver.
type panicGateway struct{}

func (panicGateway) Name() string    { return "panicky" }
func (panicGateway) CodeLength() int { return 6 }
func (panicGateway) Deliver(context.Context, gateway.Request) transport.Result {
	panic("nil map write")
}
func (panicGateway) Check(transport.Result) error { return nil }

// dropTime removes timestamps so log assertions on digits stay deterministic.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type testEnv struct {
	svc    *dispatch.Service
	sender *stubSender
	clock  *domaintest.FakeClock
	logs   *bytes.Buffer
}

type envOption func(*dispatch.ServiceConfig)

func newTestEnv(t *testing.T, sender *stubSender, opts ...envOption) *testEnv {
	t.Helper()
	if sender == nil {
		sender = &stubSender{}
	}

	reg, err := gateway.NewRegistry(
		gateway.NewJSONGateway(sender, gateway.JSONConfig{Endpoint: "http://gw.local/otp"}),
		gateway.NewSignedGateway(sender, gateway.SignedConfig{Endpoint: "https://gov.local/sms", Password: "pw", SecureKey: "k"}),
		panicGateway{},
	)
	require.NoError(t, err)

	var logs bytes.Buffer
	clock := domaintest.NewFakeClock(testStart)
	cfg := dispatch.ServiceConfig{
		Gateways: reg,
		Defaults: dispatch.DefaultDefaults(),
		Retry:    dispatch.DefaultRetryPolicy(),
		Clock:    clock,
		Logger:   slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: dropTime})),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := dispatch.NewService(cfg)
	require.NoError(t, err)
	return &testEnv{svc: svc, sender: sender, clock: clock, logs: &logs}
}

func TestNewService(t *testing.T) {
	t.Run("registry required", func(t *testing.T) {
		_, err := dispatch.NewService(dispatch.ServiceConfig{})
		require.Error(t, err)
	})

	t.Run("default gateway must be registered", func(t *testing.T) {
		reg, err := gateway.NewRegistry(gateway.NewLogGateway(slog.Default(), 6))
		require.NoError(t, err)

		_, err = dispatch.NewService(dispatch.ServiceConfig{Gateways: reg, Defaults: dispatch.Defaults{Gateway: "json"}})
		require.ErrorIs(t, err, domain.ErrUnknownGateway)
	})
}

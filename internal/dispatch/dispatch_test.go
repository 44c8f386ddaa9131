package dispatch_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/dispatch"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

func TestDispatch_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.svc.Dispatch(context.Background(), testPhone, "", dispatch.Options{})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, dispatch.StateCompleted, out.State)
	assert.Equal(t, domain.ReasonNone, out.Reason)
	assert.Equal(t, "json", out.Gateway)
	assert.Regexp(t, `^\d{6}$`, out.OTP)
	assert.False(t, out.CorrelationID.IsZero())
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, testStart, out.StartedAt)
	assert.NoError(t, out.Err)
	require.Equal(t, 1, env.sender.callCount())

	cfg := env.sender.call(0)
	require.NotNil(t, cfg.Proxy)
	assert.Equal(t, "10.0.0.10", cfg.Proxy.Host)
	assert.Equal(t, 3128, cfg.Proxy.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.TLS.RejectUnauthorized)
	assert.Equal(t, out.CorrelationID, cfg.RequestID)
}

func TestDispatch_SuppliedCodeIsUsed(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.svc.Dispatch(context.Background(), testPhone, "424242", dispatch.Options{})

	require.True(t, out.Success)
	assert.Equal(t, "424242", out.OTP)
}

func TestDispatch_GatewayDefinesCodeLength(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.svc.Dispatch(context.Background(), testPhone, "", dispatch.Options{Gateway: "signed"})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "signed", out.Gateway)
	assert.Regexp(t, `^\d{4}$`, out.OTP)
}

func TestDispatch_OptionsOverrideDefaults(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *dispatch.ServiceConfig) {
		cfg.Defaults.Headers = map[string]string{"X-Client": "portal", "X-Tenant": "default"}
	})
	insecure := false

	out := env.svc.Dispatch(context.Background(), testPhone, "123456", dispatch.Options{
		ProxyHost:          "proxy.internal",
		ProxyPort:          8080,
		Timeout:            5 * time.Second,
		RejectUnauthorized: &insecure,
		Headers:            map[string]string{"X-Tenant": "acme"},
		CorrelationID:      "01J9ZKCALLER",
	})
	require.True(t, out.Success)

	cfg := env.sender.call(0)
	assert.Equal(t, "proxy.internal", cfg.Proxy.Host)
	assert.Equal(t, 8080, cfg.Proxy.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.TLS.RejectUnauthorized)
	assert.Equal(t, "portal", cfg.Headers["X-Client"])
	assert.Equal(t, "acme", cfg.Headers["X-Tenant"])
	assert.Equal(t, domain.CorrelationID("01J9ZKCALLER"), out.CorrelationID)
	assert.Equal(t, domain.CorrelationID("01J9ZKCALLER"), cfg.RequestID)
}

func TestDispatch_DirectWhenNoProxyConfigured(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *dispatch.ServiceConfig) {
		cfg.Defaults.Proxy.Host = ""
	})

	out := env.svc.Dispatch(context.Background(), testPhone, "123456", dispatch.Options{})
	require.True(t, out.Success)
	assert.Nil(t, env.sender.call(0).Proxy)
}

func TestDispatch_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		opts   dispatch.Options
		reason domain.Reason
	}{
		{"short number", "123", dispatch.Options{}, domain.ReasonInvalidInput},
		{"nine characters", "987654321", dispatch.Options{}, domain.ReasonInvalidInput},
		{"empty number", "", dispatch.Options{}, domain.ReasonInvalidInput},
		{"blank number", "    ", dispatch.Options{}, domain.ReasonInvalidInput},
		{"unknown gateway", testPhone, dispatch.Options{Gateway: "fax"}, domain.ReasonInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			out := env.svc.Dispatch(context.Background(), tt.phone, "", tt.opts)

			assert.False(t, out.Success)
			assert.Equal(t, dispatch.StateRejected, out.State)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, 0, env.sender.callCount(), "no network call for rejected input")
			assert.Empty(t, out.OTP)
			assert.Contains(t, out.Message, "rejected")
			assert.Contains(t, env.logs.String(), "otp.dispatch.rejected")
		})
	}
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		result     transport.Result
		wantReason domain.Reason
		wantErr    error
	}{
		{
			name:       "gateway 503",
			result:     transport.Result{StatusCode: http.StatusServiceUnavailable},
			wantReason: domain.ReasonGateway,
			wantErr:    domain.ErrGateway,
		},
		{
			name:       "gateway 400",
			result:     transport.Result{StatusCode: http.StatusBadRequest},
			wantReason: domain.ReasonGateway,
			wantErr:    domain.ErrGateway,
		},
		{
			name:       "timeout",
			result:     transport.Result{Code: "ETIMEDOUT", Err: fmt.Errorf("%w: deadline", domain.ErrTimeout)},
			wantReason: domain.ReasonTimeout,
			wantErr:    domain.ErrTimeout,
		},
		{
			name:       "connection refused",
			result:     transport.Result{Code: "ECONNREFUSED", Err: fmt.Errorf("%w: refused", domain.ErrTransport)},
			wantReason: domain.ReasonTransport,
			wantErr:    domain.ErrTransport,
		},
		{
			name: "truncated json",
			result: transport.Result{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       []byte(`{"sta`),
			},
			wantReason: domain.ReasonResponseParse,
			wantErr:    domain.ErrResponseParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{sendFn: func(int, transport.Config) transport.Result { return tt.result }}
			env := newTestEnv(t, sender)

			out := env.svc.Dispatch(context.Background(), testPhone, "123456", dispatch.Options{})

			assert.False(t, out.Success)
			assert.Equal(t, dispatch.StateFailed, out.State)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Equal(t, tt.result.StatusCode, out.StatusCode)
			assert.Equal(t, tt.result.Code, out.Code)
			assert.Contains(t, out.Message, out.CorrelationID.String())
			assert.Contains(t, env.logs.String(), "otp.dispatch.failed")
		})
	}
}

func TestDispatch_GatewayPanicBecomesFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	var out dispatch.Outcome
	require.NotPanics(t, func() {
		out = env.svc.Dispatch(context.Background(), testPhone, "123456", dispatch.Options{Gateway: "panicky"})
	})

	assert.False(t, out.Success)
	assert.Equal(t, dispatch.StateFailed, out.State)
	assert.ErrorIs(t, out.Err, domain.ErrTransport)
	assert.Contains(t, out.Err.Error(), "panicked")
}

func TestDispatch_RateLimited(t *testing.T) {
	var gotKey string
	limiter := &stubLimiter{allowFn: func(_ context.Context, phoneHash string) error {
		gotKey = phoneHash
		return fmt.Errorf("5 dispatches in window: %w", domain.ErrPhoneRateLimited)
	}}
	env := newTestEnv(t, nil, func(cfg *dispatch.ServiceConfig) { cfg.Limiter = limiter })

	out := env.svc.Dispatch(context.Background(), testPhone, "", dispatch.Options{})

	assert.False(t, out.Success)
	assert.Equal(t, dispatch.StateRejected, out.State)
	assert.Equal(t, domain.ReasonRateLimited, out.Reason)
	assert.Equal(t, 0, env.sender.callCount())
	assert.Regexp(t, `^[0-9a-f]{64}$`, gotKey)
	assert.NotContains(t, gotKey, testPhone)
}

func TestDispatch_LogLines(t *testing.T) {
	t.Run("phone masked and code omitted by default", func(t *testing.T) {
		env := newTestEnv(t, nil)

		out := env.svc.Dispatch(context.Background(), testPhone, "482193", dispatch.Options{})
		require.True(t, out.Success)

		logs := env.logs.String()
		assert.Contains(t, logs, "otp.dispatch.completed")
		assert.Contains(t, logs, "98******10")
		assert.Contains(t, logs, out.CorrelationID.String())
		assert.NotContains(t, logs, testPhone)
		assert.NotContains(t, logs, "482193")
		assert.NotContains(t, logs, `"otp"`)
	})

	t.Run("masked code when enabled", func(t *testing.T) {
		env := newTestEnv(t, nil, func(cfg *dispatch.ServiceConfig) { cfg.LogOTP = true })

		env.svc.Dispatch(context.Background(), testPhone, "482193", dispatch.Options{})

		logs := env.logs.String()
		assert.Contains(t, logs, `"otp":"4****3"`)
		assert.NotContains(t, logs, "482193")
	})
}

func TestDispatch_ConcurrentCallsAreIndependent(t *testing.T) {
	env := newTestEnv(t, nil)

	const n = 25
	results := make(chan dispatch.Outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- env.svc.Dispatch(context.Background(), testPhone, "", dispatch.Options{})
		}()
	}

	seen := make(map[domain.CorrelationID]bool)
	for i := 0; i < n; i++ {
		out := <-results
		assert.True(t, out.Success)
		seen[out.CorrelationID] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, env.sender.callCount())
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	assert.True(t, env.svc.Verify(ctx, "1234", "1234", false))
	assert.False(t, env.svc.Verify(ctx, "1234", "1235", false))
	assert.False(t, env.svc.Verify(ctx, "AB12", "ab12", false))
	assert.True(t, env.svc.Verify(ctx, "AB12", "ab12", true))

	logs := env.logs.String()
	assert.Contains(t, logs, "otp.verify.passed")
	assert.Contains(t, logs, "otp.verify.failed")
	assert.NotContains(t, logs, "1234")
}

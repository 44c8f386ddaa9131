package gateway_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// senderStub records every exchange and answers with sendFn.
type senderStub struct {
	mu     sync.Mutex
	calls  []sentRequest
	sendFn func(cfg transport.Config) transport.Result
}

type sentRequest struct {
	method string
	url    string
	body   string
	cfg    transport.Config
}

func (s *senderStub) Send(_ context.Context, method, url string, body []byte, cfg transport.Config) transport.Result {
	s.mu.Lock()
	s.calls = append(s.calls, sentRequest{method: method, url: url, body: string(body), cfg: cfg})
	s.mu.Unlock()
	if s.sendFn != nil {
		return s.sendFn(cfg)
	}
	return transport.Result{RequestID: cfg.RequestID, StatusCode: 200}
}

func (s *senderStub) last(t *testing.T) sentRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.calls)
	return s.calls[len(s.calls)-1]
}

func TestRegistry(t *testing.T) {
	jsonGW := gateway.NewJSONGateway(&senderStub{}, gateway.JSONConfig{Endpoint: "http://gw"})
	signedGW := gateway.NewSignedGateway(&senderStub{}, gateway.SignedConfig{Endpoint: "https://gov"})

	t.Run("lookup by name", func(t *testing.T) {
		reg, err := gateway.NewRegistry(jsonGW, signedGW)
		require.NoError(t, err)

		got, err := reg.Get("signed")
		require.NoError(t, err)
		assert.Same(t, signedGW, got)
		assert.Equal(t, []string{"json", "signed"}, reg.Names())
	})

	t.Run("unknown name", func(t *testing.T) {
		reg, err := gateway.NewRegistry(jsonGW)
		require.NoError(t, err)

		_, err = reg.Get("carrier-pigeon")
		assert.ErrorIs(t, err, domain.ErrUnknownGateway)
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		_, err := gateway.NewRegistry(jsonGW, jsonGW)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

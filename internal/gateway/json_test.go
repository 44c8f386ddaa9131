package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

func TestJSONGateway_Deliver(t *testing.T) {
	stub := &senderStub{}
	gw := gateway.NewJSONGateway(stub, gateway.JSONConfig{Endpoint: "http://gw.local/otp"})

	res := gw.Deliver(context.Background(), gateway.Request{
		MobileNumber: domain.MustMobileNumber("9876543210"),
		OTP:          "123456",
		Transport: transport.Config{
			Timeout:   5 * time.Second,
			Headers:   map[string]string{"X-Retry-Attempt": "2"},
			RequestID: "01J9ZK",
		},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, "json", res.Gateway)

	sent := stub.last(t)
	assert.Equal(t, http.MethodPost, sent.method)
	assert.Equal(t, "http://gw.local/otp", sent.url)
	assert.JSONEq(t, `{"mobile_no":"9876543210","otp":"123456"}`, sent.body)
	assert.Equal(t, "application/json", sent.cfg.Headers["Content-Type"])
	assert.Equal(t, "2", sent.cfg.Headers["X-Retry-Attempt"])
	assert.Equal(t, 5*time.Second, sent.cfg.Timeout)
}

func TestJSONGateway_CallerHeadersWin(t *testing.T) {
	stub := &senderStub{}
	gw := gateway.NewJSONGateway(stub, gateway.JSONConfig{Endpoint: "http://gw"})

	gw.Deliver(context.Background(), gateway.Request{
		MobileNumber: domain.MustMobileNumber("9876543210"),
		OTP:          "1",
		Transport:    transport.Config{Headers: map[string]string{"Content-Type": "application/vnd.otp+json"}},
	})

	assert.Equal(t, "application/vnd.otp+json", stub.last(t).cfg.Headers["Content-Type"])
}

func TestJSONGateway_CodeLength(t *testing.T) {
	assert.Equal(t, 6, gateway.NewJSONGateway(nil, gateway.JSONConfig{}).CodeLength())
	assert.Equal(t, 8, gateway.NewJSONGateway(nil, gateway.JSONConfig{CodeLength: 8}).CodeLength())
}

func TestJSONGateway_Check(t *testing.T) {
	jsonHeader := http.Header{"Content-Type": []string{"application/json; charset=utf-8"}}
	transportErr := errors.Join(domain.ErrTimeout, errors.New("deadline"))

	tests := []struct {
		name    string
		res     transport.Result
		wantErr error
	}{
		{"200 ok", transport.Result{StatusCode: 200}, nil},
		{"204 ok", transport.Result{StatusCode: 204}, nil},
		{"valid json body", transport.Result{StatusCode: 200, Header: jsonHeader, Body: []byte(`{"ok":true}`)}, nil},
		{"plain text body is opaque", transport.Result{StatusCode: 200, Header: http.Header{"Content-Type": []string{"text/plain"}}, Body: []byte(`{`)}, nil},
		{"truncated json", transport.Result{StatusCode: 200, Header: jsonHeader, Body: []byte(`{"ok":`)}, domain.ErrResponseParse},
		{"302 is a gateway error", transport.Result{StatusCode: 302}, domain.ErrGateway},
		{"400 is a gateway error", transport.Result{StatusCode: 400}, domain.ErrGateway},
		{"503 is a gateway error", transport.Result{StatusCode: 503}, domain.ErrGateway},
		{"transport failure passes through", transport.Result{Err: transportErr}, domain.ErrTimeout},
	}

	gw := gateway.NewJSONGateway(nil, gateway.JSONConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gw.Check(tt.res)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJSONGateway_EndToEnd(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	defer srv.Close()

	client := transport.NewClient(transport.ClientConfig{})
	defer client.Close()

	gw := gateway.NewJSONGateway(client, gateway.JSONConfig{Endpoint: srv.URL})
	res := gw.Deliver(context.Background(), gateway.Request{
		MobileNumber: domain.MustMobileNumber("9876543210"),
		OTP:          "654321",
		Transport:    transport.Config{TLS: transport.TLSConfig{RejectUnauthorized: true}, Timeout: time.Second},
	})

	require.NoError(t, gw.Check(res))
	assert.Equal(t, map[string]string{"mobile_no": "9876543210", "otp": "654321"}, got)
}

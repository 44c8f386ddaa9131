package transport_test

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

func TestParseTLSVersion(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"", 0},
		{"TLSv1.2", tls.VersionTLS12},
		{"tlsv1.3", tls.VersionTLS13},
		{"1.2", tls.VersionTLS12},
		{"TLS1.1", tls.VersionTLS11},
		{"1.0", tls.VersionTLS10},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := transport.ParseTLSVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown version", func(t *testing.T) {
		_, err := transport.ParseTLSVersion("SSLv3")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestProxyConfigURL(t *testing.T) {
	t.Run("nil config connects directly", func(t *testing.T) {
		var p *transport.ProxyConfig
		assert.Nil(t, p.URL())
	})

	t.Run("empty host connects directly", func(t *testing.T) {
		assert.Nil(t, (&transport.ProxyConfig{Port: 3128}).URL())
	})

	t.Run("defaults to http scheme", func(t *testing.T) {
		u := (&transport.ProxyConfig{Host: "10.0.0.10", Port: 3128}).URL()
		assert.Equal(t, "http://10.0.0.10:3128", u.String())
	})

	t.Run("explicit protocol", func(t *testing.T) {
		u := (&transport.ProxyConfig{Host: "proxy.corp", Port: 8443, Protocol: "https"}).URL()
		assert.Equal(t, "https://proxy.corp:8443", u.String())
	})
}

package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// ProxyConfig is the forward proxy an exchange is routed through.
type ProxyConfig struct {
	Host     string
	Port     int
	Protocol string // "http" unless the proxy itself speaks TLS
}

// URL returns the proxy URL, or nil when no proxy host is configured.
func (p *ProxyConfig) URL() *url.URL {
	if p == nil || p.Host == "" {
		return nil
	}
	scheme := p.Protocol
	if scheme == "" {
		scheme = domain.DefaultProxyProtocol
	}
	host := p.Host
	if p.Port > 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	return &url.URL{Scheme: scheme, Host: host}
}

// TLSConfig is the trust and version policy for an exchange. The zero value
// disables certificate validation, so callers build it through config
// defaults where RejectUnauthorized is true.
type TLSConfig struct {
	RejectUnauthorized bool
	MinVersion         uint16
	MaxVersion         uint16
}

// PoolConfig sizes the keep-alive pool shared by concurrent exchanges.
type PoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
}

// DefaultPoolConfig returns the compiled pool defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        domain.DefaultMaxIdleConns,
		MaxIdleConnsPerHost: domain.DefaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     domain.DefaultMaxConnsPerHost,
		IdleConnTimeout:     domain.DefaultIdleConnTimeout,
	}
}

// Config describes a single exchange.
type Config struct {
	Proxy     *ProxyConfig // nil or empty Host connects directly
	TLS       TLSConfig
	Timeout   time.Duration // hard deadline for the whole exchange
	Headers   map[string]string
	RequestID domain.CorrelationID
}

// ParseTLSVersion maps "TLSv1.2", "1.2" or "tls1.3" style strings to the
// crypto/tls constant. An empty string yields 0, leaving the Go default.
func ParseTLSVersion(s string) (uint16, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tlsv")
	v = strings.TrimPrefix(v, "tls")
	switch v {
	case "":
		return 0, nil
	case "1.0", "1":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q: %w", s, domain.ErrInvalidArgument)
	}
}

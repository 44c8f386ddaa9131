package dispatch

import (
	"time"

	"github.com/samber/lo"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// Options are per-call overrides. Zero values fall back to Defaults.
type Options struct {
	Gateway            string
	OTP                string // RetryDispatch only; Dispatch takes the code as an argument
	ProxyHost          string
	ProxyPort          int
	Timeout            time.Duration
	RejectUnauthorized *bool
	Headers            map[string]string
	CorrelationID      domain.CorrelationID
}

// Defaults are the configured values every call starts from.
type Defaults struct {
	Gateway string
	Proxy   transport.ProxyConfig
	TLS     transport.TLSConfig
	Timeout time.Duration
	Headers map[string]string
}

// DefaultDefaults returns the compiled defaults: the internal proxy, a 30s
// deadline and certificate validation on.
func DefaultDefaults() Defaults {
	return Defaults{
		Gateway: "json",
		Proxy: transport.ProxyConfig{
			Host:     domain.DefaultProxyHost,
			Port:     domain.DefaultProxyPort,
			Protocol: domain.DefaultProxyProtocol,
		},
		TLS:     transport.TLSConfig{RejectUnauthorized: true},
		Timeout: domain.DefaultDispatchTimeout,
	}
}

// transportConfig merges opts over d. Caller headers win on collision.
func (d Defaults) transportConfig(opts Options) transport.Config {
	proxy := d.Proxy
	proxy.Host = lo.CoalesceOrEmpty(opts.ProxyHost, proxy.Host)
	proxy.Port = lo.Ternary(opts.ProxyPort > 0, opts.ProxyPort, proxy.Port)

	tlsCfg := d.TLS
	if opts.RejectUnauthorized != nil {
		tlsCfg.RejectUnauthorized = *opts.RejectUnauthorized
	}

	cfg := transport.Config{
		TLS:       tlsCfg,
		Timeout:   lo.Ternary(opts.Timeout > 0, opts.Timeout, d.Timeout),
		Headers:   lo.Assign(d.Headers, opts.Headers),
		RequestID: opts.CorrelationID,
	}
	if proxy.Host != "" {
		cfg.Proxy = &proxy
	}
	return cfg
}

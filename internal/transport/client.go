// Package transport performs single HTTP exchanges with outbound gateways,
// routed through a forward proxy with an explicit TLS policy and a hard
// deadline. It never retries and never follows redirects.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

var tracer = otel.Tracer("otp-dispatch/transport")

var sendDuration metric.Float64Histogram

func init() {
	m := otel.Meter("otp-dispatch/transport")

	sendDuration, _ = m.Float64Histogram("otp_transport_duration_ms",
		metric.WithDescription("Duration of outbound gateway exchanges"),
		metric.WithUnit("ms"))
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Pool         PoolConfig
	MaxBodyBytes int64         // defaults to domain.MaxResponseBodyBytes
	MaxTimeout   time.Duration // caps Config.Timeout and the dial/header waits; defaults to domain.MaxDispatchTimeout
	Logger       *slog.Logger
	Clock        domain.Clock
}

type clientKey struct {
	proxy string
	tls   TLSConfig
}

// Client sends requests through per-policy pooled http.Clients. One
// http.Client (and its connection pool) exists per distinct combination of
// proxy and TLS policy; all are safe for concurrent use. Per-call deadlines
// ride on the request context, so they never create a new pool.
type Client struct {
	pool       PoolConfig
	maxBody    int64
	maxTimeout time.Duration
	logger     *slog.Logger
	clock      domain.Clock

	mu      sync.Mutex
	clients map[clientKey]*http.Client
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Pool == (PoolConfig{}) {
		cfg.Pool = DefaultPoolConfig()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = domain.MaxResponseBodyBytes
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = domain.MaxDispatchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.RealClock{}
	}
	return &Client{
		pool:       cfg.Pool,
		maxBody:    cfg.MaxBodyBytes,
		maxTimeout: cfg.MaxTimeout,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		clients:    make(map[clientKey]*http.Client),
	}
}

// Send performs one exchange. Any HTTP response, including 3xx and 5xx, is
// a received Result; only failures below HTTP set Result.Err, wrapping one
// of domain.ErrTimeout, domain.ErrTransport or domain.ErrResponseParse.
func (c *Client) Send(ctx context.Context, method, rawURL string, body []byte, cfg Config) Result {
	start := c.clock.Now()
	res := Result{RequestID: cfg.RequestID}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultDispatchTimeout
	}
	timeout = min(timeout, c.maxTimeout)

	ctx, span := tracer.Start(ctx, "transport.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	finish := func() Result {
		res.Duration = c.clock.Now().Sub(start)
		outcome := "received"
		if res.Err != nil {
			outcome = "failed"
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, string(res.Reason()))
		}
		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
		sendDuration.Record(ctx, float64(res.Duration.Milliseconds()),
			metric.WithAttributes(attribute.String("outcome", outcome)))
		return res
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("build request: %w: %w", domain.ErrInvalidArgument, err)
		return finish()
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if !cfg.RequestID.IsZero() && req.Header.Get(domain.HeaderCorrelationID) == "" {
		req.Header.Set(domain.HeaderCorrelationID, cfg.RequestID.String())
	}
	span.SetAttributes(attribute.String("server.address", req.URL.Hostname()))

	if !cfg.TLS.RejectUnauthorized {
		c.logger.WarnContext(ctx, "tls certificate verification disabled",
			slog.String("host", req.URL.Hostname()),
			slog.String("request_id", cfg.RequestID.String()),
		)
	}

	resp, err := c.httpClient(cfg).Do(req)
	if err != nil {
		res.Code, res.Err = classify(err)
		return finish()
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		// Headers arrived, so a deadline hit here is a truncated body, not a timeout.
		res.Code = "EBODY"
		res.Err = fmt.Errorf("read response body: %w: %w", domain.ErrResponseParse, err)
		return finish()
	}
	res.Body = data

	c.logger.DebugContext(ctx, "gateway exchange completed",
		slog.String("host", req.URL.Hostname()),
		slog.Int("status", res.StatusCode),
		slog.String("request_id", cfg.RequestID.String()),
	)
	return finish()
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hc := range c.clients {
		hc.CloseIdleConnections()
	}
}

func (c *Client) httpClient(cfg Config) *http.Client {
	proxyURL := cfg.Proxy.URL()
	key := clientKey{tls: cfg.TLS}
	if proxyURL != nil {
		key.proxy = proxyURL.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[key]; ok {
		return hc
	}

	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   c.maxTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.TLS.RejectUnauthorized, //nolint:gosec // opt-in, warned on every send
			MinVersion:         cfg.TLS.MinVersion,
			MaxVersion:         cfg.TLS.MaxVersion,
		},
		TLSHandshakeTimeout:   c.maxTimeout,
		ResponseHeaderTimeout: c.maxTimeout,
		MaxIdleConns:          c.pool.MaxIdleConns,
		MaxIdleConnsPerHost:   c.pool.MaxIdleConnsPerHost,
		MaxConnsPerHost:       c.pool.MaxConnsPerHost,
		IdleConnTimeout:       c.pool.IdleConnTimeout,
	}
	if proxyURL != nil {
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	hc := &http.Client{
		Transport: tr,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	c.clients[key] = hc
	return hc
}

// classify maps a client error to a short code and a wrapped domain sentinel.
func classify(err error) (string, error) {
	var (
		netErr  net.Error
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		recErr  tls.RecordHeaderError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "ETIMEDOUT", fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return "ECANCELED", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	case errors.As(err, &dnsErr):
		return "ENOTFOUND", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	case errors.As(err, &certErr), errors.As(err, &recErr):
		return "ETLS", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	default:
		return "", fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
}

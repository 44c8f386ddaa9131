package domain

import "time"

// Compiled defaults for the dispatch pipeline. Most are overridable via configuration.
const (
	// Codes
	DefaultCodeLength       = 6
	SignedGatewayCodeLength = 4
	MinMobileNumberLength   = 10

	// Forward proxy
	DefaultProxyHost     = "10.0.0.10"
	DefaultProxyPort     = 3128
	DefaultProxyProtocol = "http"

	// Timeout contracts
	DefaultDispatchTimeout = 30 * time.Second
	MaxDispatchTimeout     = 120 * time.Second
	RedisTimeout           = 2 * time.Second

	// Retry (full jitter on top of an exponential base)
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 1 * time.Second
	DefaultRetryJitter = 500 * time.Millisecond
	DefaultRetryCap    = 30 * time.Second

	// Connection pool towards the proxy
	DefaultMaxIdleConns        = 64
	DefaultMaxIdleConnsPerHost = 16
	DefaultMaxConnsPerHost     = 32
	DefaultIdleConnTimeout     = 90 * time.Second
	MaxResponseBodyBytes       = 1 << 20

	// Rate limiting
	DefaultDispatchesPerPhone = 5
	DefaultRateLimitWindow    = 15 * time.Minute

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 10 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second
)

// Per-attempt correlation headers sent to the gateway.
const (
	HeaderRetryAttempt  = "X-Retry-Attempt"
	HeaderRetryMax      = "X-Retry-Max"
	HeaderRetryID       = "X-Retry-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

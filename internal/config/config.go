// Package config provides configuration loading using koanf.
// Precedence: environment variables → .env file → compiled defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// EnvPrefix is stripped from every variable; "__" separates nesting levels,
// so OTP_PROXY__HOST sets proxy.host.
const EnvPrefix = "OTP_"

// DotEnvFile is read from the working directory if present. It never
// overrides variables already set in the process environment.
const DotEnvFile = ".env"

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "staging", "prod"
	Environment string `koanf:"environment" validate:"oneof=local dev staging prod"`

	// Logging configuration
	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`

	HTTP      HTTPConfig      `koanf:"http"`
	Proxy     ProxyConfig     `koanf:"proxy"`
	Transport TransportConfig `koanf:"transport"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Retry     RetryConfig     `koanf:"retry"`

	// Gateway configurations
	JSONGateway   JSONGatewayConfig   `koanf:"json_gateway"`
	SignedGateway SignedGatewayConfig `koanf:"signed_gateway"`
	SNSGateway    SNSGatewayConfig    `koanf:"sns_gateway"`

	// Infrastructure configurations
	Redis     RedisConfig     `koanf:"redis"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	AWS       AWSConfig       `koanf:"aws"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// HTTPConfig holds the listener ports.
type HTTPConfig struct {
	Port     int `koanf:"port" validate:"min=0,max=65535"`
	GRPCPort int `koanf:"grpc_port" validate:"min=0,max=65535"`
}

// ProxyConfig holds the outbound forward proxy. An empty host disables it.
type ProxyConfig struct {
	Host               string `koanf:"host"`
	Port               int    `koanf:"port" validate:"min=0,max=65535"`
	Protocol           string `koanf:"protocol" validate:"oneof=http https"`
	RejectUnauthorized bool   `koanf:"reject_unauthorized"`
}

// TransportConfig holds outbound HTTP limits.
type TransportConfig struct {
	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxIdleConns        int           `koanf:"max_idle_conns" validate:"min=0"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"min=0"`
	MaxConnsPerHost     int           `koanf:"max_conns_per_host" validate:"min=0"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout" validate:"min=0"`
	MaxBodyBytes        int64         `koanf:"max_body_bytes" validate:"gt=0"`
}

// DispatchConfig holds orchestrator settings.
type DispatchConfig struct {
	Gateway string `koanf:"gateway" validate:"required"`
	LogOTP  bool   `koanf:"log_otp"`
	EchoOTP bool   `koanf:"echo_otp"` // return codes in API responses (demo only)

	// AllowTransportOverrides accepts proxy and reject_unauthorized from
	// request bodies. Off by default.
	AllowTransportOverrides bool `koanf:"allow_transport_overrides"`
}

// RetryConfig holds the backoff schedule.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxJitter   time.Duration `koanf:"max_jitter" validate:"min=0"`
	MaxDelay    time.Duration `koanf:"max_delay" validate:"gtefield=BaseDelay"`
}

// JSONGatewayConfig holds the JSON-over-HTTP gateway settings.
type JSONGatewayConfig struct {
	Endpoint   string `koanf:"endpoint" validate:"omitempty,url"`
	CodeLength int    `koanf:"code_length" validate:"min=1"`
}

// SignedGatewayConfig holds the form-encoded signed SMS gateway settings.
// When SecretID is set, credentials come from AWS Secrets Manager instead.
type SignedGatewayConfig struct {
	Endpoint           string              `koanf:"endpoint" validate:"omitempty,url"`
	Username           string              `koanf:"username"`
	Password           domain.SecretString `koanf:"password"`
	SecureKey          domain.SecretString `koanf:"secure_key"`
	SecretID           string              `koanf:"secret_id"`
	SenderID           string              `koanf:"sender_id"`
	TemplateID         string              `koanf:"template_id"`
	MessagePrefix      string              `koanf:"message_prefix"`
	MessageSuffix      string              `koanf:"message_suffix"`
	CodeLength         int                 `koanf:"code_length" validate:"min=1"`
	TLSMinVersion      string              `koanf:"tls_min_version" validate:"oneof=TLSv1.2 TLSv1.3"`
	TLSMaxVersion      string              `koanf:"tls_max_version" validate:"oneof=TLSv1.2 TLSv1.3"`
	RejectUnauthorized bool                `koanf:"reject_unauthorized"`
}

// SNSGatewayConfig holds the Amazon SNS gateway settings.
type SNSGatewayConfig struct {
	Enabled         bool   `koanf:"enabled"`
	SenderID        string `koanf:"sender_id"`
	MessageTemplate string `koanf:"message_template" validate:"contains=%s"`
	CodeLength      int    `koanf:"code_length" validate:"min=1"`
}

// RedisConfig holds Redis configuration. An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string              `koanf:"addr"`
	Password domain.SecretString `koanf:"password"`
	DB       int                 `koanf:"db" validate:"min=0"`
	Timeout  time.Duration       `koanf:"timeout" validate:"gt=0"`
}

// RateLimitConfig holds the per-phone dispatch quota.
type RateLimitConfig struct {
	PerPhone int           `koanf:"per_phone" validate:"min=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		HTTP: HTTPConfig{
			Port:     8080,
			GRPCPort: 9090,
		},
		Proxy: ProxyConfig{
			Host:               domain.DefaultProxyHost,
			Port:               domain.DefaultProxyPort,
			Protocol:           domain.DefaultProxyProtocol,
			RejectUnauthorized: true,
		},
		Transport: TransportConfig{
			Timeout:             domain.DefaultDispatchTimeout,
			MaxIdleConns:        domain.DefaultMaxIdleConns,
			MaxIdleConnsPerHost: domain.DefaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     domain.DefaultMaxConnsPerHost,
			IdleConnTimeout:     domain.DefaultIdleConnTimeout,
			MaxBodyBytes:        domain.MaxResponseBodyBytes,
		},
		Dispatch: DispatchConfig{
			Gateway: "json",
		},
		Retry: RetryConfig{
			MaxAttempts: domain.DefaultMaxAttempts,
			BaseDelay:   domain.DefaultRetryBase,
			MaxJitter:   domain.DefaultRetryJitter,
			MaxDelay:    domain.DefaultRetryCap,
		},
		JSONGateway: JSONGatewayConfig{
			CodeLength: domain.DefaultCodeLength,
		},
		SignedGateway: SignedGatewayConfig{
			CodeLength:         domain.SignedGatewayCodeLength,
			TLSMinVersion:      "TLSv1.2",
			TLSMaxVersion:      "TLSv1.2",
			RejectUnauthorized: true,
		},
		SNSGateway: SNSGatewayConfig{
			MessageTemplate: "Your verification code is: %s",
			CodeLength:      domain.DefaultCodeLength,
		},
		Redis: RedisConfig{
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		RateLimit: RateLimitConfig{
			PerPhone: domain.DefaultDispatchesPerPhone,
			Window:   domain.DefaultRateLimitWindow,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		OTEL: OTELConfig{
			ServiceName: "otp-dispatch",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. .env file in the working directory
// 3. Compiled defaults (lowest)
//
// Required keys missing → startup failure.
func Load(_ context.Context) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	k := koanf.New(".")

	// Start with compiled defaults
	cfg := defaults()

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}

	// Validate required fields
	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps OTP_SIGNED_GATEWAY__SECURE_KEY to signed_gateway.secure_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// validateRequired checks that environment-specific configuration is present.
func validateRequired(cfg *Config) error {
	// In local environment, most fields have sensible defaults
	if !cfg.IsProd() {
		return nil
	}

	if cfg.Dispatch.EchoOTP {
		return fmt.Errorf("%w: dispatch.echo_otp must be off in prod", domain.ErrInvalidArgument)
	}

	switch cfg.Dispatch.Gateway {
	case "json":
		if cfg.JSONGateway.Endpoint == "" {
			return fmt.Errorf("%w: json_gateway.endpoint", domain.ErrConfigRequired)
		}
	case "signed":
		sg := cfg.SignedGateway
		if sg.Endpoint == "" {
			return fmt.Errorf("%w: signed_gateway.endpoint", domain.ErrConfigRequired)
		}
		if sg.SenderID == "" {
			return fmt.Errorf("%w: signed_gateway.sender_id", domain.ErrConfigRequired)
		}
		if sg.SecretID == "" && (sg.Username == "" || sg.Password.IsEmpty() || sg.SecureKey.IsEmpty()) {
			return fmt.Errorf("%w: signed_gateway.secret_id or username/password/secure_key", domain.ErrConfigRequired)
		}
	case "sns":
		if !cfg.SNSGateway.Enabled {
			return fmt.Errorf("%w: sns_gateway.enabled", domain.ErrConfigRequired)
		}
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

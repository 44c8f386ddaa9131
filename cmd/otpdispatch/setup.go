package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	apiv1 "github.com/aelexs/otp-dispatch/api/v1"
	"github.com/aelexs/otp-dispatch/internal/awsx"
	"github.com/aelexs/otp-dispatch/internal/config"
	"github.com/aelexs/otp-dispatch/internal/credentials"
	"github.com/aelexs/otp-dispatch/internal/dispatch"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/gateway"
	"github.com/aelexs/otp-dispatch/internal/port"
	"github.com/aelexs/otp-dispatch/internal/ratelimit"
	"github.com/aelexs/otp-dispatch/internal/redis"
	"github.com/aelexs/otp-dispatch/internal/server"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// setup is the otpdispatch composition root. It creates the outbound
// transport, the gateways, the optional rate limiter, the dispatch service,
// and registers the HTTP routes.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	// 1. Outbound transport shared by every HTTP gateway.
	transportClient := transport.NewClient(transport.ClientConfig{
		Pool: transport.PoolConfig{
			MaxIdleConns:        cfg.Transport.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
			MaxConnsPerHost:     cfg.Transport.MaxConnsPerHost,
			IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		},
		MaxBodyBytes: cfg.Transport.MaxBodyBytes,
		MaxTimeout:   domain.MaxDispatchTimeout,
		Logger:       logger,
		Clock:        clock,
	})

	// 2. AWS clients, only when something needs them.
	var aws *awsx.Clients
	if cfg.SNSGateway.Enabled || cfg.SignedGateway.SecretID != "" {
		var err error
		aws, err = awsx.NewClients(ctx, awsx.Config{
			Endpoint: cfg.AWS.Endpoint,
			Region:   cfg.AWS.Region,
			Timeout:  cfg.Transport.Timeout,
		})
		if err != nil {
			transportClient.Close()
			return nil, fmt.Errorf("otpdispatch setup: create aws clients: %w", err)
		}
	}

	// 3. Gateways.
	gateways, err := createGateways(ctx, cfg, logger, transportClient, aws)
	if err != nil {
		transportClient.Close()
		return nil, fmt.Errorf("otpdispatch setup: %w", err)
	}

	// 4. Optional per-phone rate limit.
	var (
		limiter     dispatch.PhoneLimiter
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err := redisClient.Ping(ctx); err != nil {
			transportClient.Close()
			return nil, errors.Join(fmt.Errorf("otpdispatch setup: %w", err), redisClient.Close())
		}
		limiter = ratelimit.NewPhoneLimiter(redisClient.RDB, ratelimit.Config{
			Limit:  cfg.RateLimit.PerPhone,
			Window: cfg.RateLimit.Window,
		})
		logger.Info("per-phone rate limit enabled",
			slog.Int("limit", cfg.RateLimit.PerPhone),
			slog.Duration("window", cfg.RateLimit.Window),
		)
	}

	// 5. Dispatch service.
	defaults, err := dispatchDefaults(cfg, gateways, logger)
	if err != nil {
		transportClient.Close()
		return nil, fmt.Errorf("otpdispatch setup: %w", err)
	}
	svc, err := dispatch.NewService(dispatch.ServiceConfig{
		Gateways: gateways,
		Defaults: defaults,
		Retry: dispatch.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxJitter:   cfg.Retry.MaxJitter,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		Limiter: limiter,
		LogOTP:  cfg.Dispatch.LogOTP,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		transportClient.Close()
		return nil, fmt.Errorf("otpdispatch setup: create dispatch service: %w", err)
	}

	// 6. HTTP routes.
	handler := port.NewOTPHandler(svc, port.HandlerConfig{
		EchoOTP:                 cfg.Dispatch.EchoOTP,
		AllowTransportOverrides: cfg.Dispatch.AllowTransportOverrides,
		OpenAPISpec:             apiv1.Spec,
		Logger:                  logger,
	})
	gwMux := runtime.NewServeMux()
	if err := handler.Register(gwMux); err != nil {
		transportClient.Close()
		return nil, fmt.Errorf("otpdispatch setup: register routes: %w", err)
	}
	deps.HTTPMux.Handle("/", gwMux)

	logger.InfoContext(ctx, "otp dispatch service initialized",
		slog.String("default_gateway", defaults.Gateway),
		slog.Any("gateways", gateways.Names()),
	)

	cleanup := func(_ context.Context) error {
		transportClient.Close()
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	}

	return cleanup, nil
}

// createGateways registers every gateway whose configuration is present.
// The log gateway is always available.
func createGateways(ctx context.Context, cfg *config.Config, logger *slog.Logger, sender gateway.Sender, aws *awsx.Clients) (*gateway.Registry, error) {
	gws := []gateway.Gateway{gateway.NewLogGateway(logger, cfg.JSONGateway.CodeLength)}

	if cfg.JSONGateway.Endpoint != "" {
		gws = append(gws, gateway.NewJSONGateway(sender, gateway.JSONConfig{
			Endpoint:   cfg.JSONGateway.Endpoint,
			CodeLength: cfg.JSONGateway.CodeLength,
		}))
	}

	if cfg.SignedGateway.Endpoint != "" {
		signed, err := signedGatewayConfig(ctx, cfg.SignedGateway, aws)
		if err != nil {
			return nil, err
		}
		gws = append(gws, gateway.NewSignedGateway(sender, signed))
	}

	if cfg.SNSGateway.Enabled {
		gws = append(gws, gateway.NewSNSGateway(aws.SNS, gateway.SNSConfig{
			SenderID:        cfg.SNSGateway.SenderID,
			MessageTemplate: cfg.SNSGateway.MessageTemplate,
			CodeLength:      cfg.SNSGateway.CodeLength,
		}))
	}

	return gateway.NewRegistry(gws...)
}

func signedGatewayConfig(ctx context.Context, sg config.SignedGatewayConfig, aws *awsx.Clients) (gateway.SignedConfig, error) {
	minVersion, err := transport.ParseTLSVersion(sg.TLSMinVersion)
	if err != nil {
		return gateway.SignedConfig{}, fmt.Errorf("signed_gateway.tls_min_version: %w", err)
	}
	maxVersion, err := transport.ParseTLSVersion(sg.TLSMaxVersion)
	if err != nil {
		return gateway.SignedConfig{}, fmt.Errorf("signed_gateway.tls_max_version: %w", err)
	}

	out := gateway.SignedConfig{
		Endpoint:      sg.Endpoint,
		Username:      sg.Username,
		Password:      sg.Password,
		SenderID:      sg.SenderID,
		SecureKey:     sg.SecureKey,
		TemplateID:    sg.TemplateID,
		MessagePrefix: sg.MessagePrefix,
		MessageSuffix: sg.MessageSuffix,
		CodeLength:    sg.CodeLength,
		TLS: transport.TLSConfig{
			RejectUnauthorized: sg.RejectUnauthorized,
			MinVersion:         minVersion,
			MaxVersion:         maxVersion,
		},
	}

	if sg.SecretID != "" {
		creds, err := credentials.LoadSignedGateway(ctx, aws.Secrets, sg.SecretID)
		if err != nil {
			return gateway.SignedConfig{}, err
		}
		out.Username = creds.Username
		out.Password = creds.Password
		out.SecureKey = creds.SecureKey
	}

	return out, nil
}

// dispatchDefaults builds the per-call defaults. Outside prod an
// unconfigured default gateway falls back to the log gateway so the service
// starts without external dependencies.
func dispatchDefaults(cfg *config.Config, gateways *gateway.Registry, logger *slog.Logger) (dispatch.Defaults, error) {
	defaults := dispatch.DefaultDefaults()
	defaults.Gateway = cfg.Dispatch.Gateway
	defaults.Proxy = transport.ProxyConfig{
		Host:     cfg.Proxy.Host,
		Port:     cfg.Proxy.Port,
		Protocol: cfg.Proxy.Protocol,
	}
	defaults.TLS = transport.TLSConfig{RejectUnauthorized: cfg.Proxy.RejectUnauthorized}
	defaults.Timeout = cfg.Transport.Timeout

	if _, err := gateways.Get(defaults.Gateway); err != nil {
		if cfg.IsProd() {
			return dispatch.Defaults{}, fmt.Errorf("default gateway %q: %w", defaults.Gateway, err)
		}
		logger.Warn("default gateway not configured, using log-only gateway for development",
			slog.String("configured", defaults.Gateway),
		)
		defaults.Gateway = gateway.LogGatewayName
	}

	return defaults, nil
}

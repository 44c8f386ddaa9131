// Package server provides the service lifecycle runner.
// cmd/ entrypoints delegate to server.Run for signal handling,
// config loading, observability init, health checks, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aelexs/otp-dispatch/internal/config"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/observability"
)

// Version is reported as the OTel service.version.
var Version = "0.1.0"

// Params configures a service's lifecycle runner.
type Params struct {
	// Name identifies the service (e.g. "otpdispatch").
	Name string

	// PortFromConfig extracts the HTTP port for this service from config.
	PortFromConfig func(cfg *config.Config) int

	// GRPCPortFromConfig extracts the gRPC health port. Nil disables the
	// gRPC listener unless Listeners.GRPC is provided.
	GRPCPortFromConfig func(cfg *config.Config) int

	// Setup is the composition root. It registers handlers on the deps and
	// returns a cleanup run after the listeners have drained.
	Setup SetupFunc
}

// SetupDeps are the shared resources handed to a service's Setup.
type SetupDeps struct {
	Config     *config.Config
	Logger     *slog.Logger
	GRPCServer *grpc.Server   // nil when gRPC is disabled
	HTTPMux    *http.ServeMux // "/healthz" is already taken
}

// SetupFunc wires a service. The returned cleanup may be nil.
type SetupFunc func(ctx context.Context, deps SetupDeps) (func(context.Context) error, error)

// Listeners lets tests inject pre-bound listeners (port 0).
type Listeners struct {
	HTTP net.Listener
	GRPC net.Listener
}

// Run executes the full service lifecycle: signal handling, config loading,
// observability initialization, HTTP and gRPC servers with health checks,
// and graceful shutdown.
func Run(ctx context.Context, p Params, ls Listeners) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize structured logging with secret redaction
	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// --- Startup order: telemetry -> setup -> gRPC -> HTTP ---

	telemetry, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
		ServiceName:    p.Name,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	// Health check shutdown coordination via atomic flag.
	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)
	if ls.GRPC != nil || p.GRPCPortFromConfig != nil {
		grpcServer = grpc.NewServer()
		healthServer = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
	}

	var cleanup func(context.Context) error
	if p.Setup != nil {
		cleanup, err = p.Setup(ctx, SetupDeps{
			Config:     cfg,
			Logger:     logger,
			GRPCServer: grpcServer,
			HTTPMux:    mux,
		})
		if err != nil {
			flushTelemetry(logger, telemetry)
			return fmt.Errorf("setup %s: %w", p.Name, err)
		}
	}

	// abort releases what setup acquired when startup fails afterwards.
	abort := func(err error) error {
		if cleanup != nil {
			if cleanupErr := cleanup(ctx); cleanupErr != nil {
				logger.Error("service cleanup error", slog.String("error", cleanupErr.Error()))
			}
		}
		flushTelemetry(logger, telemetry)
		return err
	}

	// Bind listeners (use injected listeners or create from config).
	lc := &net.ListenConfig{}
	if ls.HTTP == nil {
		ls.HTTP, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			return abort(fmt.Errorf("listen: %w", err))
		}
	}
	if grpcServer != nil && ls.GRPC == nil {
		ls.GRPC, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.GRPCPortFromConfig(cfg)))
		if err != nil {
			_ = ls.HTTP.Close()
			return abort(fmt.Errorf("listen grpc: %w", err))
		}
	}

	// WriteTimeout is long enough for a full retry session to answer.
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Retry.MaxAttempts) * (cfg.Transport.Timeout + cfg.Retry.MaxDelay + cfg.Retry.MaxJitter),
		IdleTimeout:  60 * time.Second,
	}

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	if grpcServer != nil {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(p.Name, healthpb.HealthCheckResponse_SERVING)

		g.Go(func() error {
			logger.Info("starting gRPC server", slog.String("addr", ls.GRPC.Addr().String()))
			if serveErr := grpcServer.Serve(ls.GRPC); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				return serveErr
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", ls.HTTP.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := server.Serve(ls.HTTP); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	// Shutdown trigger: waits for context cancellation, then drains in the
	// reverse of startup order.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// 1. Mark shutting down: /healthz returns 503, gRPC health NOT_SERVING
		shuttingDown.Store(true)
		if healthServer != nil {
			healthServer.Shutdown()
		}

		// 2. Drain delay: let the load balancer propagate endpoint removal
		time.Sleep(domain.ShutdownDrainDelay)

		// 3. Drain HTTP server
		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := server.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}

		// 4. Drain gRPC server, forcing a stop if it overruns the HTTP budget
		if grpcServer != nil {
			stopGRPC(httpCtx, grpcServer)
		}

		// 5. Release service resources
		if cleanup != nil {
			if cleanupErr := cleanup(httpCtx); cleanupErr != nil {
				logger.Error("service cleanup error", slog.String("error", cleanupErr.Error()))
			}
		}

		// 6. Flush OTEL
		flushTelemetry(logger, telemetry)

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}

func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
		<-done
	}
}

func flushTelemetry(logger *slog.Logger, t *observability.Telemetry) {
	otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
	defer otelCancel()
	if err := t.Shutdown(otelCtx); err != nil {
		logger.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
	}
}

// Package main is the entrypoint for the OTP dispatch service.
// It exposes the send, send-with-retry and verify endpoints over HTTP and a
// gRPC health service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/otp-dispatch/internal/config"
	"github.com/aelexs/otp-dispatch/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:               "otpdispatch",
		PortFromConfig:     func(cfg *config.Config) int { return cfg.HTTP.Port },
		GRPCPortFromConfig: func(cfg *config.Config) int { return cfg.HTTP.GRPCPort },
		Setup:              setup,
	}, server.Listeners{})
}

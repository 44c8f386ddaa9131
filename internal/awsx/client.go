// Package awsx builds the AWS SDK clients the service uses: SNS for the
// direct SMS gateway and Secrets Manager for gateway credentials.
package awsx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Config holds AWS connection parameters.
type Config struct {
	// Endpoint overrides the default AWS endpoint for every client.
	// Set to a LocalStack URL (e.g. "http://localhost:4566") for local development;
	// static test credentials are used in that case.
	Endpoint string

	Region  string
	Timeout time.Duration
}

// Clients are the SDK clients built from one shared aws.Config.
type Clients struct {
	SNS     *sns.Client
	Secrets *secretsmanager.Client
}

// NewClients loads the default AWS configuration chain and builds clients.
func NewClients(ctx context.Context, cfg Config) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Clients{
		SNS: sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			o.BaseEndpoint = endpoint(cfg.Endpoint)
		}),
		Secrets: secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			o.BaseEndpoint = endpoint(cfg.Endpoint)
		}),
	}, nil
}

func endpoint(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

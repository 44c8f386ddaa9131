package awsx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aelexs/otp-dispatch/internal/awsx"
)

func TestNewClientsWithEndpoint(t *testing.T) {
	clients, err := awsx.NewClients(context.Background(), awsx.Config{
		Endpoint: "http://localhost:4566",
		Region:   "ap-south-1",
		Timeout:  5 * time.Second,
	})

	require.NoError(t, err)
	require.NotNil(t, clients.SNS)
	require.NotNil(t, clients.Secrets)
}

func TestNewClientsWithDefaultEndpoint(t *testing.T) {
	clients, err := awsx.NewClients(context.Background(), awsx.Config{Region: "ap-south-1"})

	require.NoError(t, err)
	require.NotNil(t, clients.SNS)
	require.NotNil(t, clients.Secrets)
}

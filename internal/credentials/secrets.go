// Package credentials loads gateway credentials from AWS Secrets Manager so
// they never have to live in environment variables.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// secretsGetter is the subset of Secrets Manager used here. The real
// *secretsmanager.Client satisfies it.
type secretsGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SignedGateway holds the signed gateway's account credentials.
type SignedGateway struct {
	Username  string
	Password  domain.SecretString
	SecureKey domain.SecretString
}

type signedGatewaySecret struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	SecureKey string `json:"secure_key"`
}

// LoadSignedGateway fetches a JSON secret of the form
// {"username": "...", "password": "...", "secure_key": "..."}.
// Password and secure key are required; username may come from config.
func LoadSignedGateway(ctx context.Context, sm secretsGetter, secretID string) (SignedGateway, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return SignedGateway{}, fmt.Errorf("get secret %q: %w", secretID, err)
	}

	var raw signedGatewaySecret
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &raw); err != nil {
		// The decode error may quote secret material; keep it out of the message.
		return SignedGateway{}, fmt.Errorf("secret %q is not a JSON object: %w", secretID, domain.ErrConfigRequired)
	}
	if raw.Password == "" || raw.SecureKey == "" {
		return SignedGateway{}, fmt.Errorf("secret %q: password and secure_key are required: %w", secretID, domain.ErrConfigRequired)
	}

	return SignedGateway{
		Username:  raw.Username,
		Password:  domain.SecretString(raw.Password),
		SecureKey: domain.SecretString(raw.SecureKey),
	}, nil
}

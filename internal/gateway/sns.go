package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// SNSGatewayName is the registry name of the Amazon SNS gateway.
const SNSGatewayName = "sns"

// snsPublisher is the subset of the SNS API the gateway needs. The real
// *sns.Client satisfies it.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSConfig configures an SNSGateway.
type SNSConfig struct {
	SenderID        string
	MessageTemplate string // must contain one %s for the code
	CodeLength      int
}

// SNSGateway delivers directly through Amazon SNS SMS, bypassing the proxy.
// It synthesizes a 200 result carrying the SNS message id so the rest of the
// pipeline treats it like any HTTP gateway.
type SNSGateway struct {
	client snsPublisher
	cfg    SNSConfig
}

// NewSNSGateway creates an SNSGateway backed by the given SNS client.
func NewSNSGateway(client snsPublisher, cfg SNSConfig) *SNSGateway {
	cfg.MessageTemplate = lo.CoalesceOrEmpty(cfg.MessageTemplate, "Your verification code is: %s")
	cfg.CodeLength = lo.Ternary(cfg.CodeLength > 0, cfg.CodeLength, domain.DefaultCodeLength)
	return &SNSGateway{client: client, cfg: cfg}
}

func (g *SNSGateway) Name() string    { return SNSGatewayName }
func (g *SNSGateway) CodeLength() int { return g.cfg.CodeLength }

// Deliver publishes the code as a transactional SMS within the request deadline.
func (g *SNSGateway) Deliver(ctx context.Context, req Request) transport.Result {
	res := transport.Result{RequestID: req.Transport.RequestID, Gateway: g.Name()}

	timeout := lo.Ternary(req.Transport.Timeout > 0, req.Transport.Timeout, domain.DefaultDispatchTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if g.cfg.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType: aws.String("String"), StringValue: aws.String(g.cfg.SenderID),
		}
	}

	out, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(req.MobileNumber.String()),
		Message:           aws.String(fmt.Sprintf(g.cfg.MessageTemplate, req.OTP)),
		MessageAttributes: attrs,
	})
	if err != nil {
		res.Code, res.Err = classifySNS(err)
		return res
	}

	res.StatusCode = http.StatusOK
	res.Body = []byte(aws.ToString(out.MessageId))
	return res
}

// Check accepts the synthesized 200.
func (g *SNSGateway) Check(res transport.Result) error {
	return checkStatus(res, http.StatusOK, http.StatusOK)
}

func classifySNS(err error) (string, error) {
	var apiErr smithy.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT", fmt.Errorf("sns publish: %w: %w", domain.ErrTimeout, err)
	case errors.As(err, &apiErr):
		code := apiErr.ErrorCode()
		if strings.HasPrefix(code, "InvalidParameter") {
			return code, fmt.Errorf("sns publish: %w: %w", domain.ErrInvalidInput, err)
		}
		return code, fmt.Errorf("sns publish: %w: %w", domain.ErrGateway, err)
	default:
		return "", fmt.Errorf("sns publish: %w: %w", domain.ErrTransport, err)
	}
}

var _ Gateway = (*SNSGateway)(nil)

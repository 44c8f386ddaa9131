package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/samber/lo"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// JSONGatewayName is the registry name of the JSON gateway.
const JSONGatewayName = "json"

// JSONConfig configures a JSONGateway.
type JSONConfig struct {
	Endpoint   string
	CodeLength int
}

// JSONGateway posts {"mobile_no","otp"} to a generic HTTP endpoint.
type JSONGateway struct {
	sender     Sender
	endpoint   string
	codeLength int
}

// NewJSONGateway creates a JSONGateway.
func NewJSONGateway(sender Sender, cfg JSONConfig) *JSONGateway {
	return &JSONGateway{
		sender:     sender,
		endpoint:   cfg.Endpoint,
		codeLength: lo.Ternary(cfg.CodeLength > 0, cfg.CodeLength, domain.DefaultCodeLength),
	}
}

type jsonPayload struct {
	MobileNo string `json:"mobile_no"`
	OTP      string `json:"otp"`
}

func (g *JSONGateway) Name() string    { return JSONGatewayName }
func (g *JSONGateway) CodeLength() int { return g.codeLength }

// Deliver posts the JSON payload. Caller headers win over the content type.
func (g *JSONGateway) Deliver(ctx context.Context, req Request) transport.Result {
	body, err := json.Marshal(jsonPayload{MobileNo: req.MobileNumber.String(), OTP: req.OTP})
	if err != nil {
		return transport.Result{
			RequestID: req.Transport.RequestID,
			Gateway:   g.Name(),
			Err:       fmt.Errorf("encode json payload: %w: %w", domain.ErrInvalidArgument, err),
		}
	}

	cfg := req.Transport
	cfg.Headers = lo.Assign(map[string]string{"Content-Type": "application/json"}, req.Transport.Headers)

	res := g.sender.Send(ctx, http.MethodPost, g.endpoint, body, cfg)
	res.Gateway = g.Name()
	return res
}

// Check accepts any 2xx. A 2xx that declares a JSON body must carry valid JSON;
// gateways cut off by a read timeout sometimes return a truncated document.
func (g *JSONGateway) Check(res transport.Result) error {
	if err := checkStatus(res, 200, 299); err != nil {
		return err
	}
	if len(res.Body) == 0 || res.Header == nil {
		return nil
	}
	mt, _, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if err == nil && mt == "application/json" && !json.Valid(res.Body) {
		return fmt.Errorf("%s returned invalid json: %w", g.Name(), domain.ErrResponseParse)
	}
	return nil
}

var _ Gateway = (*JSONGateway)(nil)

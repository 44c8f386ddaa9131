package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/observability"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// LogGatewayName is the registry name of the log-only gateway.
const LogGatewayName = "log"

// LogGateway logs deliveries instead of sending SMS. Suitable for local
// development; the code itself is masked like every other log line.
type LogGateway struct {
	logger     *slog.Logger
	codeLength int
}

// NewLogGateway creates a LogGateway writing to logger.
func NewLogGateway(logger *slog.Logger, codeLength int) *LogGateway {
	if codeLength <= 0 {
		codeLength = domain.DefaultCodeLength
	}
	return &LogGateway{logger: logger, codeLength: codeLength}
}

func (g *LogGateway) Name() string    { return LogGatewayName }
func (g *LogGateway) CodeLength() int { return g.codeLength }

func (g *LogGateway) Deliver(ctx context.Context, req Request) transport.Result {
	g.logger.InfoContext(ctx, "otp delivery (log-only)",
		slog.String("phone", observability.MaskPhone(req.MobileNumber.String())),
		slog.String("otp", observability.MaskOTP(req.OTP)),
		slog.String("request_id", req.Transport.RequestID.String()),
	)
	return transport.Result{
		RequestID:  req.Transport.RequestID,
		Gateway:    g.Name(),
		StatusCode: http.StatusOK,
	}
}

func (g *LogGateway) Check(res transport.Result) error {
	return checkStatus(res, http.StatusOK, http.StatusOK)
}

var _ Gateway = (*LogGateway)(nil)

// Package port exposes the dispatch service over HTTP/JSON.
package port

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/samber/lo"

	"github.com/aelexs/otp-dispatch/internal/dispatch"
	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/errmap"
	"github.com/aelexs/otp-dispatch/pkg/protocol"
)

const maxRequestBytes = 64 << 10

// otpService is the narrow, consumer-defined view of the dispatch service.
// *dispatch.Service satisfies it.
type otpService interface {
	Dispatch(ctx context.Context, mobileNumber, code string, opts dispatch.Options) dispatch.Outcome
	RetryDispatch(ctx context.Context, mobileNumber string, opts dispatch.Options, maxAttempts int) dispatch.RetryOutcome
	Verify(ctx context.Context, provided, expected string, caseInsensitive bool) bool
}

var _ otpService = (*dispatch.Service)(nil)

// HandlerConfig configures an OTPHandler.
type HandlerConfig struct {
	// EchoOTP returns the dispatched code in responses. Demo use only.
	EchoOTP bool

	// AllowTransportOverrides lets callers set proxy and reject_unauthorized
	// per request. Off, such requests are rejected.
	AllowTransportOverrides bool

	// OpenAPISpec, when set, is served at GET /v1/openapi.json.
	OpenAPISpec []byte

	Logger *slog.Logger
}

// OTPHandler translates HTTP requests into dispatch calls and maps results back.
type OTPHandler struct {
	svc       otpService
	validate  *validator.Validate
	echoOTP   bool
	overrides bool // caller-supplied proxy and TLS policy
	spec      []byte
	logger    *slog.Logger
}

// NewOTPHandler creates an OTPHandler backed by the given dispatch service.
func NewOTPHandler(svc *dispatch.Service, cfg HandlerConfig) *OTPHandler {
	return newOTPHandler(svc, cfg)
}

func newOTPHandler(svc otpService, cfg HandlerConfig) *OTPHandler {
	return &OTPHandler{
		svc:       svc,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		echoOTP:   cfg.EchoOTP,
		overrides: cfg.AllowTransportOverrides,
		spec:      cfg.OpenAPISpec,
		logger:    lo.Ternary(cfg.Logger != nil, cfg.Logger, slog.Default()),
	}
}

// Register mounts the OTP routes on mux.
func (h *OTPHandler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		path    string
		handler runtime.HandlerFunc
	}{
		{"/v1/otp/send", h.Send},
		{"/v1/otp/send-with-retry", h.SendWithRetry},
		{"/v1/otp/verify", h.Verify},
	}
	for _, r := range routes {
		if err := mux.HandlePath(http.MethodPost, r.path, r.handler); err != nil {
			return fmt.Errorf("register %s: %w", r.path, err)
		}
	}
	if h.spec != nil {
		if err := mux.HandlePath(http.MethodGet, "/v1/openapi.json", h.serveSpec); err != nil {
			return fmt.Errorf("register /v1/openapi.json: %w", err)
		}
	}
	return nil
}

func (h *OTPHandler) serveSpec(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.spec)
}

// Send dispatches one OTP.
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	requestID := requestIDFrom(w, r)

	var req protocol.SendRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, requestID, err)
		return
	}

	opts, err := h.toOptions(req.DispatchOptions)
	if err != nil {
		h.writeError(w, requestID, err)
		return
	}
	opts.CorrelationID = domain.CorrelationID(requestID)

	out := h.svc.Dispatch(r.Context(), req.MobileNumber, req.OTP, opts)
	writeJSON(w, statusFor(out.Success, out.Err), h.toSendResponse(out))
}

// SendWithRetry dispatches an OTP and retries transient failures.
func (h *OTPHandler) SendWithRetry(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	requestID := requestIDFrom(w, r)

	var req protocol.SendWithRetryRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, requestID, err)
		return
	}

	opts, err := h.toOptions(req.DispatchOptions)
	if err != nil {
		h.writeError(w, requestID, err)
		return
	}
	opts.OTP = req.OTP

	out := h.svc.RetryDispatch(r.Context(), req.MobileNumber, opts, req.MaxAttempts)
	writeJSON(w, statusFor(out.Succeeded, out.Err), protocol.SendWithRetryResponse{
		Success:         out.Succeeded,
		Message:         out.Message,
		Attempts:        out.Attempts,
		SessionID:       out.SessionID.String(),
		State:           string(out.State),
		DelaysMs:        lo.Map(out.Delays, func(d time.Duration, _ int) int64 { return d.Milliseconds() }),
		TotalDurationMs: out.TotalDuration.Milliseconds(),
		LastResult:      h.toSendResponse(out.LastResult),
	})
}

// Verify compares two codes.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	requestID := requestIDFrom(w, r)

	var req protocol.VerifyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, requestID, err)
		return
	}

	valid := h.svc.Verify(r.Context(), req.Provided, req.Expected, req.CaseInsensitive)
	writeJSON(w, http.StatusOK, protocol.VerifyResponse{Valid: valid})
}

func (h *OTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w: %w", err, domain.ErrInvalidInput)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation: %w", fe.Namespace(), fe.Tag(), domain.ErrInvalidInput)
		}
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}

func (h *OTPHandler) writeError(w http.ResponseWriter, requestID string, err error) {
	httpErr := errmap.ToHTTPError(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
	}
	writeJSON(w, httpErr.StatusCode, protocol.ErrorResponse{
		Code:      httpErr.Code,
		Message:   httpErr.Message,
		RequestID: requestID,
	})
}

func (h *OTPHandler) toSendResponse(out dispatch.Outcome) protocol.SendResponse {
	return protocol.SendResponse{
		Success:       out.Success,
		Message:       out.Message,
		Gateway:       out.Gateway,
		CorrelationID: out.CorrelationID.String(),
		State:         string(out.State),
		Reason:        string(out.Reason),
		Code:          out.Code,
		StatusCode:    out.StatusCode,
		DurationMs:    out.DurationMs(),
		OTP:           lo.Ternary(h.echoOTP, out.OTP, ""),
	}
}

func (h *OTPHandler) toOptions(o protocol.DispatchOptions) (dispatch.Options, error) {
	if !h.overrides && (o.Proxy != nil || o.RejectUnauthorized != nil) {
		return dispatch.Options{}, fmt.Errorf("proxy and reject_unauthorized overrides are disabled: %w", domain.ErrInvalidInput)
	}

	opts := dispatch.Options{
		Gateway:            o.Gateway,
		Timeout:            time.Duration(o.TimeoutMs) * time.Millisecond,
		RejectUnauthorized: o.RejectUnauthorized,
		Headers:            o.Headers,
	}
	if o.Proxy != nil {
		opts.ProxyHost = o.Proxy.Host
		opts.ProxyPort = o.Proxy.Port
	}
	return opts, nil
}

// statusFor picks the HTTP status for a dispatch result.
func statusFor(success bool, err error) int {
	if success {
		return http.StatusOK
	}
	if err == nil {
		return http.StatusBadGateway
	}
	return errmap.ToHTTPStatusCode(err)
}

// requestIDFrom reuses the caller's X-Request-ID or mints a UUIDv7, and
// echoes it on the response.
func requestIDFrom(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(domain.HeaderRequestID)
	if id == "" {
		if v7, err := uuid.NewV7(); err == nil {
			id = v7.String()
		}
	}
	w.Header().Set(domain.HeaderRequestID, id)
	return id
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

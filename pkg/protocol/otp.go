// Package protocol defines the JSON request and response bodies of the OTP
// dispatch HTTP API.
package protocol

// Proxy overrides the configured forward proxy for one call.
type Proxy struct {
	Host string `json:"host,omitempty" validate:"omitempty,hostname_rfc1123|ip"`
	Port int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// DispatchOptions are the per-call overrides shared by both send endpoints.
type DispatchOptions struct {
	Gateway            string            `json:"gateway,omitempty" validate:"omitempty,max=32"`
	Proxy              *Proxy            `json:"proxy,omitempty"`
	TimeoutMs          int               `json:"timeout_ms,omitempty" validate:"omitempty,min=1,max=120000"`
	RejectUnauthorized *bool             `json:"reject_unauthorized,omitempty"`
	Headers            map[string]string `json:"headers,omitempty" validate:"omitempty,max=32"`
}

// SendRequest is the body of POST /v1/otp/send. An empty OTP asks the
// service to generate one.
type SendRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
	OTP          string `json:"otp,omitempty" validate:"omitempty,alphanum,max=18"`
	DispatchOptions
}

// SendWithRetryRequest is the body of POST /v1/otp/send-with-retry.
type SendWithRetryRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
	OTP          string `json:"otp,omitempty" validate:"omitempty,alphanum,max=18"`
	MaxAttempts  int    `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
	DispatchOptions
}

// SendResponse describes one dispatch.
type SendResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Gateway       string `json:"gateway"`
	CorrelationID string `json:"correlation_id"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
	Code          string `json:"code,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	OTP           string `json:"otp,omitempty"`
}

// SendWithRetryResponse describes a retry session.
type SendWithRetryResponse struct {
	Success         bool         `json:"success"`
	Message         string       `json:"message"`
	Attempts        int          `json:"attempts"`
	SessionID       string       `json:"session_id"`
	State           string       `json:"state"`
	DelaysMs        []int64      `json:"delays_ms"`
	TotalDurationMs int64        `json:"total_duration_ms"`
	LastResult      SendResponse `json:"last_result"`
}

// VerifyRequest is the body of POST /v1/otp/verify.
type VerifyRequest struct {
	Provided        string `json:"provided"`
	Expected        string `json:"expected"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
}

// VerifyResponse reports whether the codes matched.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// ErrorResponse is returned for requests that could not be processed.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

package transport

import (
	"net/http"
	"time"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// Result is the outcome of one exchange. Err == nil means a response was
// received, whatever its status; otherwise the exchange failed below HTTP
// and Code carries a short machine-readable cause (e.g. "ETIMEDOUT").
// Results are values and are not modified after Send returns them, apart
// from gateways stamping their name.
type Result struct {
	RequestID  domain.CorrelationID
	Gateway    string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	Code       string
	Err        error
}

// Received reports whether a response was received.
func (r Result) Received() bool { return r.Err == nil }

// Reason classifies the failure; ReasonNone for a received response.
func (r Result) Reason() domain.Reason { return domain.ReasonOf(r.Err) }

// DurationMs returns the wall-clock duration in milliseconds.
func (r Result) DurationMs() int64 { return r.Duration.Milliseconds() }

// Package errmap translates domain errors into HTTP responses.
package errmap

import (
	"errors"
	"net/http"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings is ordered: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Validation errors: 400
	{domain.ErrInvalidPhoneNumber, http.StatusBadRequest, "INVALID_MOBILE_NUMBER"},
	{domain.ErrUnknownGateway, http.StatusBadRequest, "UNKNOWN_GATEWAY"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},

	// Rate limiting: 429
	{domain.ErrPhoneRateLimited, http.StatusTooManyRequests, "PHONE_RATE_LIMITED"},

	// Upstream gateway problems
	{domain.ErrTimeout, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT"},
	{domain.ErrGateway, http.StatusBadGateway, "GATEWAY_ERROR"},
	{domain.ErrResponseParse, http.StatusBadGateway, "GATEWAY_RESPONSE_INVALID"},
	{domain.ErrTransport, http.StatusBadGateway, "GATEWAY_UNREACHABLE"},

	// Availability
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}

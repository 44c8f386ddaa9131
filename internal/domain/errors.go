package domain

import "errors"

// Sentinel errors for the OTP dispatch pipeline.
// Use errors.Is() for matching - never compare error strings.
var (
	// Validation errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidPhoneNumber = errors.New("invalid mobile number")

	// Delivery errors
	ErrTimeout       = errors.New("gateway deadline exceeded")
	ErrTransport     = errors.New("transport failure")
	ErrGateway       = errors.New("gateway returned non-success status")
	ErrResponseParse = errors.New("malformed gateway response")

	// Operational errors
	ErrPhoneRateLimited = errors.New("mobile number rate limit exceeded")
	ErrUnavailable      = errors.New("service temporarily unavailable")
	ErrUnknownGateway   = errors.New("unknown gateway")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// Reason is the failure category attached to a dispatch result.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonInvalidInput  Reason = "InvalidInput"
	ReasonTimeout       Reason = "Timeout"
	ReasonTransport     Reason = "TransportError"
	ReasonGateway       Reason = "GatewayError"
	ReasonResponseParse Reason = "ResponseParseError"
	ReasonRateLimited   Reason = "RateLimited"
)

// ReasonOf classifies err into a Reason. Unclassified errors are reported as
// transport failures since they originate below the gateway contract.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case IsClientError(err):
		return ReasonInvalidInput
	case errors.Is(err, ErrPhoneRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrGateway):
		return ReasonGateway
	case errors.Is(err, ErrResponseParse):
		return ReasonResponseParse
	default:
		return ReasonTransport
	}
}

// IsRetryable returns true if the error represents a condition that may
// succeed on another attempt. Every non-2xx gateway status is retryable;
// permanent and transient 4xx responses are not distinguished.
func IsRetryable(err error) bool {
	if err == nil || IsClientError(err) {
		return false
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrGateway) ||
		errors.Is(err, ErrResponseParse) ||
		errors.Is(err, ErrUnavailable)
}

// clientErrors enumerates domain errors caused by the caller's input.
var clientErrors = []error{
	ErrInvalidInput,
	ErrInvalidArgument,
	ErrInvalidPhoneNumber,
	ErrUnknownGateway,
}

// IsClientError returns true if the error will not succeed on retry without
// the caller changing its input.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

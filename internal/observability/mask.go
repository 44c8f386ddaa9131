package observability

import "strings"

// Mask keeps the first visibleStart and last visibleEnd characters of value
// and replaces the rest with '*', preserving length. Values too short to hide
// anything are returned unchanged. Negative counts are treated as zero.
//
// Masking is not idempotent in general: the output of Mask is itself a valid
// input and may be masked further.
func Mask(value string, visibleStart, visibleEnd int) string {
	visibleStart = max(visibleStart, 0)
	visibleEnd = max(visibleEnd, 0)

	runes := []rune(value)
	if len(runes) <= visibleStart+visibleEnd {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))
	b.WriteString(string(runes[:visibleStart]))
	b.WriteString(strings.Repeat("*", len(runes)-visibleStart-visibleEnd))
	b.WriteString(string(runes[len(runes)-visibleEnd:]))
	return b.String()
}

// MaskPhone masks a mobile number for logging.
func MaskPhone(phone string) string { return Mask(phone, 2, 2) }

// MaskOTP masks a passcode for logging.
func MaskOTP(code string) string { return Mask(code, 1, 1) }

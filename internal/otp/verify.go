package otp

import (
	"crypto/subtle"
	"strings"
)

type verifyOptions struct {
	caseInsensitive bool
}

// VerifyOption customises Verify.
type VerifyOption func(*verifyOptions)

// WithCaseInsensitive folds both codes to lower case before comparing.
func WithCaseInsensitive() VerifyOption {
	return func(o *verifyOptions) { o.caseInsensitive = true }
}

// Verify reports whether provided matches expected. Comparison is case
// sensitive unless WithCaseInsensitive is given, and runs in constant time
// for equal-length inputs. Empty strings only match each other.
func Verify(provided, expected string, opts ...VerifyOption) bool {
	var o verifyOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.caseInsensitive {
		provided = strings.ToLower(provided)
		expected = strings.ToLower(expected)
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

package domain

import (
	"encoding/json"
	"log/slog"
)

const redacted = "[REDACTED]"

// SecretString wraps gateway credentials (passwords, secure keys).
// Printing, logging or JSON-encoding it yields a placeholder; only Expose
// returns the real value.
type SecretString string

// String returns a redacted placeholder, never the actual value.
func (s SecretString) String() string { return redacted }

// GoString keeps %#v from leaking the value.
func (s SecretString) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalJSON keeps dumped configuration free of credentials.
func (s SecretString) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// Expose returns the actual secret value. Call it only where the secret is
// consumed, e.g. when hashing it into a gateway signature.
func (s SecretString) Expose() string { return string(s) }

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool { return len(s) == 0 }

var (
	_ slog.LogValuer = SecretString("")
	_ json.Marshaler = SecretString("")
)

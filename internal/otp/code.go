// Package otp generates and compares one-time passcodes. It is pure: no I/O
// and no shared mutable state, so every function is safe for concurrent use.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// GenerateCode returns a uniformly random decimal code of exactly length
// digits. Uses crypto/rand with rejection sampling (via big.Int) to avoid
// modulo bias; leading zeros are kept (e.g. "0042").
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length %d must be positive: %w", length, domain.ErrInvalidArgument)
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*s", length, n.String()), nil
}

// HashPhone returns the SHA-256 hex digest of a mobile number. Used wherever
// a number has to key external state (rate limit counters) without storing it.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(h[:])
}

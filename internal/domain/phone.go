package domain

import (
	"fmt"
	"strings"
)

// MobileNumber is a value object for a delivery target.
// Always valid in memory; use NewMobileNumber to construct.
type MobileNumber struct {
	value string
}

// NewMobileNumber validates raw before any network call is made. Numbers are
// accepted in whatever format the gateway expects; only presence and a
// minimum length of MinMobileNumberLength characters are enforced.
func NewMobileNumber(raw string) (MobileNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MobileNumber{}, fmt.Errorf("mobile number cannot be empty: %w: %w", ErrInvalidPhoneNumber, ErrInvalidInput)
	}
	if len(raw) < MinMobileNumberLength {
		return MobileNumber{}, fmt.Errorf("mobile number must have at least %d characters: %w: %w",
			MinMobileNumberLength, ErrInvalidPhoneNumber, ErrInvalidInput)
	}
	return MobileNumber{value: raw}, nil
}

// MustMobileNumber creates a MobileNumber, panicking on invalid input. Use only in tests.
func MustMobileNumber(raw string) MobileNumber {
	m, err := NewMobileNumber(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m MobileNumber) String() string { return m.value }
func (m MobileNumber) IsZero() bool   { return m.value == "" }

package dispatch

import (
	"fmt"
	"time"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// Outcome is the normalized result of one dispatch call. The caller always
// gets one; failures are described by Reason and Err, never by a panic.
type Outcome struct {
	Success       bool
	Message       string
	OTP           string // the code used; callers decide whether to expose it
	Gateway       string
	CorrelationID domain.CorrelationID
	State         State
	Reason        domain.Reason
	Code          string // low-level failure code, e.g. "ETIMEDOUT"
	StatusCode    int
	Body          []byte
	StartedAt     time.Time
	Duration      time.Duration
	Err           error
}

// DurationMs returns the wall-clock duration in milliseconds.
func (o Outcome) DurationMs() int64 { return o.Duration.Milliseconds() }

// RetryOutcome summarizes a retry session.
type RetryOutcome struct {
	Succeeded     bool
	Attempts      int
	State         RetryState
	SessionID     domain.CorrelationID
	Delays        []time.Duration // waits before attempts 2..n
	TotalDuration time.Duration
	LastResult    Outcome
	Message       string
	Err           error
}

// RetryError is returned when every attempt of a session failed.
// errors.Is and errors.As see through it to the last attempt's error.
type RetryError struct {
	Attempts  int
	Elapsed   time.Duration
	SessionID domain.CorrelationID
	Last      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("otp dispatch failed after %d attempts (session %s): %v", e.Attempts, e.SessionID, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

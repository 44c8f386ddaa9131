package otp

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// NewCorrelationID returns a ULID: a millisecond timestamp followed by 80
// random bits. IDs sort by creation time, which keeps log lines of one retry
// session adjacent.
func NewCorrelationID() domain.CorrelationID {
	return domain.CorrelationID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

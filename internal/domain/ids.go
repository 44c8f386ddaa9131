// Package domain contains the value objects, sentinel errors and defaults
// shared by every layer of the dispatch pipeline. No I/O happens here.
package domain

// CorrelationID is an opaque token tying together the log lines and gateway
// headers of one dispatch attempt or one retry session.
type CorrelationID string

func (id CorrelationID) String() string { return string(id) }
func (id CorrelationID) IsZero() bool   { return id == "" }

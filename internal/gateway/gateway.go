// Package gateway adapts the dispatch pipeline to concrete SMS gateways.
// Each adapter knows how to encode one OTP for one mobile number and how to
// judge the gateway's reply; routing, TLS and deadlines stay in transport.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// Sender performs a single exchange. *transport.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, method, url string, body []byte, cfg transport.Config) transport.Result
}

var _ Sender = (*transport.Client)(nil)

// Request is one delivery: a validated number, the code, and the exchange
// settings the orchestrator merged from defaults and caller options.
type Request struct {
	MobileNumber domain.MobileNumber
	OTP          string
	Transport    transport.Config
}

// Gateway delivers one OTP to one mobile number.
type Gateway interface {
	// Name identifies the gateway in configuration, logs and metrics.
	Name() string

	// CodeLength is the OTP length used when the caller supplies none.
	CodeLength() int

	// Deliver sends the request and returns the exchange result with
	// Result.Gateway set. It does not interpret the status code.
	Deliver(ctx context.Context, req Request) transport.Result

	// Check applies the gateway's success criteria to a result, returning
	// nil on success or an error wrapping a domain sentinel.
	Check(res transport.Result) error
}

// Registry looks gateways up by name.
type Registry struct {
	gateways map[string]Gateway
	names    []string
}

// NewRegistry builds a registry; names must be unique and non-empty.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		name := g.Name()
		if name == "" {
			return nil, fmt.Errorf("gateway with empty name: %w", domain.ErrInvalidArgument)
		}
		if _, dup := r.gateways[name]; dup {
			return nil, fmt.Errorf("duplicate gateway %q: %w", name, domain.ErrInvalidArgument)
		}
		r.gateways[name] = g
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Get returns the named gateway or an error wrapping domain.ErrUnknownGateway.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q: %w", name, domain.ErrUnknownGateway)
	}
	return g, nil
}

// Names returns the registered gateway names in sorted order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// checkStatus is the shared status rule: transport failures pass through and
// any status outside [lo, hi] is a gateway error.
func checkStatus(res transport.Result, lo, hi int) error {
	if res.Err != nil {
		return res.Err
	}
	if res.StatusCode < lo || res.StatusCode > hi {
		return fmt.Errorf("%s responded %d %s: %w",
			res.Gateway, res.StatusCode, http.StatusText(res.StatusCode), domain.ErrGateway)
	}
	return nil
}

// Package gateway defines the request/response contract the ledger needs from
// a payment gateway, plus a registry for resolving gateways by handle.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/commerce-core/pkg/money"
)

// ErrUnknownReference is returned by StatusChecker implementations that have
// no record of the queried payment.
var ErrUnknownReference = errors.New("gateway has no record of this payment")

// Request is sent for every gateway operation. Reference is the parent's
// gateway reference for captures and refunds.
type Request struct {
	TransactionHash string
	Amount          money.Money
	Reference       string
	Details         map[string]string
}

// Result is what a gateway reports for one operation, synchronously or via a
// callback. At most one of Success, Redirect and Processing should be set;
// none of them means the payment was declined.
type Result struct {
	Success     bool            `json:"success"`
	Reference   string          `json:"reference"`
	Code        string          `json:"code,omitempty"`
	Message     string          `json:"message,omitempty"`
	Redirect    bool            `json:"redirect,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Processing  bool            `json:"processing,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Declined reports whether the result is a final failure.
func (r Result) Declined() bool {
	return !r.Success && !r.Redirect && !r.Processing
}

// Gateway is implemented by each payment integration.
type Gateway interface {
	Handle() string
	Authorize(ctx context.Context, req Request) (Result, error)
	Purchase(ctx context.Context, req Request) (Result, error)
	Capture(ctx context.Context, req Request) (Result, error)
	Refund(ctx context.Context, req Request) (Result, error)
}

// LookupQuery identifies a payment when asking a gateway for its status.
// Reference may be empty when the original call never returned.
type LookupQuery struct {
	TransactionHash string
	Reference       string
}

// StatusChecker is implemented by gateways that can be polled for the
// outcome of a payment.
type StatusChecker interface {
	Lookup(ctx context.Context, query LookupQuery) (Result, error)
}

// Registry resolves gateways by handle. Handles are case-insensitive.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds a registry from the provided gateways.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		if g == nil {
			return nil, fmt.Errorf("gateway required")
		}
		handle := normalizeHandle(g.Handle())
		if handle == "" {
			return nil, fmt.Errorf("gateway handle required")
		}
		if _, exists := r.gateways[handle]; exists {
			return nil, fmt.Errorf("gateway %q registered twice", handle)
		}
		r.gateways[handle] = g
	}
	return r, nil
}

func (r *Registry) Get(handle string) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	g, ok := r.gateways[normalizeHandle(handle)]
	return g, ok
}

// Handles lists the registered handles in sorted order.
func (r *Registry) Handles() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.gateways))
	for h := range r.gateways {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

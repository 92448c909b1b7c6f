// Package provider defines the evidence provider contract: a provider
// resolves one evidence identifier to a typed value, or fails with a
// classified error so the orchestrator can decide whether to retry.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/value"
)

// Code classifies a fetch failure.
type Code string

const (
	// CodeTimeout means the provider did not answer within its deadline.
	CodeTimeout Code = "timeout"
	// CodeUnreachable means the backing source could not be contacted.
	CodeUnreachable Code = "unreachable"
	// CodeInvalidParams means the request parameters were malformed. Never
	// retried.
	CodeInvalidParams Code = "invalid_params"
	// CodeDenied means the source refused the request. Never retried.
	CodeDenied Code = "denied"
)

// Error is the only error type providers return from Fetch. Anything else is
// treated as unreachable.
type Error struct {
	Code     Code
	Provider ident.ProviderID
	Evidence ident.EvidenceID
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: evidence %s: %v", e.Provider, e.Code, e.Evidence, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: evidence %s", e.Provider, e.Code, e.Evidence)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying. Only timeouts and
// unreachable sources are transient; bad parameters and denials are final.
func (e *Error) Transient() bool {
	return e.Code == CodeTimeout || e.Code == CodeUnreachable
}

// Errf builds a classified provider error.
func Errf(code Code, prov ident.ProviderID, ev ident.EvidenceID, format string, args ...any) *Error {
	return &Error{Code: code, Provider: prov, Evidence: ev, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under code. A nil err yields a bare classified error.
func Wrap(code Code, prov ident.ProviderID, ev ident.EvidenceID, err error) *Error {
	return &Error{Code: code, Provider: prov, Evidence: ev, Err: err}
}

// CodeOf extracts the classification from err, defaulting to unreachable for
// foreign errors and timeout for context deadline expiry.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnreachable
}

// Request asks one provider for one piece of evidence. Params come verbatim
// from the condition spec.
type Request struct {
	Evidence ident.EvidenceID
	Params   map[string]any
}

// Provider resolves evidence identifiers to values. Fetch must honor ctx
// cancellation and must not retain the request after returning.
type Provider interface {
	// ID returns the identifier conditions use to select this provider.
	ID() ident.ProviderID
	// Fetch resolves one evidence identifier. On failure the returned error
	// should be a *Error; the value is ignored.
	Fetch(ctx context.Context, req Request) (value.Value, error)
}

// Registry maps provider ids to providers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[ident.ProviderID]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ident.ProviderID]Provider)}
}

// Register adds p, replacing any previous provider with the same id.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Lookup returns the provider registered under id.
func (r *Registry) Lookup(id ident.ProviderID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns all registered provider ids in sorted order.
func (r *Registry) IDs() []ident.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ident.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

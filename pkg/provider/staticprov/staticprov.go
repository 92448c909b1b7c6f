// Package staticprov serves evidence from an in-memory fixture map. It is
// the provider of choice for tests and for specs whose facts are asserted
// up front rather than fetched.
package staticprov

import (
	"context"
	"sync"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/value"
)

// Provider maps evidence ids to fixed values. Unknown evidence resolves to
// Missing. Safe for concurrent use.
type Provider struct {
	id ident.ProviderID

	mu     sync.RWMutex
	facts  map[ident.EvidenceID]value.Value
	errs   map[ident.EvidenceID]*provider.Error
	delays map[ident.EvidenceID]func(ctx context.Context) error
}

// New returns a provider answering under id with the given facts.
func New(id ident.ProviderID, facts map[ident.EvidenceID]value.Value) *Provider {
	copied := make(map[ident.EvidenceID]value.Value, len(facts))
	for k, v := range facts {
		copied[k] = v
	}
	return &Provider{
		id:     id,
		facts:  copied,
		errs:   make(map[ident.EvidenceID]*provider.Error),
		delays: make(map[ident.EvidenceID]func(ctx context.Context) error),
	}
}

func (p *Provider) ID() ident.ProviderID { return p.id }

// Set replaces the value for one evidence id.
func (p *Provider) Set(ev ident.EvidenceID, v value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.facts[ev] = v
}

// Fail makes fetches of ev return a classified error instead of a value.
func (p *Provider) Fail(ev ident.EvidenceID, code provider.Code) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[ev] = provider.Errf(code, p.id, ev, "injected failure")
}

// Stall makes fetches of ev block until ctx is done, then fail with a
// timeout. Used to exercise deadline handling.
func (p *Provider) Stall(ev ident.EvidenceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays[ev] = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

func (p *Provider) Fetch(ctx context.Context, req provider.Request) (value.Value, error) {
	p.mu.RLock()
	delay := p.delays[req.Evidence]
	injected := p.errs[req.Evidence]
	v, ok := p.facts[req.Evidence]
	p.mu.RUnlock()

	if delay != nil {
		if err := delay(ctx); err != nil {
			return value.Missing(), provider.Wrap(provider.CodeTimeout, p.id, req.Evidence, err)
		}
	}
	if injected != nil {
		return value.Missing(), injected
	}
	if !ok {
		return value.Missing(), nil
	}
	return v, nil
}

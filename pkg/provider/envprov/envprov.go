// Package envprov resolves evidence from process environment variables.
// The variable name comes from the "var" request parameter, falling back to
// the evidence id uppercased with separators mapped to underscores.
package envprov

import (
	"context"
	"os"
	"strings"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/value"
)

const DefaultID ident.ProviderID = "env"

// Provider reads the environment through lookup, which defaults to
// os.LookupEnv and is injectable for tests.
type Provider struct {
	id     ident.ProviderID
	lookup func(string) (string, bool)
}

type Option func(*Provider)

// WithLookup replaces the environment accessor.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(p *Provider) { p.lookup = fn }
}

func New(opts ...Option) *Provider {
	p := &Provider{id: DefaultID, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() ident.ProviderID { return p.id }

// Fetch resolves the variable. An unset variable is Missing. The "as"
// parameter selects the value kind: "number", "bool", or "text" (default).
func (p *Provider) Fetch(_ context.Context, req provider.Request) (value.Value, error) {
	name := varName(req)
	raw, ok := p.lookup(name)
	if !ok {
		return value.Missing(), nil
	}

	as, _ := req.Params["as"].(string)
	switch as {
	case "number":
		v, err := value.ParseNumber(raw)
		if err != nil {
			return value.Missing(), provider.Wrap(provider.CodeInvalidParams, p.id, req.Evidence, err)
		}
		return v, nil
	case "bool":
		switch strings.ToLower(raw) {
		case "true", "1":
			return value.Bool(true), nil
		case "false", "0":
			return value.Bool(false), nil
		}
		return value.Missing(), provider.Errf(provider.CodeInvalidParams, p.id, req.Evidence,
			"%s=%q is not a boolean", name, raw)
	case "", "text":
		return value.Text(raw), nil
	default:
		return value.Missing(), provider.Errf(provider.CodeInvalidParams, p.id, req.Evidence,
			"unknown coercion %q", as)
	}
}

func varName(req provider.Request) string {
	if v, ok := req.Params["var"].(string); ok && v != "" {
		return v
	}
	name := string(req.Evidence)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ':':
			return '_'
		}
		return r
	}, name)
	return strings.ToUpper(name)
}

// Package clockprov serves the current time as evidence, for specs that
// gate on dates or cut-off instants. The clock is injectable so evaluations
// stay reproducible under test.
package clockprov

import (
	"context"
	"strconv"
	"time"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/value"
)

const DefaultID ident.ProviderID = "clock"

type Provider struct {
	id  ident.ProviderID
	now func() time.Time
}

type Option func(*Provider)

// WithNow pins the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func New(opts ...Option) *Provider {
	p := &Provider{id: DefaultID, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() ident.ProviderID { return p.id }

// Fetch returns the current instant. The "format" parameter selects the
// representation: "unix" (seconds, number), "unix_ms" (milliseconds,
// number), or an RFC 3339 text timestamp (default). All representations use
// UTC.
func (p *Provider) Fetch(_ context.Context, req provider.Request) (value.Value, error) {
	now := p.now().UTC()
	format, _ := req.Params["format"].(string)
	switch format {
	case "unix":
		return value.MustNumber(strconv.FormatInt(now.Unix(), 10)), nil
	case "unix_ms":
		return value.MustNumber(strconv.FormatInt(now.UnixMilli(), 10)), nil
	case "", "rfc3339":
		return value.Text(now.Format(time.RFC3339)), nil
	default:
		return value.Missing(), provider.Errf(provider.CodeInvalidParams, p.id, req.Evidence,
			"unknown format %q", format)
	}
}

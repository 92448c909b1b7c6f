// Package httpprov fetches evidence from JSON HTTP endpoints. Each request
// names its URL in the "url" parameter (or derives it from a base URL plus
// the evidence id) and optionally selects a field with a dot-separated
// "path" parameter. Failures map onto the classified provider error codes so
// the orchestrator retries only what is transient.
package httpprov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/value"
)

// maxBody bounds response reads so a misbehaving endpoint cannot exhaust
// memory.
const maxBody = 1 << 20

type Provider struct {
	id      ident.ProviderID
	base    string
	client  *http.Client
	headers map[string]string
}

type Option func(*Provider)

// WithClient replaces the HTTP client. The orchestrator owns deadlines via
// ctx, so the client itself carries no timeout by default.
func WithClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithBaseURL makes requests without a "url" parameter resolve against base
// with the evidence id as the path.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.base = strings.TrimRight(base, "/") }
}

// WithHeader adds a header to every request, e.g. an authorization token.
func WithHeader(k, v string) Option {
	return func(p *Provider) { p.headers[k] = v }
}

func New(id ident.ProviderID, opts ...Option) *Provider {
	p := &Provider{
		id:      id,
		client:  &http.Client{Timeout: 30 * time.Second},
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() ident.ProviderID { return p.id }

func (p *Provider) Fetch(ctx context.Context, req provider.Request) (value.Value, error) {
	target, err := p.target(req)
	if err != nil {
		return value.Missing(), provider.Wrap(provider.CodeInvalidParams, p.id, req.Evidence, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return value.Missing(), provider.Wrap(provider.CodeInvalidParams, p.id, req.Evidence, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return value.Missing(), provider.Wrap(p.classify(err), p.id, req.Evidence, err)
	}
	defer resp.Body.Close()

	if code := classifyStatus(resp.StatusCode); code != "" {
		return value.Missing(), provider.Errf(code, p.id, req.Evidence,
			"%s returned %s", target, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return value.Missing(), provider.Wrap(p.classify(err), p.id, req.Evidence, err)
	}
	doc, err := provider.DecodeJSON(body)
	if err != nil {
		return value.Missing(), provider.Wrap(provider.CodeUnreachable, p.id, req.Evidence,
			fmt.Errorf("invalid JSON from %s: %w", target, err))
	}

	path, _ := req.Params["path"].(string)
	v, err := provider.ExtractPath(doc, path)
	if err != nil {
		return value.Missing(), provider.Wrap(provider.CodeInvalidParams, p.id, req.Evidence, err)
	}
	return v, nil
}

func (p *Provider) target(req provider.Request) (string, error) {
	raw, _ := req.Params["url"].(string)
	if raw == "" {
		if p.base == "" {
			return "", fmt.Errorf("no url parameter and no base URL configured")
		}
		raw = p.base + "/" + string(req.Evidence)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (p *Provider) classify(err error) provider.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return provider.CodeTimeout
	}
	return provider.CodeUnreachable
}

// classifyStatus maps an HTTP status onto an error code. A 2xx status maps
// to the empty code.
func classifyStatus(status int) provider.Code {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.CodeDenied
	case status >= 400 && status < 500:
		return provider.CodeInvalidParams
	default:
		return provider.CodeUnreachable
	}
}

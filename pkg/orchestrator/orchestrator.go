// Package orchestrator fans evidence fetches out to providers under the
// spec's limits: bounded parallelism, per-attempt timeouts, bounded retry of
// transient failures, and a global wall-clock budget. Gathering fails open:
// every condition always gets a record, and a fetch that cannot complete
// yields Missing with a classified outcome instead of an error.
package orchestrator

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/spec"
	"github.com/verdict-labs/verdict/pkg/value"
)

// Outcome states how an evidence record got its value.
type Outcome string

const (
	// OutcomeFetched means the provider answered with a value.
	OutcomeFetched Outcome = "fetched"
	// OutcomeMissing means the provider answered but the evidence does not
	// exist.
	OutcomeMissing Outcome = "missing"
	// OutcomeTimeout means every attempt hit its deadline.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeUnreachable means the provider's source could not be contacted.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeInvalidParams means the request was malformed; no retry.
	OutcomeInvalidParams Outcome = "invalid_params"
	// OutcomeDenied means the source refused the request; no retry.
	OutcomeDenied Outcome = "denied"
	// OutcomeNoProvider means the spec names a provider that is not
	// registered.
	OutcomeNoProvider Outcome = "no_provider"
	// OutcomeBudgetExceeded means the global budget expired before the fetch
	// finished.
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
)

func outcomeOf(code provider.Code) Outcome {
	switch code {
	case provider.CodeTimeout:
		return OutcomeTimeout
	case provider.CodeUnreachable:
		return OutcomeUnreachable
	case provider.CodeInvalidParams:
		return OutcomeInvalidParams
	case provider.CodeDenied:
		return OutcomeDenied
	default:
		return OutcomeUnreachable
	}
}

// Resolved reports whether the record carries a usable value.
func (o Outcome) Resolved() bool { return o == OutcomeFetched }

// EvidenceRecord is the result of gathering one condition's evidence.
type EvidenceRecord struct {
	Condition ident.ConditionID `json:"condition_id"`
	Evidence  ident.EvidenceID  `json:"evidence_id"`
	Provider  ident.ProviderID  `json:"provider_id"`
	Value     value.Value       `json:"value"`
	Outcome   Outcome           `json:"outcome"`
	Attempts  int               `json:"attempts"`
	LatencyMS int64             `json:"latency_ms"`
	Error     string            `json:"error,omitempty"`
}

// Config wires an orchestrator.
type Config struct {
	Registry *provider.Registry
	Logger   *slog.Logger
	// Limiter optionally throttles fetch attempts across all conditions.
	Limiter *rate.Limiter
	// BackoffBase is the first retry delay; each retry doubles it. Zero
	// takes the default.
	BackoffBase time.Duration
	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

const defaultBackoffBase = 50 * time.Millisecond

type Orchestrator struct {
	cfg Config
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.sleep == nil {
		cfg.sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	return &Orchestrator{cfg: cfg}
}

// Gather fetches evidence for every condition of s. Conditions dispatch in
// declaration order; the returned records are sorted by evidence id, then
// condition id, so downstream hashing is order-independent of scheduling.
func (o *Orchestrator) Gather(ctx context.Context, s *spec.Spec) []EvidenceRecord {
	budget := s.Limits.GlobalBudget()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	records := make([]EvidenceRecord, len(s.Conditions))
	sem := semaphore.NewWeighted(int64(s.Limits.Parallelism()))
	g, gctx := errgroup.WithContext(ctx)

	for i, cond := range s.Conditions {
		if err := sem.Acquire(gctx, 1); err != nil {
			records[i] = o.budgetRecord(cond)
			continue
		}
		i, cond := i, cond
		g.Go(func() error {
			defer sem.Release(1)
			records[i] = o.fetchOne(gctx, s.Limits, cond)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	sort.SliceStable(records, func(a, b int) bool {
		if records[a].Evidence != records[b].Evidence {
			return records[a].Evidence < records[b].Evidence
		}
		return records[a].Condition < records[b].Condition
	})
	return records
}

func (o *Orchestrator) budgetRecord(cond spec.ConditionSpec) EvidenceRecord {
	return EvidenceRecord{
		Condition: cond.ID,
		Evidence:  cond.Evidence,
		Provider:  cond.Provider,
		Value:     value.Missing(),
		Outcome:   OutcomeBudgetExceeded,
		Error:     "global budget exhausted before dispatch",
	}
}

func (o *Orchestrator) fetchOne(ctx context.Context, limits spec.Limits, cond spec.ConditionSpec) EvidenceRecord {
	rec := EvidenceRecord{
		Condition: cond.ID,
		Evidence:  cond.Evidence,
		Provider:  cond.Provider,
		Value:     value.Missing(),
	}
	start := o.cfg.now()
	defer func() { rec.LatencyMS = o.cfg.now().Sub(start).Milliseconds() }()

	prov, ok := o.cfg.Registry.Lookup(cond.Provider)
	if !ok {
		rec.Outcome = OutcomeNoProvider
		rec.Error = "provider not registered"
		o.cfg.Logger.Warn("evidence provider missing",
			"condition", cond.ID, "provider", cond.Provider)
		return rec
	}

	req := provider.Request{Evidence: cond.Evidence, Params: cond.Params}
	attempts := 1 + limits.Retries()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			rec.Outcome = OutcomeBudgetExceeded
			rec.Error = ctx.Err().Error()
			return rec
		}
		if o.cfg.Limiter != nil {
			if err := o.cfg.Limiter.Wait(ctx); err != nil {
				rec.Outcome = OutcomeBudgetExceeded
				rec.Error = err.Error()
				return rec
			}
		}

		rec.Attempts = attempt + 1
		v, err := o.attempt(ctx, limits.ProviderTimeout(), prov, req)
		if err == nil {
			if v.IsMissing() {
				rec.Outcome = OutcomeMissing
			} else {
				rec.Outcome = OutcomeFetched
				rec.Value = v
			}
			return rec
		}
		lastErr = err

		code := provider.CodeOf(err)
		transient := code == provider.CodeTimeout || code == provider.CodeUnreachable
		if !transient || attempt == attempts-1 {
			break
		}
		o.cfg.Logger.Debug("retrying evidence fetch",
			"condition", cond.ID, "provider", cond.Provider,
			"attempt", attempt+1, "code", string(code))
		if err := o.cfg.sleep(ctx, o.backoff(attempt)); err != nil {
			rec.Outcome = OutcomeBudgetExceeded
			rec.Error = err.Error()
			return rec
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		rec.Outcome = OutcomeBudgetExceeded
	} else {
		rec.Outcome = outcomeOf(provider.CodeOf(lastErr))
	}
	rec.Error = lastErr.Error()
	o.cfg.Logger.Warn("evidence fetch failed",
		"condition", cond.ID, "provider", cond.Provider,
		"outcome", string(rec.Outcome), "attempts", rec.Attempts)
	return rec
}

// attempt runs one fetch under the per-provider deadline.
func (o *Orchestrator) attempt(ctx context.Context, timeout time.Duration, prov provider.Provider, req provider.Request) (value.Value, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := prov.Fetch(actx, req)
	if err == nil && actx.Err() == context.DeadlineExceeded {
		// The provider returned after its deadline; the value is not
		// trustworthy under the contract.
		return value.Missing(), provider.Wrap(provider.CodeTimeout, prov.ID(), req.Evidence, actx.Err())
	}
	return v, err
}

// backoff doubles per attempt with a random jitter so colliding retries
// spread out.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.BackoffBase << uint(attempt)
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(o.cfg.BackoffBase))); err == nil {
		d += time.Duration(n.Int64())
	}
	return d
}

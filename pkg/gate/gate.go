// Package gate runs one scenario through its lifecycle: load and validate
// the spec, gather evidence, evaluate conditions and the requirement tree,
// and land in exactly one terminal state. Every run is witnessed by a
// hash-chained runpack; cancelled runs discard theirs.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdict-labs/verdict/pkg/comparator"
	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/orchestrator"
	"github.com/verdict-labs/verdict/pkg/ret"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/spec"
	"github.com/verdict-labs/verdict/pkg/tristate"
	"github.com/verdict-labs/verdict/pkg/value"
)

// State is the gate lifecycle state. Decided, Blocked, and Failed are
// terminal; only the engine drives transitions.
type State string

const (
	StatePending    State = "pending"
	StateEvaluating State = "evaluating"
	StateDecided    State = "decided"
	StateBlocked    State = "blocked"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDecided || s == StateBlocked || s == StateFailed
}

// ErrCancelled marks runs ended by caller cancellation.
var ErrCancelled = errors.New("gate: evaluation cancelled")

// Result is the terminal outcome of one run.
type Result struct {
	RunID      ident.RunID                           `json:"run_id"`
	ScenarioID ident.ScenarioID                      `json:"scenario_id"`
	SpecHash   string                                `json:"spec_hash"`
	State      State                                 `json:"state"`
	Outcome    tristate.TriState                     `json:"outcome"`
	Reason     string                                `json:"reason,omitempty"`
	Evidence   []orchestrator.EvidenceRecord         `json:"evidence,omitempty"`
	Conditions map[ident.ConditionID]tristate.TriState `json:"conditions,omitempty"`
	Plan       *ret.Plan                             `json:"-"`
	// Pack is nil for failed runs: a run that never reached a decision
	// leaves no sealed witness.
	Pack *runpack.Pack `json:"-"`
}

// Sink persists sealed runpacks.
type Sink interface {
	PutRunpack(ctx context.Context, p *runpack.Pack) error
}

// Announcer publishes terminal results, e.g. to a message broker.
type Announcer interface {
	Announce(ctx context.Context, res *Result) error
}

// Config wires a gate engine.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	// Logic selects the tri-state algebra; nil takes strong Kleene.
	Logic  tristate.Logic
	Logger *slog.Logger
	// Sink and Announcer are optional. Persistence failures fail the run;
	// announce failures only log.
	Sink      Sink
	Announcer Announcer
	// NewRunID is injectable for reproducible tests.
	NewRunID func() ident.RunID
}

type Engine struct {
	cfg    Config
	tracer trace.Tracer
}

func New(cfg Config) (*Engine, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("gate: orchestrator is required")
	}
	if cfg.Logic == nil {
		cfg.Logic = tristate.Kleene{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = ident.NewRunID
	}
	return &Engine{cfg: cfg, tracer: otel.Tracer("verdict.gate")}, nil
}

// Start evaluates one spec to a terminal state. It never panics on bad
// input: an invalid spec fails the run, unreachable evidence blocks or
// decides per the spec's policy, and ctx cancellation fails the run with
// ErrCancelled and no runpack.
func (e *Engine) Start(ctx context.Context, s *spec.Spec) *Result {
	ctx, span := e.tracer.Start(ctx, "gate.evaluate",
		trace.WithAttributes(attribute.String("scenario_id", string(s.ScenarioID))))
	defer span.End()

	res := &Result{ScenarioID: s.ScenarioID, State: StatePending, Outcome: tristate.Indeterminate}
	log := e.cfg.Logger.With("scenario", s.ScenarioID)

	if err := s.Validate(); err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		log.Error("spec rejected", "error", err)
		return res
	}
	tree, err := s.Tree()
	if err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		return res
	}
	specHash, err := s.CanonicalHash()
	if err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		return res
	}

	res.RunID = e.cfg.NewRunID()
	res.SpecHash = specHash
	res.State = StateEvaluating
	log = log.With("run", res.RunID)
	span.SetAttributes(attribute.String("run_id", string(res.RunID)))

	rec := runpack.NewRecorder(res.RunID, s.ScenarioID)
	if err := e.evaluate(ctx, s, tree, rec, res, log); err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		res.Pack = nil
		span.RecordError(err)
		log.Warn("run failed", "error", err)
		return res
	}

	pack, err := rec.Seal()
	if err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		return res
	}
	res.Pack = pack

	if e.cfg.Sink != nil {
		if err := e.cfg.Sink.PutRunpack(ctx, pack); err != nil {
			res.State = StateFailed
			res.Reason = fmt.Sprintf("persist runpack: %v", err)
			res.Pack = nil
			log.Error("runpack persistence failed", "error", err)
			return res
		}
	}
	if e.cfg.Announcer != nil {
		if err := e.cfg.Announcer.Announce(ctx, res); err != nil {
			log.Warn("announce failed", "error", err)
		}
	}

	span.SetAttributes(
		attribute.String("state", string(res.State)),
		attribute.String("outcome", res.Outcome.String()),
	)
	log.Info("run finished", "state", res.State, "outcome", res.Outcome, "steps", len(pack.Steps))
	return res
}

func (e *Engine) evaluate(ctx context.Context, s *spec.Spec, tree *ret.Tree, rec *runpack.Recorder, res *Result, log *slog.Logger) error {
	if _, err := rec.Append(runpack.StepSpecLoaded, map[string]any{
		"scenario_id": s.ScenarioID,
		"version":     s.Version,
		"spec_hash":   res.SpecHash,
	}); err != nil {
		return err
	}

	records := e.cfg.Orchestrator.Gather(ctx, s)
	if err := cancelled(ctx); err != nil {
		return err
	}
	res.Evidence = records
	if _, err := rec.Append(runpack.StepEvidenceFetched, map[string]any{
		"records": records,
	}); err != nil {
		return err
	}

	byCondition := make(map[ident.ConditionID]orchestrator.EvidenceRecord, len(records))
	for _, r := range records {
		byCondition[r.Condition] = r
	}

	res.Conditions = make(map[ident.ConditionID]tristate.TriState, len(s.Conditions))
	for _, c := range s.Conditions {
		r := byCondition[c.ID]
		result := conditionResult(c, r)
		res.Conditions[c.ID] = result
		if _, err := rec.Append(runpack.StepConditionEvaluated, map[string]any{
			"condition_id": c.ID,
			"evidence_id":  c.Evidence,
			"operator":     c.Operator,
			"outcome":      r.Outcome,
			"result":       result,
		}); err != nil {
			return err
		}
	}

	outcome, plan := tree.Evaluate(func(id ident.ConditionID) tristate.TriState {
		return res.Conditions[id]
	}, e.cfg.Logic)
	res.Outcome = outcome
	res.Plan = plan

	// A single-leaf requirement is fully witnessed by its condition step;
	// only compound trees get a traversal step.
	if s.Requirement.Condition == "" {
		if _, err := rec.Append(runpack.StepTreeEvaluated, map[string]any{
			"result":  outcome,
			"visited": plan.Visited(),
			"skipped": plan.Skipped(),
		}); err != nil {
			return err
		}
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	e.decide(s, res)
	_, err := rec.Append(runpack.StepDecided, map[string]any{
		"state":   res.State,
		"outcome": res.Outcome,
		"reason":  res.Reason,
	})
	return err
}

// decide maps the tree outcome onto a terminal state under the spec's
// indeterminacy policy.
func (e *Engine) decide(s *spec.Spec, res *Result) {
	switch res.Outcome {
	case tristate.True:
		res.State = StateDecided
		res.Reason = "requirement satisfied"
	case tristate.False:
		res.State = StateDecided
		res.Reason = "requirement not satisfied"
	case tristate.Indeterminate:
		if *s.BlockOnIndeterminate {
			res.State = StateBlocked
			res.Reason = blockReason(s, res)
		} else {
			// Fail-closed: unresolvable requirements deny.
			res.State = StateDecided
			res.Outcome = tristate.False
			res.Reason = "indeterminate requirement decided false by policy"
		}
	}
}

// blockReason enumerates the unresolved conditions behind a block, required
// ones first.
func blockReason(s *spec.Spec, res *Result) string {
	unresolved := res.Plan.Unresolved()
	required := make(map[ident.ConditionID]bool)
	for _, id := range s.RequiredConditions() {
		required[id] = true
	}
	var parts []string
	for _, id := range unresolved {
		if required[id] {
			parts = append(parts, fmt.Sprintf("%s: evidence unavailable", id))
		}
	}
	if len(parts) == 0 {
		for _, id := range unresolved {
			parts = append(parts, fmt.Sprintf("%s: evidence unavailable", id))
		}
	}
	if len(parts) == 0 {
		return "requirement indeterminate"
	}
	return strings.Join(parts, "; ")
}

// conditionResult compares gathered evidence against one condition. A fetch
// failure is not knowledge of absence: only a provider that answered can
// make a presence check false.
func conditionResult(c spec.ConditionSpec, r orchestrator.EvidenceRecord) tristate.TriState {
	switch r.Outcome {
	case orchestrator.OutcomeFetched, orchestrator.OutcomeMissing:
		return comparator.Compare(c.Operator, r.Value, c.Expected)
	default:
		if c.Operator == comparator.NotExists || c.Operator == comparator.Exists {
			return tristate.Indeterminate
		}
		return comparator.Compare(c.Operator, value.Missing(), c.Expected)
	}
}

func cancelled(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrCancelled
	}
	return nil
}

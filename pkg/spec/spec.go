// Package spec defines the declarative scenario specification: named
// conditions over evidence, the requirement expression combining them, and
// the evaluation limits. Specs are validated on load and immutable afterwards.
package spec

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/verdict-labs/verdict/pkg/canonicalize"
	"github.com/verdict-labs/verdict/pkg/comparator"
	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/ret"
	"github.com/verdict-labs/verdict/pkg/value"
)

// ErrInvalidSpec is wrapped by every validation failure so callers can
// classify spec errors without inspecting messages.
var ErrInvalidSpec = errors.New("invalid scenario spec")

// Default limits applied when a spec leaves them unset.
const (
	DefaultMaxEvidence     = 64
	DefaultMaxTreeDepth    = 16
	DefaultProviderTimeout = 5 * time.Second
	DefaultGlobalBudget    = 30 * time.Second
	DefaultMaxParallelism  = 8
	DefaultRetryLimit      = 2
)

// Spec is one scenario specification. It is owned by the gate engine for the
// duration of one evaluation and never mutated after Validate.
type Spec struct {
	ScenarioID ident.ScenarioID `json:"scenario_id"`
	Version    string           `json:"version"`
	// BlockOnIndeterminate decides whether a top-level Indeterminate
	// reports as Blocked (true) or as a decided false (false). There is no
	// default: the spec author must choose.
	BlockOnIndeterminate *bool           `json:"block_on_indeterminate"`
	Conditions           []ConditionSpec `json:"conditions"`
	Requirement          ReqExpr         `json:"requirement"`
	Limits               Limits          `json:"limits,omitempty"`
}

// ConditionSpec declares one evidence check.
type ConditionSpec struct {
	ID       ident.ConditionID   `json:"id"`
	Evidence ident.EvidenceID    `json:"evidence_id"`
	Provider ident.ProviderID    `json:"provider_id"`
	Params   map[string]any      `json:"params,omitempty"`
	Operator comparator.Operator `json:"operator"`
	Expected value.Value         `json:"expected,omitempty"`
	// Required marks conditions whose unresolved evidence must surface in
	// a Blocked reason. Optional conditions may stay indeterminate silently.
	Required bool `json:"required"`
}

// Limits bounds one evaluation. Zero fields take the package defaults.
type Limits struct {
	MaxEvidence       int   `json:"max_evidence,omitempty"`
	MaxTreeDepth      int   `json:"max_tree_depth,omitempty"`
	ProviderTimeoutMS int64 `json:"provider_timeout_ms,omitempty"`
	GlobalBudgetMS    int64 `json:"global_budget_ms,omitempty"`
	MaxParallelism    int   `json:"max_parallelism,omitempty"`
	// RetryLimit bounds transient-error retries per evidence fetch. Nil
	// takes the default; an explicit zero disables retries.
	RetryLimit *int `json:"retry_limit,omitempty"`
}

// ProviderTimeout returns the per-provider timeout.
func (l Limits) ProviderTimeout() time.Duration {
	if l.ProviderTimeoutMS <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(l.ProviderTimeoutMS) * time.Millisecond
}

// GlobalBudget returns the whole-fan-out wall-clock budget.
func (l Limits) GlobalBudget() time.Duration {
	if l.GlobalBudgetMS <= 0 {
		return DefaultGlobalBudget
	}
	return time.Duration(l.GlobalBudgetMS) * time.Millisecond
}

// Parallelism returns the fan-out bound.
func (l Limits) Parallelism() int {
	if l.MaxParallelism <= 0 {
		return DefaultMaxParallelism
	}
	return l.MaxParallelism
}

// Retries returns the transient-error retry bound.
func (l Limits) Retries() int {
	if l.RetryLimit == nil {
		return DefaultRetryLimit
	}
	if *l.RetryLimit < 0 {
		return 0
	}
	return *l.RetryLimit
}

func (l Limits) maxEvidence() int {
	if l.MaxEvidence <= 0 {
		return DefaultMaxEvidence
	}
	return l.MaxEvidence
}

func (l Limits) maxTreeDepth() int {
	if l.MaxTreeDepth <= 0 {
		return DefaultMaxTreeDepth
	}
	return l.MaxTreeDepth
}

// Validate checks every spec invariant. All failures wrap ErrInvalidSpec.
func (s *Spec) Validate() error {
	if _, err := ident.ParseScenarioID(string(s.ScenarioID)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if _, err := semver.NewVersion(s.Version); err != nil {
		return fmt.Errorf("%w: version %q is not semver: %v", ErrInvalidSpec, s.Version, err)
	}
	if s.BlockOnIndeterminate == nil {
		return fmt.Errorf("%w: block_on_indeterminate must be set explicitly", ErrInvalidSpec)
	}
	if len(s.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidSpec)
	}
	if len(s.Conditions) > s.Limits.maxEvidence() {
		return fmt.Errorf("%w: %d conditions exceed max_evidence %d",
			ErrInvalidSpec, len(s.Conditions), s.Limits.maxEvidence())
	}

	seen := make(map[ident.ConditionID]bool, len(s.Conditions))
	for i, c := range s.Conditions {
		if _, err := ident.ParseConditionID(string(c.ID)); err != nil {
			return fmt.Errorf("%w: condition %d: %v", ErrInvalidSpec, i, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate condition id %q", ErrInvalidSpec, c.ID)
		}
		seen[c.ID] = true
		if _, err := ident.ParseEvidenceID(string(c.Evidence)); err != nil {
			return fmt.Errorf("%w: condition %q: %v", ErrInvalidSpec, c.ID, err)
		}
		if _, err := ident.ParseProviderID(string(c.Provider)); err != nil {
			return fmt.Errorf("%w: condition %q: %v", ErrInvalidSpec, c.ID, err)
		}
		if !comparator.Known(c.Operator) {
			return fmt.Errorf("%w: condition %q: unknown operator %q", ErrInvalidSpec, c.ID, c.Operator)
		}
		switch c.Operator {
		case comparator.Exists, comparator.NotExists:
			// Presence checks take no expected value.
		default:
			if c.Expected.IsMissing() {
				return fmt.Errorf("%w: condition %q: operator %q needs an expected value",
					ErrInvalidSpec, c.ID, c.Operator)
			}
		}
	}

	if _, err := s.Tree(); err != nil {
		return fmt.Errorf("%w: requirement: %v", ErrInvalidSpec, err)
	}
	return nil
}

// Tree builds the validated requirement tree for this spec.
func (s *Spec) Tree() (*ret.Tree, error) {
	node, err := s.Requirement.node()
	if err != nil {
		return nil, err
	}
	known := make(map[ident.ConditionID]bool, len(s.Conditions))
	for _, c := range s.Conditions {
		known[c.ID] = true
	}
	return ret.Build(node, ret.BuildConfig{
		MaxDepth:       s.Limits.maxTreeDepth(),
		KnownCondition: func(id ident.ConditionID) bool { return known[id] },
	})
}

// Condition returns the condition spec for an id.
func (s *Spec) Condition(id ident.ConditionID) (ConditionSpec, bool) {
	for _, c := range s.Conditions {
		if c.ID == id {
			return c, true
		}
	}
	return ConditionSpec{}, false
}

// RequiredConditions returns the ids of required conditions in declaration
// order.
func (s *Spec) RequiredConditions() []ident.ConditionID {
	var out []ident.ConditionID
	for _, c := range s.Conditions {
		if c.Required {
			out = append(out, c.ID)
		}
	}
	return out
}

// CanonicalHash fingerprints the spec over its RFC 8785 canonical JSON form.
func (s *Spec) CanonicalHash() (string, error) {
	return canonicalize.Hash(s)
}

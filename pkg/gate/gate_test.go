package gate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/pkg/comparator"
	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/orchestrator"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/provider/staticprov"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/spec"
	"github.com/verdict-labs/verdict/pkg/tristate"
	"github.com/verdict-labs/verdict/pkg/value"
)

func newEngine(t *testing.T, reg *provider.Registry, opts ...func(*Config)) *Engine {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cfg := Config{
		Orchestrator: orchestrator.New(orchestrator.Config{Registry: reg, Logger: logger}),
		Logger:       logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func ageSpec(block bool) *spec.Spec {
	noRetries := 0
	return &spec.Spec{
		ScenarioID:           "loan.approval",
		Version:              "1.0.0",
		BlockOnIndeterminate: &block,
		Conditions: []spec.ConditionSpec{{
			ID:       "age_check",
			Evidence: "applicant.age",
			Provider: "profile",
			Operator: comparator.GreaterThanOrEqual,
			Expected: value.MustNumber("18"),
			Required: true,
		}},
		Requirement: spec.ReqExpr{Condition: "age_check"},
		Limits:      spec.Limits{ProviderTimeoutMS: 100, GlobalBudgetMS: 2000, RetryLimit: &noRetries},
	}
}

func TestDecidedTrueEndToEnd(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age": value.MustNumber("18"),
	}))

	res := newEngine(t, reg).Start(context.Background(), ageSpec(true))

	assert.Equal(t, StateDecided, res.State)
	assert.Equal(t, tristate.True, res.Outcome)
	assert.Equal(t, "requirement satisfied", res.Reason)
	assert.True(t, res.State.Terminal())
	assert.Equal(t, tristate.True, res.Conditions["age_check"])

	require.NotNil(t, res.Pack)
	require.Len(t, res.Pack.Steps, 4)
	kinds := make([]runpack.StepKind, 0, 4)
	for _, s := range res.Pack.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []runpack.StepKind{
		runpack.StepSpecLoaded,
		runpack.StepEvidenceFetched,
		runpack.StepConditionEvaluated,
		runpack.StepDecided,
	}, kinds)

	idx, err := runpack.Verify(res.Pack)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestTimeoutBlocksEndToEnd(t *testing.T) {
	p := staticprov.New("profile", nil)
	p.Stall("applicant.age")
	reg := provider.NewRegistry()
	reg.Register(p)

	res := newEngine(t, reg).Start(context.Background(), ageSpec(true))

	assert.Equal(t, StateBlocked, res.State)
	assert.Equal(t, tristate.Indeterminate, res.Outcome)
	assert.Equal(t, "age_check: evidence unavailable", res.Reason)
	assert.Equal(t, tristate.Indeterminate, res.Conditions["age_check"])

	require.NotNil(t, res.Pack)
	idx, err := runpack.Verify(res.Pack)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestIndeterminateDecidesFalseWhenPolicyOff(t *testing.T) {
	p := staticprov.New("profile", nil)
	p.Stall("applicant.age")
	reg := provider.NewRegistry()
	reg.Register(p)

	res := newEngine(t, reg).Start(context.Background(), ageSpec(false))

	assert.Equal(t, StateDecided, res.State)
	assert.Equal(t, tristate.False, res.Outcome)
	assert.NotEmpty(t, res.Reason)
}

func TestDecidedFalse(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age": value.MustNumber("17.99"),
	}))

	res := newEngine(t, reg).Start(context.Background(), ageSpec(true))

	assert.Equal(t, StateDecided, res.State)
	assert.Equal(t, tristate.False, res.Outcome)
	assert.Equal(t, "requirement not satisfied", res.Reason)
}

func TestCompoundTreeGetsTraversalStep(t *testing.T) {
	block := true
	s := ageSpec(true)
	s.Conditions = append(s.Conditions, spec.ConditionSpec{
		ID:       "residency",
		Evidence: "applicant.country",
		Provider: "profile",
		Operator: comparator.Equals,
		Expected: value.Text("DE"),
	})
	s.BlockOnIndeterminate = &block
	s.Requirement = spec.ReqExpr{All: []spec.ReqExpr{
		{Condition: "age_check"},
		{Condition: "residency"},
	}}

	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age":     value.MustNumber("30"),
		"applicant.country": value.Text("DE"),
	}))

	res := newEngine(t, reg).Start(context.Background(), s)
	assert.Equal(t, StateDecided, res.State)
	assert.Equal(t, tristate.True, res.Outcome)

	require.NotNil(t, res.Pack)
	require.Len(t, res.Pack.Steps, 6)
	assert.Equal(t, runpack.StepTreeEvaluated, res.Pack.Steps[4].Kind)
}

func TestInvalidSpecFails(t *testing.T) {
	s := ageSpec(true)
	s.Version = "not-semver"

	res := newEngine(t, provider.NewRegistry()).Start(context.Background(), s)

	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.RunID)
	assert.Nil(t, res.Pack)
	assert.Contains(t, res.Reason, "semver")
}

func TestCancellationFailsWithoutPack(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age": value.MustNumber("18"),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newEngine(t, reg).Start(ctx, ageSpec(true))

	assert.Equal(t, StateFailed, res.State)
	assert.Nil(t, res.Pack)
	assert.Contains(t, res.Reason, "cancelled")
}

func TestFailOpenOnTotalProviderOutage(t *testing.T) {
	// No provider registered at all still terminates.
	res := newEngine(t, provider.NewRegistry()).Start(context.Background(), ageSpec(true))
	assert.True(t, res.State.Terminal())
	assert.Equal(t, StateBlocked, res.State)
}

type memSink struct {
	packs []*runpack.Pack
	err   error
}

func (m *memSink) PutRunpack(_ context.Context, p *runpack.Pack) error {
	if m.err != nil {
		return m.err
	}
	m.packs = append(m.packs, p)
	return nil
}

type memAnnouncer struct{ results []*Result }

func (m *memAnnouncer) Announce(_ context.Context, r *Result) error {
	m.results = append(m.results, r)
	return nil
}

func TestSinkAndAnnouncer(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age": value.MustNumber("21"),
	}))

	sink := &memSink{}
	ann := &memAnnouncer{}
	e := newEngine(t, reg, func(c *Config) {
		c.Sink = sink
		c.Announcer = ann
	})
	res := e.Start(context.Background(), ageSpec(true))

	assert.Equal(t, StateDecided, res.State)
	require.Len(t, sink.packs, 1)
	assert.Equal(t, res.Pack.Fingerprint, sink.packs[0].Fingerprint)
	require.Len(t, ann.results, 1)
}

func TestSinkFailureFailsRun(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(staticprov.New("profile", map[ident.EvidenceID]value.Value{
		"applicant.age": value.MustNumber("21"),
	}))

	sink := &memSink{err: errors.New("disk full")}
	e := newEngine(t, reg, func(c *Config) { c.Sink = sink })
	res := e.Start(context.Background(), ageSpec(true))

	assert.Equal(t, StateFailed, res.State)
	assert.Nil(t, res.Pack)
	assert.Contains(t, res.Reason, "disk full")
}

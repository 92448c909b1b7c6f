package ret

import (
	"fmt"
	"strings"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/tristate"
)

// PlanNode is one entry of the evaluation trace. Children appear before
// their parent; short-circuited subtrees appear once with Skipped set and an
// undefined Result.
type PlanNode struct {
	Path      string            `json:"path"`
	Kind      NodeKind          `json:"kind"`
	Condition ident.ConditionID `json:"condition,omitempty"`
	Result    tristate.TriState `json:"result"`
	Skipped   bool              `json:"skipped,omitempty"`
}

// Plan is the deterministic trace of one tree evaluation. Identical trees
// and identical leaf results always produce an identical Plan.
type Plan struct {
	Nodes  []PlanNode        `json:"nodes"`
	Result tristate.TriState `json:"result"`
}

func (p *Plan) record(n PlanNode) {
	p.Nodes = append(p.Nodes, n)
}

// Visited returns the evaluated (non-skipped) entries.
func (p *Plan) Visited() []PlanNode {
	out := make([]PlanNode, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if !n.Skipped {
			out = append(out, n)
		}
	}
	return out
}

// Skipped returns the entries short-circuited away.
func (p *Plan) Skipped() []PlanNode {
	out := make([]PlanNode, 0)
	for _, n := range p.Nodes {
		if n.Skipped {
			out = append(out, n)
		}
	}
	return out
}

// Unresolved returns the condition ids whose leaves evaluated Indeterminate.
func (p *Plan) Unresolved() []ident.ConditionID {
	var out []ident.ConditionID
	for _, n := range p.Nodes {
		if n.Kind == KindCondition && !n.Skipped && n.Result == tristate.Indeterminate {
			if !contains(out, n.Condition) {
				out = append(out, n.Condition)
			}
		}
	}
	return out
}

// Explain renders a human-readable account of the evaluation, one line per
// trace entry, for "why did this gate fail" answers.
func (p *Plan) Explain() string {
	var b strings.Builder
	for _, n := range p.Nodes {
		switch {
		case n.Skipped && n.Kind == KindCondition:
			fmt.Fprintf(&b, "%s: condition %s skipped (short-circuit)\n", n.Path, n.Condition)
		case n.Skipped:
			fmt.Fprintf(&b, "%s: %s skipped (short-circuit)\n", n.Path, n.Kind)
		case n.Kind == KindCondition:
			fmt.Fprintf(&b, "%s: condition %s = %s\n", n.Path, n.Condition, n.Result)
		default:
			fmt.Fprintf(&b, "%s: %s = %s\n", n.Path, n.Kind, n.Result)
		}
	}
	fmt.Fprintf(&b, "result: %s", p.Result)
	return b.String()
}

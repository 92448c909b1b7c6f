package spec

import (
	"fmt"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/ret"
)

// ReqExpr is the serializable requirement expression. Exactly one field must
// be set per node.
type ReqExpr struct {
	Condition string       `json:"condition,omitempty"`
	All       []ReqExpr    `json:"all,omitempty"`
	Any       []ReqExpr    `json:"any,omitempty"`
	Not       *ReqExpr     `json:"not,omitempty"`
	AtLeast   *AtLeastExpr `json:"at_least,omitempty"`
}

// AtLeastExpr is the min-of-N group form.
type AtLeastExpr struct {
	Min int       `json:"min"`
	Of  []ReqExpr `json:"of"`
}

// node converts the expression into a ret.Node, rejecting ambiguous or empty
// nodes. Structural limits (depth, dangling references) are enforced later
// by ret.Build.
func (e ReqExpr) node() (*ret.Node, error) {
	set := 0
	if e.Condition != "" {
		set++
	}
	if e.All != nil {
		set++
	}
	if e.Any != nil {
		set++
	}
	if e.Not != nil {
		set++
	}
	if e.AtLeast != nil {
		set++
	}
	if set == 0 {
		return nil, fmt.Errorf("empty requirement node")
	}
	if set > 1 {
		return nil, fmt.Errorf("requirement node sets %d variants, want exactly one", set)
	}

	switch {
	case e.Condition != "":
		return ret.Leaf(ident.ConditionID(e.Condition)), nil
	case e.Not != nil:
		child, err := e.Not.node()
		if err != nil {
			return nil, err
		}
		return ret.Not(child), nil
	case e.AtLeast != nil:
		children, err := nodes(e.AtLeast.Of)
		if err != nil {
			return nil, err
		}
		return ret.AtLeast(e.AtLeast.Min, children...), nil
	case e.All != nil:
		children, err := nodes(e.All)
		if err != nil {
			return nil, err
		}
		return ret.All(children...), nil
	default:
		children, err := nodes(e.Any)
		if err != nil {
			return nil, err
		}
		return ret.Any(children...), nil
	}
}

func nodes(exprs []ReqExpr) ([]*ret.Node, error) {
	out := make([]*ret.Node, 0, len(exprs))
	for i, e := range exprs {
		n, err := e.node()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

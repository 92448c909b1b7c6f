// Package ret implements the requirement-tree algebra: AND/OR/NOT/min-of-N
// composition over tri-state condition results, with deterministic
// left-to-right evaluation, sound short-circuiting, and a plan trace that
// explains every outcome.
package ret

import (
	"errors"
	"fmt"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/tristate"
)

// NodeKind discriminates requirement nodes.
type NodeKind string

const (
	KindCondition NodeKind = "condition"
	KindAll       NodeKind = "all"
	KindAny       NodeKind = "any"
	KindNot       NodeKind = "not"
	KindAtLeast   NodeKind = "at_least"
)

// DefaultMaxDepth bounds requirement nesting when the build config does not
// set a limit.
const DefaultMaxDepth = 32

// Build-time validation failures.
var (
	ErrNilNode           = errors.New("ret: nil requirement node")
	ErrDepthExceeded     = errors.New("ret: requirement tree exceeds depth limit")
	ErrDanglingCondition = errors.New("ret: requirement references unknown condition")
	ErrBadGroupMin       = errors.New("ret: at_least minimum out of range")
)

// Node is one requirement-tree vertex. Nodes are immutable once built into a
// Tree; construct them with Leaf, All, Any, Not, and AtLeast.
type Node struct {
	kind     NodeKind
	cond     ident.ConditionID
	min      int
	children []*Node
}

// Leaf references a condition by id.
func Leaf(id ident.ConditionID) *Node {
	return &Node{kind: KindCondition, cond: id}
}

// All is logical AND over children. An empty All is trivially satisfied.
func All(children ...*Node) *Node {
	return &Node{kind: KindAll, children: children}
}

// Any is logical OR over children. An empty Any is unsatisfiable.
func Any(children ...*Node) *Node {
	return &Node{kind: KindAny, children: children}
}

// Not inverts its child.
func Not(child *Node) *Node {
	return &Node{kind: KindNot, children: []*Node{child}}
}

// AtLeast requires min of its children to be satisfied.
func AtLeast(min int, children ...*Node) *Node {
	return &Node{kind: KindAtLeast, min: min, children: children}
}

// Kind returns the node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// BuildConfig carries the validation limits for Build.
type BuildConfig struct {
	// MaxDepth bounds nesting; zero means DefaultMaxDepth.
	MaxDepth int
	// KnownCondition reports whether a referenced condition id exists.
	// Nil disables the dangling-reference check.
	KnownCondition func(ident.ConditionID) bool
}

// Tree is a validated, immutable requirement tree.
type Tree struct {
	root       *Node
	conditions []ident.ConditionID
}

// Build validates a requirement tree. Malformed trees (over-depth, dangling
// condition references, out-of-range group minimums) are rejected here with
// a descriptive error so evaluation never fails.
func Build(root *Node, cfg BuildConfig) (*Tree, error) {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	t := &Tree{root: root}
	if err := t.validate(root, "root", 1, maxDepth, cfg.KnownCondition); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) validate(n *Node, path string, depth, maxDepth int, known func(ident.ConditionID) bool) error {
	if n == nil {
		return fmt.Errorf("%w at %s", ErrNilNode, path)
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: depth %d at %s (limit %d)", ErrDepthExceeded, depth, path, maxDepth)
	}
	switch n.kind {
	case KindCondition:
		if known != nil && !known(n.cond) {
			return fmt.Errorf("%w: %q at %s", ErrDanglingCondition, n.cond, path)
		}
		if !contains(t.conditions, n.cond) {
			t.conditions = append(t.conditions, n.cond)
		}
		return nil
	case KindNot:
		if len(n.children) != 1 {
			return fmt.Errorf("ret: not node at %s must have exactly one child", path)
		}
		return t.validate(n.children[0], path+".not", depth+1, maxDepth, known)
	case KindAtLeast:
		if n.min < 1 || n.min > len(n.children) {
			return fmt.Errorf("%w: min %d over %d children at %s", ErrBadGroupMin, n.min, len(n.children), path)
		}
	case KindAll, KindAny:
	default:
		return fmt.Errorf("ret: unknown node kind %q at %s", n.kind, path)
	}
	for i, c := range n.children {
		childPath := fmt.Sprintf("%s.%s[%d]", path, n.kind, i)
		if err := t.validate(c, childPath, depth+1, maxDepth, known); err != nil {
			return err
		}
	}
	return nil
}

// Conditions returns the unique condition ids referenced by the tree, in
// first-visit (left-to-right) order.
func (t *Tree) Conditions() []ident.ConditionID {
	out := make([]ident.ConditionID, len(t.conditions))
	copy(out, t.conditions)
	return out
}

// Resolver maps a leaf's condition id to its tri-state result.
type Resolver func(ident.ConditionID) tristate.TriState

// Evaluate walks the tree left-to-right under the given logic (nil selects
// strong Kleene) and returns the overall result plus the plan trace.
// Short-circuiting only occurs on results the logic declares absorbing, so
// Indeterminate never hides a decisive False under Kleene.
func (t *Tree) Evaluate(resolve Resolver, logic tristate.Logic) (tristate.TriState, *Plan) {
	if logic == nil {
		logic = tristate.Kleene{}
	}
	plan := &Plan{}
	result := t.eval(t.root, "root", resolve, logic, plan)
	plan.Result = result
	return result, plan
}

func (t *Tree) eval(n *Node, path string, resolve Resolver, logic tristate.Logic, plan *Plan) tristate.TriState {
	switch n.kind {
	case KindCondition:
		result := resolve(n.cond)
		plan.record(PlanNode{Path: path, Kind: KindCondition, Condition: n.cond, Result: result})
		return result

	case KindNot:
		inner := t.eval(n.children[0], path+".not", resolve, logic, plan)
		result := logic.Not(inner)
		plan.record(PlanNode{Path: path, Kind: KindNot, Result: result})
		return result

	case KindAll:
		acc := tristate.True
		for i, c := range n.children {
			if logic.AndAbsorbing(acc) {
				t.skip(c, fmt.Sprintf("%s.all[%d]", path, i), plan)
				continue
			}
			acc = logic.And(acc, t.eval(c, fmt.Sprintf("%s.all[%d]", path, i), resolve, logic, plan))
		}
		plan.record(PlanNode{Path: path, Kind: KindAll, Result: acc})
		return acc

	case KindAny:
		acc := tristate.False
		for i, c := range n.children {
			if logic.OrAbsorbing(acc) {
				t.skip(c, fmt.Sprintf("%s.any[%d]", path, i), plan)
				continue
			}
			acc = logic.Or(acc, t.eval(c, fmt.Sprintf("%s.any[%d]", path, i), resolve, logic, plan))
		}
		plan.record(PlanNode{Path: path, Kind: KindAny, Result: acc})
		return acc

	case KindAtLeast:
		counts := tristate.GroupCounts{Total: len(n.children)}
		decided := false
		for i, c := range n.children {
			childPath := fmt.Sprintf("%s.at_least[%d]", path, i)
			if decided {
				t.skip(c, childPath, plan)
				continue
			}
			switch t.eval(c, childPath, resolve, logic, plan) {
			case tristate.True:
				counts.Satisfied++
			case tristate.Indeterminate:
				counts.Indeterminate++
			}
			remaining := len(n.children) - i - 1
			// The group is decided once min is reached, or once even the
			// remaining children cannot close the gap.
			if counts.Satisfied >= n.min ||
				counts.Satisfied+counts.Indeterminate+remaining < n.min {
				decided = true
			}
		}
		result := logic.AtLeast(n.min, counts)
		plan.record(PlanNode{Path: path, Kind: KindAtLeast, Result: result})
		return result
	}
	// Unreachable after Build validation.
	return tristate.Indeterminate
}

// skip records a short-circuited subtree without evaluating it.
func (t *Tree) skip(n *Node, path string, plan *Plan) {
	plan.record(PlanNode{Path: path, Kind: n.kind, Condition: n.cond, Skipped: true})
}

func contains(ids []ident.ConditionID, id ident.ConditionID) bool {
	for _, e := range ids {
		if e == id {
			return true
		}
	}
	return false
}

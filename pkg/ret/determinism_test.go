//go:build property
// +build property

package ret

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/tristate"
)

// genAssignment produces a leaf assignment over a fixed condition universe.
func genAssignment(ids []ident.ConditionID) gopter.Gen {
	return gen.SliceOfN(len(ids), gen.UInt8Range(0, 2)).Map(func(raw []uint8) map[ident.ConditionID]tristate.TriState {
		m := make(map[ident.ConditionID]tristate.TriState, len(ids))
		for i, id := range ids {
			m[id] = tristate.TriState(raw[i])
		}
		return m
	})
}

// genShape produces a random requirement tree over the condition universe.
func genShape(ids []ident.ConditionID, depth int) gopter.Gen {
	leaf := gen.IntRange(0, len(ids)-1).Map(func(i int) *Node { return Leaf(ids[i]) })
	if depth <= 0 {
		return leaf
	}
	child := genShape(ids, depth-1)
	composite := gen.IntRange(0, 2).FlatMap(func(v any) gopter.Gen {
		kind := v.(int)
		return gen.SliceOfN(2, child).Map(func(cs []*Node) *Node {
			switch kind {
			case 0:
				return All(cs...)
			case 1:
				return Any(cs...)
			default:
				return Not(cs[0])
			}
		})
	}, reflect.TypeOf(0))
	return gen.Weighted([]gen.WeightedGen{
		{Weight: 2, Gen: leaf},
		{Weight: 3, Gen: composite},
	})
}

func universe() []ident.ConditionID {
	ids := make([]ident.ConditionID, 4)
	for i := range ids {
		ids[i] = ident.ConditionID(fmt.Sprintf("c%d", i))
	}
	return ids
}

func TestEvaluationIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	ids := universe()

	properties.Property("repeated evaluation yields identical result and plan", prop.ForAll(
		func(root *Node, leaves map[ident.ConditionID]tristate.TriState) bool {
			tree, err := Build(root, BuildConfig{})
			if err != nil {
				return false
			}
			r1, p1 := tree.Evaluate(fixed(leaves), nil)
			r2, p2 := tree.Evaluate(fixed(leaves), nil)
			return r1 == r2 && reflect.DeepEqual(p1, p2)
		},
		genShape(ids, 3),
		genAssignment(ids),
	))

	properties.TestingRun(t)
}

func TestConjunctionPermutationInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	ids := universe()

	// The result (not the plan) is invariant under child reordering for
	// AND/OR, because Kleene conjunction and disjunction are commutative.
	properties.Property("All(a,b) == All(b,a) and Any(a,b) == Any(b,a)", prop.ForAll(
		func(a *Node, b *Node, leaves map[ident.ConditionID]tristate.TriState) bool {
			and1, err1 := Build(All(a, b), BuildConfig{})
			and2, err2 := Build(All(b, a), BuildConfig{})
			or1, err3 := Build(Any(a, b), BuildConfig{})
			or2, err4 := Build(Any(b, a), BuildConfig{})
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
				return false
			}
			ra1, _ := and1.Evaluate(fixed(leaves), nil)
			ra2, _ := and2.Evaluate(fixed(leaves), nil)
			ro1, _ := or1.Evaluate(fixed(leaves), nil)
			ro2, _ := or2.Evaluate(fixed(leaves), nil)
			return ra1 == ra2 && ro1 == ro2
		},
		genShape(ids, 2),
		genShape(ids, 2),
		genAssignment(ids),
	))

	properties.TestingRun(t)
}

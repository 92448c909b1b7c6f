package comparator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verdict-labs/verdict/pkg/tristate"
	"github.com/verdict-labs/verdict/pkg/value"
)

func num(s string) value.Value { return value.MustNumber(s) }

func TestMissingActualIsIndeterminate(t *testing.T) {
	for _, op := range Operators() {
		if op == Exists || op == NotExists {
			continue
		}
		got := Compare(op, value.Missing(), num("1"))
		assert.Equal(t, tristate.Indeterminate, got, string(op))
	}
}

func TestExistence(t *testing.T) {
	assert.Equal(t, tristate.True, Compare(Exists, value.Bool(false), value.Missing()))
	assert.Equal(t, tristate.False, Compare(Exists, value.Missing(), value.Missing()))
	assert.Equal(t, tristate.True, Compare(NotExists, value.Missing(), value.Missing()))
	assert.Equal(t, tristate.False, Compare(NotExists, value.Text(""), value.Missing()))
}

func TestEquality(t *testing.T) {
	assert.Equal(t, tristate.True, Compare(Equals, num("1.50"), num("1.5")))
	assert.Equal(t, tristate.False, Compare(Equals, value.Text("a"), value.Text("b")))
	assert.Equal(t, tristate.True, Compare(NotEquals, value.Text("a"), value.Text("b")))
	// Type mismatch is indeterminate, not false.
	assert.Equal(t, tristate.Indeterminate, Compare(Equals, value.Text("1"), num("1")))
	assert.Equal(t, tristate.Indeterminate, Compare(NotEquals, value.Bool(true), num("1")))
}

func TestNumericOrderingIsExact(t *testing.T) {
	sum, err := value.AddNumbers(num("0.1"), num("0.2"))
	assert.NoError(t, err)
	assert.Equal(t, tristate.True, Compare(Equals, sum, num("0.3")))
	assert.Equal(t, tristate.False, Compare(GreaterThan, sum, num("0.3")))
	assert.Equal(t, tristate.True, Compare(GreaterThanOrEqual, sum, num("0.3")))

	assert.Equal(t, tristate.True, Compare(GreaterThanOrEqual, num("18"), num("18")))
	assert.Equal(t, tristate.False, Compare(GreaterThanOrEqual, num("17.999999999999999999"), num("18")))
	assert.Equal(t, tristate.True, Compare(LessThan, num("-2"), num("-1.5")))
}

func TestNumericTypeMismatch(t *testing.T) {
	assert.Equal(t, tristate.Indeterminate, Compare(GreaterThan, value.Text("18"), num("17")))
	assert.Equal(t, tristate.Indeterminate, Compare(LessThanOrEqual, num("1"), value.Text("2")))
	assert.Equal(t, tristate.Indeterminate, Compare(GreaterThan, value.Bool(true), value.Bool(false)))
}

func TestLexicographicOrdering(t *testing.T) {
	assert.Equal(t, tristate.True, Compare(LexLessThan, value.Text("apple"), value.Text("banana")))
	assert.Equal(t, tristate.True, Compare(LexGreaterOrEqual, value.Text("b"), value.Text("b")))
	assert.Equal(t, tristate.False, Compare(LexGreaterThan, value.Text("a"), value.Text("b")))
	// Lexicographic operators never apply to numbers.
	assert.Equal(t, tristate.Indeterminate, Compare(LexLessThan, num("1"), num("2")))
}

func TestContains(t *testing.T) {
	assert.Equal(t, tristate.True, Compare(Contains, value.Text("hello world"), value.Text("lo wo")))
	assert.Equal(t, tristate.False, Compare(Contains, value.Text("hello"), value.Text("z")))

	list := value.List(num("1"), num("2"), num("3"))
	assert.Equal(t, tristate.True, Compare(Contains, list, value.List(num("3"), num("1"))))
	assert.Equal(t, tristate.False, Compare(Contains, list, value.List(num("4"))))
	assert.Equal(t, tristate.True, Compare(Contains, list, num("2")))
	assert.Equal(t, tristate.Indeterminate, Compare(Contains, num("1"), num("1")))
}

func TestInSet(t *testing.T) {
	set := value.List(value.Text("red"), value.Text("green"))
	assert.Equal(t, tristate.True, Compare(InSet, value.Text("red"), set))
	assert.Equal(t, tristate.False, Compare(InSet, value.Text("blue"), set))
	assert.Equal(t, tristate.Indeterminate, Compare(InSet, value.Text("red"), value.Text("red")))
}

func TestUnknownOperator(t *testing.T) {
	assert.False(t, Known(Operator("spaceship")))
	assert.Equal(t, tristate.Indeterminate, Compare(Operator("spaceship"), num("1"), num("1")))
}

func FuzzCompareNeverPanics(f *testing.F) {
	f.Add("equals", "1", "1")
	f.Add("greater_than", "abc", "0.5")
	f.Add("in_set", "", "x")
	f.Fuzz(func(t *testing.T, op, a, b string) {
		actual, err := value.ParseNumber(a)
		if err != nil {
			actual = value.Text(a)
		}
		expected, err := value.ParseNumber(b)
		if err != nil {
			expected = value.Text(b)
		}
		_ = Compare(Operator(op), actual, expected)
		_ = Compare(Operator(op), value.Missing(), expected)
		_ = Compare(Operator(op), value.List(actual), value.List(expected))
	})
}

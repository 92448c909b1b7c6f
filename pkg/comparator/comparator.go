// Package comparator evaluates a single evidence value against an expected
// value under a named operator, producing a tri-state result. The comparison
// is total: malformed operators, type mismatches, and missing evidence yield
// Indeterminate rather than errors.
package comparator

import (
	"strings"

	"github.com/verdict-labs/verdict/pkg/tristate"
	"github.com/verdict-labs/verdict/pkg/value"
)

// Operator names a comparison. Names are stable wire identifiers.
type Operator string

const (
	Equals             Operator = "equals"
	NotEquals          Operator = "not_equals"
	GreaterThan        Operator = "greater_than"
	GreaterThanOrEqual Operator = "greater_than_or_equal"
	LessThan           Operator = "less_than"
	LessThanOrEqual    Operator = "less_than_or_equal"
	LexGreaterThan     Operator = "lex_greater_than"
	LexGreaterOrEqual  Operator = "lex_greater_than_or_equal"
	LexLessThan        Operator = "lex_less_than"
	LexLessOrEqual     Operator = "lex_less_than_or_equal"
	Contains           Operator = "contains"
	InSet              Operator = "in_set"
	Exists             Operator = "exists"
	NotExists          Operator = "not_exists"
)

// Known reports whether op names a supported comparison.
func Known(op Operator) bool {
	switch op {
	case Equals, NotEquals,
		GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual,
		LexGreaterThan, LexGreaterOrEqual, LexLessThan, LexLessOrEqual,
		Contains, InSet, Exists, NotExists:
		return true
	}
	return false
}

// Operators lists the supported operator names in stable order.
func Operators() []Operator {
	return []Operator{
		Equals, NotEquals,
		GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual,
		LexGreaterThan, LexGreaterOrEqual, LexLessThan, LexLessOrEqual,
		Contains, InSet, Exists, NotExists,
	}
}

// Compare applies op to (actual, expected). It is pure and never panics.
// Missing actual evidence yields Indeterminate for every operator except
// Exists and NotExists, which decide on presence alone.
func Compare(op Operator, actual, expected value.Value) tristate.TriState {
	switch op {
	case Exists:
		return tristate.FromBool(!actual.IsMissing())
	case NotExists:
		return tristate.FromBool(actual.IsMissing())
	}

	if actual.IsMissing() {
		return tristate.Indeterminate
	}

	switch op {
	case Equals:
		if actual.Kind() != expected.Kind() {
			return tristate.Indeterminate
		}
		return tristate.FromBool(value.Equal(actual, expected))
	case NotEquals:
		if actual.Kind() != expected.Kind() {
			return tristate.Indeterminate
		}
		return tristate.FromBool(!value.Equal(actual, expected))
	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return compareNumeric(op, actual, expected)
	case LexGreaterThan, LexGreaterOrEqual, LexLessThan, LexLessOrEqual:
		return compareLex(op, actual, expected)
	case Contains:
		return compareContains(actual, expected)
	case InSet:
		return compareInSet(actual, expected)
	}
	return tristate.Indeterminate
}

// compareNumeric orders exact decimals. Comparing anything other than two
// numbers is a type mismatch.
func compareNumeric(op Operator, actual, expected value.Value) tristate.TriState {
	a, ok := actual.Rat()
	if !ok {
		return tristate.Indeterminate
	}
	e, ok := expected.Rat()
	if !ok {
		return tristate.Indeterminate
	}
	return ordering(op, a.Cmp(e))
}

// compareLex orders text byte-wise over the NFC-normalized form.
func compareLex(op Operator, actual, expected value.Value) tristate.TriState {
	a, ok := actual.AsText()
	if !ok {
		return tristate.Indeterminate
	}
	e, ok := expected.AsText()
	if !ok {
		return tristate.Indeterminate
	}
	return ordering(lexToNumeric(op), strings.Compare(a, e))
}

func lexToNumeric(op Operator) Operator {
	switch op {
	case LexGreaterThan:
		return GreaterThan
	case LexGreaterOrEqual:
		return GreaterThanOrEqual
	case LexLessThan:
		return LessThan
	case LexLessOrEqual:
		return LessThanOrEqual
	}
	return op
}

func ordering(op Operator, cmp int) tristate.TriState {
	switch op {
	case GreaterThan:
		return tristate.FromBool(cmp > 0)
	case GreaterThanOrEqual:
		return tristate.FromBool(cmp >= 0)
	case LessThan:
		return tristate.FromBool(cmp < 0)
	case LessThanOrEqual:
		return tristate.FromBool(cmp <= 0)
	}
	return tristate.Indeterminate
}

// compareContains: text ⊇ text is substring; list ⊇ list requires every
// expected element to appear; list ⊇ scalar is membership.
func compareContains(actual, expected value.Value) tristate.TriState {
	if hay, ok := actual.AsText(); ok {
		needle, ok := expected.AsText()
		if !ok {
			return tristate.Indeterminate
		}
		return tristate.FromBool(strings.Contains(hay, needle))
	}
	hay, ok := actual.AsList()
	if !ok {
		return tristate.Indeterminate
	}
	if needles, ok := expected.AsList(); ok {
		for _, n := range needles {
			if !listHas(hay, n) {
				return tristate.False
			}
		}
		return tristate.True
	}
	return tristate.FromBool(listHas(hay, expected))
}

// compareInSet: actual ∈ expected list.
func compareInSet(actual, expected value.Value) tristate.TriState {
	set, ok := expected.AsList()
	if !ok {
		return tristate.Indeterminate
	}
	return tristate.FromBool(listHas(set, actual))
}

func listHas(list []value.Value, want value.Value) bool {
	for _, e := range list {
		if value.Equal(e, want) {
			return true
		}
	}
	return false
}

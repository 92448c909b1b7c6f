// Package tristate implements three-valued logic for evidence-aware gate
// evaluation. Indeterminate models "cannot yet decide" when evidence is
// unavailable or unresolved, as distinct from a decided false.
package tristate

import (
	"encoding/json"
	"fmt"
)

// TriState is a three-valued truth value.
type TriState uint8

const (
	// False is a decided negative result.
	False TriState = iota
	// True is a decided positive result.
	True
	// Indeterminate means the evidence needed to decide is unavailable.
	Indeterminate
)

// FromBool lifts a boolean into the tri-state domain.
func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

// IsDecided reports whether the value is True or False.
func (t TriState) IsDecided() bool {
	return t == True || t == False
}

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	case Indeterminate:
		return "indeterminate"
	}
	return fmt.Sprintf("tristate(%d)", uint8(t))
}

// MarshalJSON encodes the value as its string form.
func (t TriState) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the string form.
func (t *TriState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "true":
		*t = True
	case "false":
		*t = False
	case "indeterminate":
		*t = Indeterminate
	default:
		return fmt.Errorf("tristate: unknown value %q", s)
	}
	return nil
}

// GroupCounts aggregates leaf results for min-of-N group evaluation.
type GroupCounts struct {
	Satisfied     int
	Indeterminate int
	Total         int
}

// Failed returns the number of decided-false members.
func (c GroupCounts) Failed() int {
	f := c.Total - c.Satisfied - c.Indeterminate
	if f < 0 {
		return 0
	}
	return f
}

// Logic is a swappable tri-state truth table.
type Logic interface {
	And(a, b TriState) TriState
	Or(a, b TriState) TriState
	Not(v TriState) TriState
	// AndAbsorbing reports whether v forces the result of a conjunction
	// regardless of the remaining operands. Evaluators use it to decide
	// when short-circuiting is sound.
	AndAbsorbing(v TriState) bool
	// OrAbsorbing is the disjunction counterpart of AndAbsorbing.
	OrAbsorbing(v TriState) bool
	// AtLeast evaluates "at least min of the group are satisfied" with
	// insufficient-evidence semantics.
	AtLeast(min int, counts GroupCounts) TriState
}

// Kleene is strong Kleene logic, the default. AND with any False is False and
// OR with any True is True even when other operands are Indeterminate;
// otherwise Indeterminate propagates.
type Kleene struct{}

// And implements the Kleene conjunction table.
func (Kleene) And(a, b TriState) TriState {
	if a == False || b == False {
		return False
	}
	if a == True && b == True {
		return True
	}
	return Indeterminate
}

// Or implements the Kleene disjunction table.
func (Kleene) Or(a, b TriState) TriState {
	if a == True || b == True {
		return True
	}
	if a == False && b == False {
		return False
	}
	return Indeterminate
}

// Not inverts decided values and preserves Indeterminate.
func (Kleene) Not(v TriState) TriState {
	switch v {
	case True:
		return False
	case False:
		return True
	}
	return Indeterminate
}

// AndAbsorbing: only False decides a Kleene conjunction early.
func (Kleene) AndAbsorbing(v TriState) bool { return v == False }

// OrAbsorbing: only True decides a Kleene disjunction early.
func (Kleene) OrAbsorbing(v TriState) bool { return v == True }

// AtLeast returns True when min members are satisfied, False when even the
// indeterminate members could not close the gap, and Indeterminate otherwise.
func (Kleene) AtLeast(min int, counts GroupCounts) TriState {
	return atLeast(min, counts)
}

// Bochvar is the infectious-indeterminate table: any Indeterminate operand
// makes the result Indeterminate.
type Bochvar struct{}

// And implements the Bochvar conjunction table.
func (Bochvar) And(a, b TriState) TriState {
	if a == Indeterminate || b == Indeterminate {
		return Indeterminate
	}
	if a == False || b == False {
		return False
	}
	return True
}

// Or implements the Bochvar disjunction table.
func (Bochvar) Or(a, b TriState) TriState {
	if a == Indeterminate || b == Indeterminate {
		return Indeterminate
	}
	if a == True || b == True {
		return True
	}
	return False
}

// Not inverts decided values and preserves Indeterminate.
func (Bochvar) Not(v TriState) TriState {
	return Kleene{}.Not(v)
}

// AndAbsorbing: under Bochvar both False and Indeterminate are final for AND.
func (Bochvar) AndAbsorbing(v TriState) bool { return v == False || v == Indeterminate }

// OrAbsorbing: under Bochvar both True and Indeterminate are final for OR.
func (Bochvar) OrAbsorbing(v TriState) bool { return v == True || v == Indeterminate }

// AtLeast shares the insufficient-evidence group semantics with Kleene.
func (Bochvar) AtLeast(min int, counts GroupCounts) TriState {
	return atLeast(min, counts)
}

func atLeast(min int, counts GroupCounts) TriState {
	if min <= 0 {
		return True
	}
	if counts.Satisfied >= min {
		return True
	}
	if counts.Satisfied+counts.Indeterminate < min {
		return False
	}
	return Indeterminate
}

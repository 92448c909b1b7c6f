// Package value defines the typed evidence value union used by the comparator
// and the gate engine. Numbers are exact decimals over big.Rat; binary floats
// never enter the comparison path.
package value

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind discriminates the value union.
type Kind string

const (
	KindBool    Kind = "bool"
	KindNumber  Kind = "number"
	KindText    Kind = "text"
	KindList    Kind = "list"
	KindMissing Kind = "missing"
)

// decimalPattern matches plain decimal strings: optional sign, digits,
// optional fractional digits. No exponents, no hex, no leading dot.
var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// Value is a tagged union over bool, exact decimal, text, ordered list, and
// the explicit absent value. The zero Value is Missing.
type Value struct {
	kind Kind
	b    bool
	num  *big.Rat
	text string
	list []Value
}

// Missing returns the explicit absent value.
func Missing() Value {
	return Value{kind: KindMissing}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Text wraps a string. The text is NFC-normalized so comparisons do not
// depend on the Unicode representation the provider happened to emit.
func Text(s string) Value {
	return Value{kind: KindText, text: norm.NFC.String(s)}
}

// List wraps an ordered sequence of values.
func List(vs ...Value) Value {
	out := make([]Value, len(vs))
	copy(out, vs)
	return Value{kind: KindList, list: out}
}

// ParseNumber parses an exact decimal string such as "18", "-0.25", "0.1".
func ParseNumber(s string) (Value, error) {
	if !decimalPattern.MatchString(s) {
		return Value{}, fmt.Errorf("value: invalid decimal %q", s)
	}
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return Value{}, fmt.Errorf("value: unparseable decimal %q", s)
	}
	return Value{kind: KindNumber, num: r}, nil
}

// MustNumber parses a decimal string and panics on malformed input. Intended
// for constants in specs and tests.
func MustNumber(s string) Value {
	v, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return v
}

// AddNumbers returns the exact sum of two numbers.
func AddNumbers(a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Value{}, fmt.Errorf("value: cannot add %s and %s", a.kind, b.kind)
	}
	return Value{kind: KindNumber, num: new(big.Rat).Add(a.num, b.num)}, nil
}

// Kind returns the union tag.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindMissing
	}
	return v.kind
}

// IsMissing reports whether the value is absent.
func (v Value) IsMissing() bool {
	return v.Kind() == KindMissing
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Rat returns the exact decimal payload. Callers must not mutate the result.
func (v Value) Rat() (*big.Rat, bool) {
	return v.num, v.kind == KindNumber
}

// AsText returns the NFC-normalized text payload.
func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// AsList returns the list payload. Callers must not mutate the result.
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Decimal returns the canonical decimal form of a number ("0.3", "-2", "18").
// Trailing fractional zeros are dropped and negative zero normalizes to "0".
func (v Value) Decimal() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return ratDecimalString(v.num), true
}

// Equal reports deep equality. Numbers compare by exact value, text by
// normalized form, lists element-wise in order. Missing equals Missing.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindMissing:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num.Cmp(b.num) == 0
	case KindText:
		return a.text == b.text
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug form. Not a serialization format.
func (v Value) String() string {
	switch v.Kind() {
	case KindMissing:
		return "missing"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return ratDecimalString(v.num)
	case KindText:
		return fmt.Sprintf("%q", v.text)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "invalid"
}

// ratDecimalString renders an exact finite decimal for a rational whose
// reduced denominator contains only the factors 2 and 5. All values built by
// this package satisfy that: decimal inputs have power-of-ten denominators
// and addition preserves the property.
func ratDecimalString(r *big.Rat) string {
	if r.Sign() == 0 {
		return "0"
	}
	scale := decimalScale(r.Denom())
	s := r.FloatString(scale)
	if scale > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// decimalScale returns the number of fractional digits needed for an exact
// expansion: max(a, b) where denom = 2^a * 5^b.
func decimalScale(denom *big.Int) int {
	five := big.NewInt(5)
	d := new(big.Int).Set(denom)
	mod := new(big.Int)

	twos := 0
	for d.Bit(0) == 0 && d.Sign() != 0 {
		d.Rsh(d, 1)
		twos++
	}
	fives := 0
	for {
		q, m := new(big.Int).QuoRem(d, five, mod)
		if m.Sign() != 0 {
			break
		}
		d = q
		fives++
	}
	if twos > fives {
		return twos
	}
	return fives
}

// jsonValue is the wire form of the union.
type jsonValue struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the tagged union. Numbers serialize as canonical
// decimal strings so round-trips are lossless.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind() {
	case KindMissing:
		return json.Marshal(jsonValue{Kind: KindMissing})
	case KindBool:
		payload = v.b
	case KindNumber:
		payload = ratDecimalString(v.num)
	case KindText:
		payload = v.text
	case KindList:
		payload = v.list
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Kind: v.Kind(), Value: raw})
}

// UnmarshalJSON decodes the tagged union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire jsonValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case KindMissing:
		*v = Missing()
		return nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return fmt.Errorf("value: bool payload: %w", err)
		}
		*v = Bool(b)
		return nil
	case KindNumber:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("value: number payload: %w", err)
		}
		parsed, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	case KindText:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("value: text payload: %w", err)
		}
		*v = Text(s)
		return nil
	case KindList:
		var list []Value
		if err := json.Unmarshal(wire.Value, &list); err != nil {
			return fmt.Errorf("value: list payload: %w", err)
		}
		*v = Value{kind: KindList, list: list}
		return nil
	}
	return fmt.Errorf("value: unknown kind %q", wire.Kind)
}

// FromJSON converts a decoded JSON document into a Value. Numbers must arrive
// as json.Number (decode with UseNumber) so no float64 rounding occurs.
// Objects are rejected: evidence values are scalars and lists.
func FromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Missing(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return ParseNumber(t.String())
	case string:
		return Text(t), nil
	case []any:
		out := make([]Value, 0, len(t))
		for i, e := range t {
			ev, err := FromJSON(e)
			if err != nil {
				return Value{}, fmt.Errorf("value: list element %d: %w", i, err)
			}
			out = append(out, ev)
		}
		return Value{kind: KindList, list: out}, nil
	case float64:
		return Value{}, fmt.Errorf("value: refusing float64 %v; decode JSON with UseNumber", t)
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON type %T", v)
	}
}

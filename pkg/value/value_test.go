package value

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in        string
		canonical string
	}{
		{"18", "18"},
		{"+18", "18"},
		{"-0.25", "-0.25"},
		{"0.1", "0.1"},
		{"0.10", "0.1"},
		{"-0", "0"},
		{"-0.000", "0"},
		{"007", "7"},
		{"123456789012345678901234567890.5", "123456789012345678901234567890.5"},
	}
	for _, tc := range cases {
		v, err := ParseNumber(tc.in)
		require.NoError(t, err, tc.in)
		got, ok := v.Decimal()
		require.True(t, ok)
		assert.Equal(t, tc.canonical, got, tc.in)
	}
}

func TestParseNumberRejectsNonDecimal(t *testing.T) {
	for _, s := range []string{"", ".", "1.", ".5", "1e5", "0x10", "NaN", "Inf", "1/3", "1,5", " 1"} {
		_, err := ParseNumber(s)
		assert.Error(t, err, s)
	}
}

func TestDecimalAdditionIsExact(t *testing.T) {
	// 0.1 + 0.2 == 0.3 exactly; binary floats would miss this.
	sum, err := AddNumbers(MustNumber("0.1"), MustNumber("0.2"))
	require.NoError(t, err)
	assert.True(t, Equal(sum, MustNumber("0.3")))

	dec, _ := sum.Decimal()
	assert.Equal(t, "0.3", dec)
}

func TestTextNormalization(t *testing.T) {
	// NFD "é" (e + combining acute) equals NFC "é".
	assert.True(t, Equal(Text("café"), Text("café")))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Missing(), Missing()))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Bool(true), Bool(false)))
	assert.True(t, Equal(MustNumber("1.50"), MustNumber("1.5")))
	assert.False(t, Equal(MustNumber("1"), Text("1")))
	assert.True(t, Equal(List(Bool(true), Text("a")), List(Bool(true), Text("a"))))
	assert.False(t, Equal(List(Bool(true)), List(Bool(true), Bool(true))))
	assert.False(t, Equal(Missing(), Bool(false)))
}

func TestJSONRoundTrip(t *testing.T) {
	vals := []Value{
		Missing(),
		Bool(true),
		MustNumber("0.1"),
		MustNumber("-12345.6789"),
		Text("hello"),
		List(MustNumber("1"), Text("two"), List(Bool(false)), Missing()),
	}
	for _, v := range vals {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		var back Value
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.True(t, Equal(v, back), v.String())

		// Canonical stability: second serialization is byte-identical.
		raw2, err := json.Marshal(back)
		require.NoError(t, err)
		assert.Equal(t, raw, raw2)
	}
}

func TestFromJSON(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"ok":true,"n":0.1,"s":"x","l":[1,2],"nul":null}`))
	dec.UseNumber()
	var doc map[string]any
	require.NoError(t, dec.Decode(&doc))

	n, err := FromJSON(doc["n"])
	require.NoError(t, err)
	assert.True(t, Equal(n, MustNumber("0.1")))

	l, err := FromJSON(doc["l"])
	require.NoError(t, err)
	assert.True(t, Equal(l, List(MustNumber("1"), MustNumber("2"))))

	m, err := FromJSON(doc["nul"])
	require.NoError(t, err)
	assert.True(t, m.IsMissing())

	_, err = FromJSON(doc)
	assert.Error(t, err, "objects are not evidence values")

	_, err = FromJSON(float64(0.1))
	assert.Error(t, err, "raw float64 must be refused")
}

func TestZeroValueIsMissing(t *testing.T) {
	var v Value
	assert.True(t, v.IsMissing())
	assert.Equal(t, KindMissing, v.Kind())
}

func FuzzParseNumber(f *testing.F) {
	f.Add("0.1")
	f.Add("-99999999999999999999.000001")
	f.Add("1e10")
	f.Add("--1")
	f.Fuzz(func(t *testing.T, s string) {
		v, err := ParseNumber(s)
		if err != nil {
			return
		}
		dec, ok := v.Decimal()
		if !ok {
			t.Fatal("parsed number lost its kind")
		}
		// Canonical form must re-parse to an equal value.
		back, err := ParseNumber(dec)
		if err != nil {
			t.Fatalf("canonical form %q does not re-parse: %v", dec, err)
		}
		if !Equal(v, back) {
			t.Fatalf("canonical round-trip changed value: %q -> %q", s, dec)
		}
	})
}

package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsWellFormedTokens(t *testing.T) {
	for _, s := range []string{
		"age_check",
		"scenario-1",
		"ns:prod.gate",
		"A",
		strings.Repeat("x", MaxLen),
	} {
		id, err := ParseConditionID(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, id.String())
	}
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"too long":    strings.Repeat("x", MaxLen+1),
		"space":       "a b",
		"slash":       "a/b",
		"newline":     "a\nb",
		"null byte":   "a\x00b",
		"unicode":     "café",
		"percent":     "a%20b",
		"parenthesis": "a(b)",
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenarioID(s)
			assert.Error(t, err)
		})
	}
}

func TestNewRunIDIsValid(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func FuzzValidate(f *testing.F) {
	f.Add("age_check")
	f.Add("")
	f.Add("a/../../etc/passwd")
	f.Add("http://example.com")
	f.Fuzz(func(t *testing.T, s string) {
		// Must never panic; valid tokens must round-trip.
		if Valid(s) {
			id, err := ParseEvidenceID(s)
			if err != nil {
				t.Fatalf("Valid(%q) but parse failed: %v", s, err)
			}
			if id.String() != s {
				t.Fatalf("round-trip mismatch: %q != %q", id.String(), s)
			}
		}
	})
}

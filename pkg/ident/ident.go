// Package ident defines the validated identifier tokens used throughout the
// gate engine. Identifiers are opaque strings with a restricted character set
// so they can be embedded in paths, URLs, and log lines without escaping.
package ident

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxLen is the maximum identifier length in bytes.
const MaxLen = 128

// TenantID scopes runs in multi-tenant deployments.
type TenantID string

// ScenarioID names a scenario specification.
type ScenarioID string

// ConditionID names a condition within a scenario.
type ConditionID string

// EvidenceID names a declared piece of evidence.
type EvidenceID string

// ProviderID names a registered evidence provider.
type ProviderID string

// RunID identifies a single gate evaluation run.
type RunID string

func (id TenantID) String() string    { return string(id) }
func (id ScenarioID) String() string  { return string(id) }
func (id ConditionID) String() string { return string(id) }
func (id EvidenceID) String() string  { return string(id) }
func (id ProviderID) String() string  { return string(id) }
func (id RunID) String() string       { return string(id) }

// ParseTenantID validates and returns a tenant identifier.
func ParseTenantID(s string) (TenantID, error) {
	if err := validate("tenant id", s); err != nil {
		return "", err
	}
	return TenantID(s), nil
}

// ParseScenarioID validates and returns a scenario identifier.
func ParseScenarioID(s string) (ScenarioID, error) {
	if err := validate("scenario id", s); err != nil {
		return "", err
	}
	return ScenarioID(s), nil
}

// ParseConditionID validates and returns a condition identifier.
func ParseConditionID(s string) (ConditionID, error) {
	if err := validate("condition id", s); err != nil {
		return "", err
	}
	return ConditionID(s), nil
}

// ParseEvidenceID validates and returns an evidence identifier.
func ParseEvidenceID(s string) (EvidenceID, error) {
	if err := validate("evidence id", s); err != nil {
		return "", err
	}
	return EvidenceID(s), nil
}

// ParseProviderID validates and returns a provider identifier.
func ParseProviderID(s string) (ProviderID, error) {
	if err := validate("provider id", s); err != nil {
		return "", err
	}
	return ProviderID(s), nil
}

// ParseRunID validates and returns a run identifier.
func ParseRunID(s string) (RunID, error) {
	if err := validate("run id", s); err != nil {
		return "", err
	}
	return RunID(s), nil
}

// NewRunID mints a fresh run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Valid reports whether s is a well-formed identifier token.
func Valid(s string) bool {
	return validate("identifier", s) == nil
}

func validate(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if len(s) > MaxLen {
		return fmt.Errorf("%s exceeds %d bytes", kind, MaxLen)
	}
	for i := 0; i < len(s); i++ {
		if !identChar(s[i]) {
			return fmt.Errorf("%s contains invalid byte %q at offset %d", kind, s[i], i)
		}
	}
	return nil
}

// identChar allows [a-zA-Z0-9._:-]. Anything else risks injection into
// downstream paths, URLs, or log lines.
func identChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == ':' || c == '-':
		return true
	}
	return false
}

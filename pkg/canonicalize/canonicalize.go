// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and content hashing. Every hash in a runpack and every spec
// fingerprint is computed over the canonical form so digests are stable
// across processes and platforms.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix tags digests with the algorithm so stored fingerprints remain
// self-describing if the algorithm ever changes.
const HashPrefix = "sha256:"

// JSON returns the RFC 8785 canonical JSON encoding of v. The value is
// marshaled with encoding/json first so struct tags are respected, then
// transformed to canonical form (sorted keys, canonical number formatting,
// no HTML escaping).
func JSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return canonical, nil
}

// Hash returns the prefixed SHA-256 hex digest of the canonical JSON
// encoding of v.
func Hash(v any) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the prefixed SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

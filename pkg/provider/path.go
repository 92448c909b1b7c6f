package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/verdict-labs/verdict/pkg/value"
)

// ExtractPath walks a dot-separated path through decoded JSON and converts
// the leaf into a typed value. A path miss yields Missing, not an error, so
// absent evidence stays indeterminate instead of failing the fetch. Numbers
// must still be json.Number; float64 leaves are rejected.
func ExtractPath(doc any, path string) (value.Value, error) {
	cur := doc
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return value.Missing(), nil
			}
			cur, ok = m[seg]
			if !ok {
				return value.Missing(), nil
			}
		}
	}
	v, err := value.FromJSON(cur)
	if err != nil {
		return value.Missing(), fmt.Errorf("path %q: %w", path, err)
	}
	return v, nil
}

// DecodeJSON decodes raw JSON preserving numbers as json.Number so decimal
// evidence survives extraction exactly.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

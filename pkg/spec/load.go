package spec

import (
	_ "embed"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaSource string

// compiled at init; the embedded schema is part of the build, so a compile
// failure is a programming error.
var schema = jsonschema.MustCompileString("spec.schema.json", schemaSource)

// LoadJSON decodes, schema-validates, and spec-validates a JSON document.
func LoadJSON(data []byte) (*Spec, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrInvalidSpec, err)
	}
	return load(doc)
}

// LoadYAML decodes, schema-validates, and spec-validates a YAML document.
// Expected values must use the explicit tagged form ({kind: number, value:
// "18"}) so decimal exactness survives the YAML parser.
func LoadYAML(data []byte) (*Spec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidSpec, err)
	}
	return load(doc)
}

func load(doc any) (*Spec, error) {
	// Normalize through encoding/json so schema validation sees the same
	// shapes regardless of the source syntax.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize: %v", ErrInvalidSpec, err)
	}
	var normalized any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("%w: normalize: %v", ErrInvalidSpec, err)
	}
	if err := schema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrInvalidSpec, err)
	}

	var s Spec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidSpec, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Package schema validates outcome envelopes against the published JSON schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/docextract/internal/core/domain"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

const schemaURL = "envelope.schema.json"

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
})

// Source returns the raw schema document.
func Source() []byte {
	return bytes.Clone(envelopeSchema)
}

// ValidateJSON checks a serialized envelope.
func ValidateJSON(data []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("envelope does not match schema: %w", err)
	}
	return nil
}

func Validate(env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return ValidateJSON(data)
}

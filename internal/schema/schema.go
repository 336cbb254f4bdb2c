// Package schema wraps compiled JSON Schemas used to validate untrusted
// mini-app documents before they are decoded into typed structs.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const baseURL = "https://voicednut.schemas.local/"

// ErrMismatch is returned when a document does not satisfy its schema.
var ErrMismatch = errors.New("schema mismatch")

type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// MustCompile compiles a draft 2020-12 schema and panics on error. Schemas are
// string constants, so a failure here is a programming error.
func MustCompile(name, src string) *Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(name, src string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := baseURL + name + ".schema.json"
	if err := c.AddResource(url, bytes.NewReader([]byte(src))); err != nil {
		return nil, fmt.Errorf("schema %s load: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

func (s *Schema) Name() string { return s.name }

// Validate checks an already-decoded JSON value (as produced by a decoder
// with UseNumber into an `any`).
func (s *Schema) Validate(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMismatch, s.name, err)
	}
	return nil
}

// Decode validates raw JSON against the schema and unmarshals the validated
// value into dst. Only the object keys the schema declares reach dst, so a
// case-variant key cannot overwrite a validated field.
func (s *Schema) Decode(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMismatch, s.name, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: %s: trailing data", ErrMismatch, s.name)
	}
	if err := s.Validate(v); err != nil {
		return err
	}
	validated, err := json.Marshal(s.project(v))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMismatch, s.name, err)
	}
	if err := json.Unmarshal(validated, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMismatch, s.name, err)
	}
	return nil
}

// project drops object keys the schema does not declare. Schemas without
// declared properties pass the value through.
func (s *Schema) project(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(s.compiled.Properties) == 0 {
		return v
	}
	out := make(map[string]any, len(s.compiled.Properties))
	for name := range s.compiled.Properties {
		if val, ok := obj[name]; ok {
			out[name] = val
		}
	}
	return out
}

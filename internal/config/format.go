package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResponseFormatType is the discriminator of ResponseFormat.
type ResponseFormatType string

const (
	FormatText       ResponseFormatType = "text"
	FormatJSONObject ResponseFormatType = "json_object"
	FormatJSONSchema ResponseFormatType = "json_schema"
)

// JSONSchemaSpec is the payload of a json_schema response format.
type JSONSchemaSpec struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema"`
}

// ResponseFormat is one of {type: text}, {type: json_object} or
// {type: json_schema, json_schema: {...}}. A json_schema format carries the
// compiled schema so step outputs can be checked against it.
type ResponseFormat struct {
	Type       ResponseFormatType
	JSONSchema *JSONSchemaSpec

	compiled *jsonschema.Schema
}

type responseFormatWire struct {
	Type       ResponseFormatType `json:"type"`
	JSONSchema *JSONSchemaSpec    `json:"json_schema,omitempty"`
}

// ParseResponseFormat decodes a RESPONSE_FORMAT value. Values starting with
// "{" are JSON objects; anything else names the type directly.
func ParseResponseFormat(raw string) (ResponseFormat, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ResponseFormat{Type: FormatText}, nil
	}
	if strings.HasPrefix(raw, "{") {
		var f ResponseFormat
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return ResponseFormat{}, fmt.Errorf("invalid RESPONSE_FORMAT: %w", err)
		}
		return f, nil
	}

	f := ResponseFormat{Type: ResponseFormatType(raw)}
	if err := f.check(); err != nil {
		return ResponseFormat{}, err
	}
	return f, nil
}

func (f ResponseFormat) MarshalJSON() ([]byte, error) {
	t := f.Type
	if t == "" {
		t = FormatText
	}
	w := responseFormatWire{Type: t}
	if t == FormatJSONSchema {
		w.JSONSchema = f.JSONSchema
	}
	return json.Marshal(w)
}

func (f *ResponseFormat) UnmarshalJSON(data []byte) error {
	var w responseFormatWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed := ResponseFormat{Type: w.Type, JSONSchema: w.JSONSchema}
	if parsed.Type == "" {
		parsed.Type = FormatText
	}
	if err := parsed.check(); err != nil {
		return err
	}
	if parsed.Type == FormatJSONSchema {
		schema, err := compileSchema(parsed.JSONSchema)
		if err != nil {
			return err
		}
		parsed.compiled = schema
	}
	*f = parsed
	return nil
}

func (f ResponseFormat) check() error {
	switch f.Type {
	case FormatText, FormatJSONObject:
		return nil
	case FormatJSONSchema:
		if f.JSONSchema == nil || len(f.JSONSchema.Schema) == 0 {
			return fmt.Errorf("response format json_schema requires a json_schema.schema object")
		}
		return nil
	default:
		return fmt.Errorf("unsupported response format type %q", f.Type)
	}
}

// ExpectsJSON reports whether the model was asked for a JSON reply.
func (f ResponseFormat) ExpectsJSON() bool {
	return f.Type == FormatJSONObject || f.Type == FormatJSONSchema
}

// Validate checks doc against the compiled json_schema, if any.
func (f ResponseFormat) Validate(doc interface{}) error {
	if f.compiled == nil {
		return nil
	}
	return f.compiled.Validate(doc)
}

func compileSchema(spec *JSONSchemaSpec) (*jsonschema.Schema, error) {
	name := spec.Name
	if name == "" {
		name = "response"
	}
	resource := name + ".schema.json"

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(spec.Schema)); err != nil {
		return nil, fmt.Errorf("failed to load response schema %q: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema %q: %w", name, err)
	}
	return schema, nil
}

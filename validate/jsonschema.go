package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/CogniformAI/instructor-stream-go/schema"
)

// SchemaValidator performs exhaustive JSON Schema validation (format,
// bounds, enum, pattern, and so on) against a compiled
// santhosh-tekuri/jsonschema document, for callers that need more than
// schema.Schema's coarse type/required checks -- typically a ModeFinal
// policy's last word before a pipeline reports its result.
type SchemaValidator struct {
	compiled *jsonschema.Schema
}

// NewSchemaValidator compiles a raw JSON Schema document (as bytes) and
// returns a validator for it.
func NewSchemaValidator(name string, rawSchema []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(rawSchema)); err != nil {
		return nil, fmt.Errorf("validate: adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("validate: compiling schema: %w", err)
	}
	return &SchemaValidator{compiled: compiled}, nil
}

// Validate checks value (a decoded JSON value: map[string]any, []any, or
// a scalar) against the compiled schema.
func (v *SchemaValidator) Validate(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("validate: marshaling value for validation: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("validate: re-decoding value for validation: %w", err)
	}
	if err := v.compiled.Validate(decoded); err != nil {
		return &SnapshotValidationError{Msg: err.Error()}
	}
	return nil
}

// SchemaValidatorFor renders s as a JSON Schema document -- the same
// {type, properties, required, items} shape schema.Schema already
// mirrors -- and compiles it into a SchemaValidator, so a policy built
// from a reflection- or jsonschema-go-backed schema.Schema can still run
// the genuine santhosh-tekuri/jsonschema algorithm (formats, bounds,
// patterns, enums) as its last word instead of SafeParse's coarse
// type/required check alone.
func SchemaValidatorFor(name string, s schema.Schema) (*SchemaValidator, error) {
	if s == nil {
		return nil, fmt.Errorf("validate: nil schema")
	}
	raw, err := json.Marshal(schemaDocument(s))
	if err != nil {
		return nil, fmt.Errorf("validate: rendering schema document: %w", err)
	}
	return NewSchemaValidator(name, raw)
}

func schemaDocument(s schema.Schema) map[string]any {
	doc := map[string]any{}
	var jsonType string
	switch s.Kind() {
	case schema.KindObject:
		jsonType = "object"
		props := map[string]any{}
		var required []string
		for _, f := range s.Fields() {
			props[f.Name] = schemaDocument(f.Schema)
			if f.Required {
				required = append(required, f.Name)
			}
		}
		doc["properties"] = props
		if len(required) > 0 {
			doc["required"] = required
		}
	case schema.KindArray:
		jsonType = "array"
		if elem := s.Elem(); elem != nil {
			doc["items"] = schemaDocument(elem)
		}
	case schema.KindString:
		jsonType = "string"
	case schema.KindInteger:
		jsonType = "integer"
	case schema.KindNumber:
		jsonType = "number"
	case schema.KindBoolean:
		jsonType = "boolean"
	case schema.KindNull:
		jsonType = "null"
	default:
		return doc
	}
	if s.Nullable() {
		doc["type"] = []string{jsonType, "null"}
	} else {
		doc["type"] = jsonType
	}
	return doc
}

package schema

import (
	"fmt"

	jsonschemago "github.com/google/jsonschema-go/jsonschema"
)

// jsonSchemaAdapter wraps a *jsonschema.Schema (as produced by
// github.com/google/jsonschema-go, the schema library used across the
// rest of this pack for tool/resource schemas) behind the Schema
// interface.
type jsonSchemaAdapter struct {
	raw      *jsonschemago.Schema
	optional bool
}

// FromJSONSchema wraps a github.com/google/jsonschema-go schema so it can
// drive stub building and coarse validation the same way a
// reflection-derived schema.Schema does.
func FromJSONSchema(raw *jsonschemago.Schema) Schema {
	return &jsonSchemaAdapter{raw: raw}
}

func schemaType(raw *jsonschemago.Schema) string {
	switch t := raw.Type.(type) {
	case string:
		return t
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	if len(raw.Properties) > 0 {
		return "object"
	}
	if raw.Items != nil {
		return "array"
	}
	return "any"
}

func (s *jsonSchemaAdapter) Kind() Kind {
	switch schemaType(s.raw) {
	case "object":
		return KindObject
	case "array":
		return KindArray
	case "string":
		return KindString
	case "integer":
		return KindInteger
	case "number":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "null":
		return KindNull
	default:
		return KindAny
	}
}

func (s *jsonSchemaAdapter) Fields() []Field {
	if s.Kind() != KindObject || len(s.raw.Properties) == 0 {
		return nil
	}
	required := map[string]bool{}
	for _, name := range s.raw.Required {
		required[name] = true
	}
	fields := make([]Field, 0, len(s.raw.Properties))
	for name, sub := range s.raw.Properties {
		fields = append(fields, Field{
			Name:     name,
			Schema:   FromJSONSchema(sub),
			Required: required[name],
		})
	}
	return fields
}

func (s *jsonSchemaAdapter) Elem() Schema {
	if s.Kind() != KindArray || s.raw.Items == nil {
		return nil
	}
	return FromJSONSchema(s.raw.Items)
}

func (s *jsonSchemaAdapter) Optional() bool { return s.optional }

func (s *jsonSchemaAdapter) Nullable() bool {
	switch t := s.raw.Type.(type) {
	case []string:
		for _, v := range t {
			if v == "null" {
				return true
			}
		}
	case []any:
		for _, v := range t {
			if v == "null" {
				return true
			}
		}
	}
	return false
}

func (s *jsonSchemaAdapter) Unwrap() Schema { return s }

func (s *jsonSchemaAdapter) Default() (any, bool) {
	if s.raw.Default == nil {
		return nil, false
	}
	return s.raw.Default, true
}

func (s *jsonSchemaAdapter) SafeParse(value any) error {
	if value == nil {
		if s.Nullable() || s.optional {
			return nil
		}
		return fmt.Errorf("value is required, got null")
	}
	switch s.Kind() {
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		for _, f := range s.Fields() {
			v, present := obj[f.Name]
			if !present {
				if f.Required {
					return fmt.Errorf("missing required field %q", f.Name)
				}
				continue
			}
			if err := f.Schema.SafeParse(v); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	case KindArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		elem := s.Elem()
		for i, item := range items {
			if elem == nil {
				continue
			}
			if err := elem.SafeParse(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case KindNumber, KindInteger:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	}
	return nil
}

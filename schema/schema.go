// Package schema defines the capability interface (C3) the rest of the
// engine uses to introspect a target shape: enough to build a
// default-populated stub and to coarsely validate a completed snapshot,
// without depending on any one schema library. FromStruct derives a
// Schema from a Go struct via reflection (grounded in the teacher's
// tools.generateObjectSchema); FromJSONSchema wraps a
// github.com/google/jsonschema-go schema for callers that already have
// one.
package schema

// Kind is the coarse shape of a schema node.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindNull
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	default:
		return "any"
	}
}

// Field is one named member of an object schema.
type Field struct {
	Name     string
	Schema   Schema
	Required bool
}

// Schema is the minimal introspection surface the engine needs: enough
// to know a node's coarse kind, its object fields or array element type,
// whether it may be absent or null, its default value, and to coarsely
// validate a completed value against it.
type Schema interface {
	// Kind reports the coarse shape of this schema node, after resolving
	// through any optional/nullable wrapper.
	Kind() Kind
	// Fields lists the named members of an object schema. FromStruct
	// schemas list them in declaration order; FromJSONSchema schemas list
	// them in Go map iteration order, which is not stable. It returns nil
	// for non-object kinds.
	Fields() []Field
	// Elem returns the element schema of an array schema. It returns nil
	// for non-array kinds.
	Elem() Schema
	// Optional reports whether the field this schema was reached through
	// may be entirely absent.
	Optional() bool
	// Nullable reports whether this schema accepts a JSON null.
	Nullable() bool
	// Unwrap strips one layer of optional/nullable/refinement wrapping
	// and returns the underlying concrete schema. It returns the receiver
	// unchanged once nothing more can be unwrapped.
	Unwrap() Schema
	// Default returns the schema's default value, if one is defined.
	Default() (any, bool)
	// SafeParse coarsely validates value against this schema's kind and
	// required fields, without attempting full structural validation.
	// Callers that need exhaustive validation should use the validate
	// package's SchemaValidator instead.
	SafeParse(value any) error
}

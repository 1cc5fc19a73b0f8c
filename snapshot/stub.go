package snapshot

import "github.com/CogniformAI/instructor-stream-go/schema"

// TypeDefaults configures the fallback value BuildStub uses for a
// scalar field that has neither a schema-declared default (step 1 of
// spec section 4.3's default-resolution algorithm) nor a caller-
// supplied DefaultData seed. The zero value of TypeDefaults leaves
// every kind at the spec's own default: a bare JSON null.
type TypeDefaults struct {
	String  any
	Number  any
	Boolean any
}

// StubOptions configures BuildStub's default-resolution algorithm
// (spec section 4.3): a per-kind TypeDefaults fallback, and a
// DefaultData partial seed that wins over any schema- or type-derived
// default at a matching path.
type StubOptions struct {
	TypeDefaults TypeDefaults
	DefaultData  map[string]any
}

// BuildStub constructs the default-populated value skeleton for s: an
// object with every field present, set to (in priority order) its
// DefaultData seed, its schema-declared default, its TypeDefaults
// fallback, or null; an empty slice for arrays; a nested stub for
// objects. Optional fields without a declared default or a seed are
// omitted entirely so their absence can still be observed.
//
// The result is built once per pipeline run and then mutated in place
// by Assembler.ApplyToken, so callers must not share a stub between
// concurrent runs.
func BuildStub(s schema.Schema, opts ...StubOptions) any {
	var o StubOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	var seed any
	if o.DefaultData != nil {
		seed = o.DefaultData
	}
	return buildStub(s, o.TypeDefaults, seed)
}

func buildStub(s schema.Schema, td TypeDefaults, seed any) any {
	if s == nil {
		return nil
	}
	if s.Kind() == schema.KindObject {
		seedMap, _ := seed.(map[string]any)
		obj := make(map[string]any, len(s.Fields()))
		for _, f := range s.Fields() {
			if seedMap != nil {
				if v, present := seedMap[f.Name]; present {
					obj[f.Name] = buildStub(f.Schema, td, v)
					continue
				}
			}
			if f.Schema.Optional() && !hasDefault(f.Schema) {
				continue
			}
			obj[f.Name] = buildStub(f.Schema, td, nil)
		}
		return obj
	}
	// Per-user-supplied DefaultData wins over any computed default at
	// this (non-object) path.
	if seed != nil {
		return seed
	}
	if def, ok := s.Default(); ok {
		return def
	}
	switch s.Kind() {
	case schema.KindArray:
		return []any{}
	case schema.KindString:
		return td.String
	case schema.KindNumber, schema.KindInteger:
		return td.Number
	case schema.KindBoolean:
		return td.Boolean
	case schema.KindNull:
		return nil
	default:
		return nil
	}
}

func hasDefault(s schema.Schema) bool {
	_, ok := s.Default()
	return ok
}

// Package engine wires jsonlex, grammar, schema, snapshot, validate,
// dispatch, and adapt into the two entry points the rest of the world
// actually calls: Pipeline for a single schema fed by one token stream,
// and Dispatcher for a multi-channel upstream. It also owns the ambient
// concerns the teacher carries around its own entry points: a Config
// loaded with koanf, and a debug.yaml trace dump in the same shape the
// teacher's LLM.WithDebug writes.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/CogniformAI/instructor-stream-go/snapshot"
	"github.com/CogniformAI/instructor-stream-go/validate"
)

// Config holds every tunable of the streaming pipeline. Zero-value
// Config is valid and matches the engine's least surprising defaults:
// no separator, no strict root, validation disabled, strings unbuffered.
type Config struct {
	// Separator, if non-empty, is required between top-level values (for
	// JSONL-style multi-document streams).
	Separator string `koanf:"separator"`
	// StrictRoot requires every top-level value to be a JSON object.
	StrictRoot bool `koanf:"strict_root"`
	// ValidationMode is one of "none", "on_complete", or "final".
	ValidationMode string `koanf:"validation_mode"`
	// BufferedStrings, when true, only emits a string token once it's
	// fully received instead of incrementally.
	BufferedStrings bool `koanf:"buffered_strings"`
	// HandleUnescapedNewlines accepts raw newlines inside strings instead
	// of requiring `\n`, for providers that stream output ahead of strict
	// JSON encoding.
	HandleUnescapedNewlines bool `koanf:"handle_unescaped_newlines"`
	// MinEmitInterval coalesces partial-string emissions to at most once
	// per interval. Zero means emit on every token.
	MinEmitInterval time.Duration `koanf:"min_emit_interval"`
	// AutoUnstringify re-parses string fields whose text is a JSON object
	// or array, once the top-level value has closed. Only Pipeline applies
	// it.
	AutoUnstringify bool `koanf:"auto_unstringify"`
	// UnstringifyMaxDepth bounds how many nested levels AutoUnstringify
	// will re-parse. Defaults to snapshot.DefaultUnstringifyDepth when
	// zero and AutoUnstringify is enabled.
	UnstringifyMaxDepth int `koanf:"unstringify_max_depth"`
	// ChannelBuffer sizes each dispatch channel's fragment queue.
	ChannelBuffer int `koanf:"channel_buffer"`
	// FailFast, when true, cancels every channel of a Dispatcher run as
	// soon as one reports an error instead of letting siblings run to
	// completion.
	FailFast bool `koanf:"fail_fast"`
	// Debug, when true, writes a debug.yaml trace of the run the way the
	// teacher's LLM.WithDebug does.
	Debug bool `koanf:"debug"`
	// TypeDefaults configures the fallback value used for a scalar field
	// with no schema-declared default (spec section 6.1's typeDefaults
	// input). It's a per-call construction knob, not an
	// environment/file-loadable primitive, so koanf skips it.
	TypeDefaults snapshot.TypeDefaults `koanf:"-"`
	// DefaultData seeds the initial stub at matching paths, overriding
	// any schema- or type-derived default there (spec section 6.1's
	// defaultData input). Also construction-only; koanf skips it.
	DefaultData map[string]any `koanf:"-"`
}

// ParseValidationMode maps Config.ValidationMode's string form to a
// validate.Mode, defaulting to validate.ModeNone on an empty or
// unrecognized value.
func ParseValidationMode(s string) validate.Mode {
	switch s {
	case "on_complete":
		return validate.ModeOnComplete
	case "final":
		return validate.ModeFinal
	default:
		return validate.ModeNone
	}
}

// LoadConfig loads a Config from an optional YAML file at path (skipped
// if path is empty) overlaid with environment variables prefixed
// "INSTRUCTOR_STREAM_", the way a koanf-based CLI configuration layer is
// built: file defaults first, environment overrides on top.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("engine: loading config file %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("INSTRUCTOR_STREAM_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("engine: loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("engine: unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// envTransform maps an INSTRUCTOR_STREAM_-prefixed environment variable to
// its koanf key. Unlike the nested config Howard-nolan-llmrouter's
// internal/config layers env vars over (where "_" doubles as the "."
// path delimiter), this Config is a flat struct whose koanf tags are
// themselves snake_case ("strict_root", "min_emit_interval"), so the
// trailing underscores must be preserved rather than folded into path
// separators.
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "INSTRUCTOR_STREAM_"))
}

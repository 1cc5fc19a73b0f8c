// Package validate implements the coarse validation policies (C5): how
// and when a chunk's Meta.IsValid / Meta.ValidationErrors fields get
// populated as values stream in.
package validate

import (
	"strings"

	"github.com/CogniformAI/instructor-stream-go/schema"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
)

// Mode selects when validation runs against the in-progress snapshot.
type Mode int

const (
	// ModeNone never validates; every chunk reports IsValid true.
	ModeNone Mode = iota
	// ModeOnComplete validates only the subtree rooted at each path as it
	// closes, flagging individual fields as they complete without
	// requiring the whole snapshot to be done.
	ModeOnComplete
	// ModeFinal validates the whole snapshot exactly once, after the
	// top-level value has closed.
	ModeFinal
)

// SnapshotValidationError reports a schema violation found in a
// completed snapshot or subtree.
type SnapshotValidationError struct {
	Path snapshot.Path
	Msg  string
}

func (e *SnapshotValidationError) Error() string {
	if len(e.Path) == 0 {
		return "validate: " + e.Msg
	}
	return "validate: " + e.Path.String() + ": " + e.Msg
}

// JoinIssues collapses the issue strings a Policy attaches to a chunk's
// Meta into a single message, for callers (engine.Pipeline,
// dispatch.Dispatcher) that need to surface ModeFinal's failure as one
// terminal error rather than a per-chunk flag.
func JoinIssues(issues []string) string {
	return strings.Join(issues, "; ")
}

// Policy observes snapshot progress and decides, according to Mode,
// whether the current chunk is valid. It holds no reference to the
// schema across calls other than the one it was built with, so a single
// Policy must not be shared between concurrent pipeline runs.
type Policy struct {
	Mode   Mode
	Schema schema.Schema
	// Strict, when set, is consulted by ModeFinal instead of
	// Schema.SafeParse, so the snapshot's last word comes from the
	// genuine santhosh-tekuri/jsonschema algorithm (formats, bounds,
	// patterns, enums verbatim) rather than SafeParse's coarse
	// type/required check. NewPolicy populates it automatically via
	// SchemaValidatorFor when Mode is ModeFinal and s renders into a
	// compilable document; construction failures are not fatal -- the
	// policy just falls back to SafeParse.
	Strict *SchemaValidator

	lastErrors []string
}

// NewPolicy builds a Policy for s under the given mode. For ModeFinal it
// tries to compile s into a SchemaValidator so the last-word check runs
// full JSON Schema validation instead of SafeParse's coarse check; a
// schema that can't be rendered this way (or is nil) just leaves Strict
// unset and NewPolicy falls back to SafeParse silently.
func NewPolicy(mode Mode, s schema.Schema) *Policy {
	p := &Policy{Mode: mode, Schema: s}
	if mode == ModeFinal && s != nil {
		if v, err := SchemaValidatorFor("snapshot.json", s); err == nil {
			p.Strict = v
		}
	}
	return p
}

// Observe is called after every path closes (scalar completion or
// container close) plus once more when the root closes. root is the
// full snapshot so far; closedPath is nil for the root closure itself.
// It returns the validity verdict and error strings (if any) that
// should be attached to the current chunk's Meta.
func (p *Policy) Observe(root any, closedPath snapshot.Path, rootClosed bool) (bool, []string) {
	switch p.Mode {
	case ModeNone:
		return true, nil
	case ModeOnComplete:
		return p.observeOnComplete(root, closedPath)
	case ModeFinal:
		return p.observeFinal(root, rootClosed)
	default:
		return true, nil
	}
}

func (p *Policy) observeOnComplete(root any, closedPath snapshot.Path) (bool, []string) {
	value, sub := resolveSubSchema(root, p.Schema, closedPath)
	if sub == nil {
		return len(p.lastErrors) == 0, p.lastErrors
	}
	if err := sub.SafeParse(value); err != nil {
		p.lastErrors = append(p.lastErrors, (&SnapshotValidationError{Path: closedPath, Msg: err.Error()}).Error())
		return false, p.lastErrors
	}
	return len(p.lastErrors) == 0, p.lastErrors
}

func (p *Policy) observeFinal(root any, rootClosed bool) (bool, []string) {
	if !rootClosed {
		return true, nil
	}
	if p.Strict != nil {
		if err := p.Strict.Validate(root); err != nil {
			p.lastErrors = []string{err.Error()}
			return false, p.lastErrors
		}
		return true, nil
	}
	if err := p.Schema.SafeParse(root); err != nil {
		p.lastErrors = []string{(&SnapshotValidationError{Msg: err.Error()}).Error()}
		return false, p.lastErrors
	}
	return true, nil
}

// resolveSubSchema walks root and p.Schema along closedPath and returns
// the value and schema node found there, for on-complete validation of
// just the subtree that closed.
func resolveSubSchema(root any, s schema.Schema, path snapshot.Path) (any, schema.Schema) {
	value := root
	cur := s
	for _, seg := range path {
		if cur == nil {
			return nil, nil
		}
		if seg.IsIndex {
			arr, ok := value.([]any)
			if !ok || seg.Index >= len(arr) {
				return nil, nil
			}
			value = arr[seg.Index]
			cur = cur.Elem()
			continue
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, nil
		}
		value = obj[seg.Key]
		var next schema.Schema
		for _, f := range cur.Fields() {
			if f.Name == seg.Key {
				next = f.Schema
				break
			}
		}
		cur = next
	}
	return value, cur
}

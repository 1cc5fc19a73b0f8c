// Package grammar implements the stateful JSON grammar recognizer (C2):
// a state machine over jsonlex tokens that tracks a stack of open
// containers and derives, for every token, the path inside the value
// being built.
package grammar

import (
	"fmt"

	"github.com/CogniformAI/instructor-stream-go/jsonlex"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
)

// SyntaxError is returned when a token is inadmissible in the recognizer's
// current state: a mismatched closing bracket, a colon where a comma was
// expected, an unterminated container at end of input, or (when
// StrictRoot is set) a root value that isn't an object.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "grammar: " + e.Msg }

func syntaxErrorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// Mode is the container kind of a stack frame.
type Mode int

const (
	ModeObject Mode = iota
	ModeArray
)

// EventKind discriminates the completion events delivered via OnValue.
type EventKind int

const (
	// EventScalar fires when a string, number, boolean, or null value
	// completes.
	EventScalar EventKind = iota
	// EventObjectClose fires when a `}` closes an object, after all of its
	// keys (if any) have been applied.
	EventObjectClose
	// EventArrayClose fires when a `]` closes an array.
	EventArrayClose
)

// Event describes a value (scalar or container) that has just completed.
type Event struct {
	Path  snapshot.Path
	Value any
	Kind  EventKind
}

// State is one of the recognizer's parser states (spec section 4.2).
type State int

const (
	StateValue State = iota
	StateKey
	StateColon
	StateComma
	StateSeparator
	StateEnded
	StateError
)

type frame struct {
	mode          Mode
	basePath      snapshot.Path
	pendingKey    string
	hasPendingKey bool
	nextIndex     int
}

func (f *frame) currentKeySegment() snapshot.Segment {
	if f.mode == ModeArray {
		return snapshot.Index(f.nextIndex)
	}
	return snapshot.Key(f.pendingKey)
}

// Recognizer consumes jsonlex.Token values and invokes OnToken for every
// value-bearing token (carrying its current path) and OnValue whenever a
// scalar or container completes. It holds one stack frame per level of
// JSON nesting.
type Recognizer struct {
	// OnToken is invoked for every string/number/boolean/null token,
	// including intermediate partial string tokens, with the path the
	// token is being written to.
	OnToken func(path snapshot.Path, value any, partial bool)
	// OnValue is invoked when a scalar completes, or when an object/array
	// closes.
	OnValue func(Event)
	// StrictRoot requires the first token of every top-level value to be
	// `{`.
	StrictRoot bool
	// ExpectSeparator, when true, requires a SEPARATOR token between
	// top-level values instead of treating the stream as ended after the
	// first one.
	ExpectSeparator bool

	state State
	stack []frame
	err   error
}

// New creates a Recognizer. Configure OnToken/OnValue/StrictRoot/
// ExpectSeparator on the returned value before feeding tokens.
func New() *Recognizer {
	return &Recognizer{state: StateValue}
}

// Err returns the syntax error that put the recognizer into its terminal
// error state, if any.
func (r *Recognizer) Err() error { return r.err }

// Depth returns the current container nesting depth (0 at the root).
func (r *Recognizer) Depth() int { return len(r.stack) }

// Ended reports whether the recognizer has finished its (single, unless a
// separator is configured) top-level value.
func (r *Recognizer) Ended() bool { return r.state == StateEnded }

func (r *Recognizer) fail(err error) error {
	r.state = StateError
	r.err = err
	return err
}

func (r *Recognizer) emitToken(path snapshot.Path, value any, partial bool) {
	if r.OnToken != nil {
		r.OnToken(path, value, partial)
	}
}

func (r *Recognizer) emitValue(ev Event) {
	if r.OnValue != nil {
		r.OnValue(ev)
	}
}

// Feed advances the state machine by one lexical token.
func (r *Recognizer) Feed(tok jsonlex.Token) error {
	switch r.state {
	case StateError:
		return r.err
	case StateValue:
		return r.handleValue(tok)
	case StateKey:
		return r.handleKey(tok)
	case StateColon:
		return r.handleColon(tok)
	case StateComma:
		return r.handleComma(tok)
	case StateSeparator:
		return r.handleSeparator(tok)
	case StateEnded:
		return r.fail(syntaxErrorf("unexpected token %s after value ended", tok.Kind))
	}
	return nil
}

// End signals upstream close. It fails if a container was left open.
func (r *Recognizer) End() error {
	if r.state == StateError {
		return r.err
	}
	if len(r.stack) > 0 {
		return r.fail(syntaxErrorf("unterminated container at end of input (depth %d)", len(r.stack)))
	}
	if r.state != StateEnded && r.state != StateSeparator {
		return r.fail(syntaxErrorf("unexpected end of input before a value was produced"))
	}
	return nil
}

func (r *Recognizer) currentValuePath() snapshot.Path {
	if len(r.stack) == 0 {
		return nil
	}
	top := &r.stack[len(r.stack)-1]
	return append(top.basePath.Clone(), top.currentKeySegment())
}

func (r *Recognizer) handleValue(tok jsonlex.Token) error {
	path := r.currentValuePath()

	if len(r.stack) == 0 && r.StrictRoot && tok.Kind != jsonlex.LeftBrace {
		return r.fail(syntaxErrorf("strict-root violation: root value must be an object, got %s", tok.Kind))
	}

	switch tok.Kind {
	case jsonlex.LeftBrace:
		r.stack = append(r.stack, frame{mode: ModeObject, basePath: path})
		r.state = StateKey
		return nil
	case jsonlex.LeftBracket:
		r.stack = append(r.stack, frame{mode: ModeArray, basePath: path})
		r.state = StateValue
		return nil
	case jsonlex.RightBracket:
		return r.closeContainer(ModeArray)
	case jsonlex.String, jsonlex.Number, jsonlex.True, jsonlex.False, jsonlex.Null:
		return r.handlePrimitive(tok, path)
	default:
		return r.fail(syntaxErrorf("unexpected token %s where a value was expected", tok.Kind))
	}
}

func (r *Recognizer) handlePrimitive(tok jsonlex.Token, path snapshot.Path) error {
	r.emitToken(path, tok.Value, tok.Partial)
	if tok.Partial {
		return nil
	}
	r.emitValue(Event{Path: path, Value: tok.Value, Kind: EventScalar})
	return r.afterValueComplete()
}

func (r *Recognizer) afterValueComplete() error {
	if len(r.stack) == 0 {
		if r.ExpectSeparator {
			r.state = StateSeparator
		} else {
			r.state = StateEnded
		}
		return nil
	}
	top := &r.stack[len(r.stack)-1]
	if top.mode == ModeArray {
		top.nextIndex++
	} else {
		top.hasPendingKey = false
	}
	r.state = StateComma
	return nil
}

func (r *Recognizer) handleKey(tok jsonlex.Token) error {
	switch tok.Kind {
	case jsonlex.String:
		if tok.Partial {
			// An object key is still streaming in; wait for it to finish
			// before treating it as a key. Nothing to report upstream yet.
			return nil
		}
		top := &r.stack[len(r.stack)-1]
		top.pendingKey = tok.Value.(string)
		top.hasPendingKey = true
		r.state = StateColon
		return nil
	case jsonlex.RightBrace:
		return r.closeContainer(ModeObject)
	default:
		return r.fail(syntaxErrorf("unexpected token %s where an object key was expected", tok.Kind))
	}
}

func (r *Recognizer) handleColon(tok jsonlex.Token) error {
	if tok.Kind != jsonlex.Colon {
		return r.fail(syntaxErrorf("unexpected token %s, expected ':'", tok.Kind))
	}
	r.state = StateValue
	return nil
}

func (r *Recognizer) handleComma(tok jsonlex.Token) error {
	top := &r.stack[len(r.stack)-1]
	switch tok.Kind {
	case jsonlex.Comma:
		if top.mode == ModeArray {
			r.state = StateValue
		} else {
			r.state = StateKey
		}
		return nil
	case jsonlex.RightBrace:
		if top.mode != ModeObject {
			return r.fail(syntaxErrorf("unexpected '}' closing an array"))
		}
		return r.closeContainer(ModeObject)
	case jsonlex.RightBracket:
		if top.mode != ModeArray {
			return r.fail(syntaxErrorf("unexpected ']' closing an object"))
		}
		return r.closeContainer(ModeArray)
	default:
		return r.fail(syntaxErrorf("unexpected token %s, expected ',' or a closing bracket", tok.Kind))
	}
}

func (r *Recognizer) handleSeparator(tok jsonlex.Token) error {
	if tok.Kind != jsonlex.Separator {
		return r.fail(syntaxErrorf("unexpected token %s, expected the configured separator", tok.Kind))
	}
	r.state = StateValue
	return nil
}

func (r *Recognizer) closeContainer(expect Mode) error {
	if len(r.stack) == 0 {
		return r.fail(syntaxErrorf("unexpected closing bracket at depth 0"))
	}
	top := &r.stack[len(r.stack)-1]
	if top.mode != expect {
		return r.fail(syntaxErrorf("mismatched closing bracket"))
	}
	closePath := top.basePath
	r.stack = r.stack[:len(r.stack)-1]

	kind := EventObjectClose
	if expect == ModeArray {
		kind = EventArrayClose
	}
	r.emitValue(Event{Path: closePath, Kind: kind})
	return r.afterValueComplete()
}

package engine

import (
	"fmt"

	"github.com/CogniformAI/instructor-stream-go/grammar"
	"github.com/CogniformAI/instructor-stream-go/jsonlex"
	"github.com/CogniformAI/instructor-stream-go/validate"
)

// StreamingError wraps a lexical or grammatical failure encountered
// while consuming the token stream: a malformed byte sequence
// (jsonlex.LexError) or a structurally invalid token sequence
// (grammar.SyntaxError).
type StreamingError struct {
	Err error
}

func (e *StreamingError) Error() string { return fmt.Sprintf("engine: streaming: %s", e.Err) }
func (e *StreamingError) Unwrap() error { return e.Err }

func wrapStreamingError(err error) error {
	if err == nil {
		return nil
	}
	var lexErr *jsonlex.LexError
	var synErr *grammar.SyntaxError
	if isLexError(err, &lexErr) || isSyntaxError(err, &synErr) {
		return &StreamingError{Err: err}
	}
	return err
}

func isLexError(err error, target **jsonlex.LexError) bool {
	if e, ok := err.(*jsonlex.LexError); ok {
		*target = e
		return true
	}
	return false
}

func isSyntaxError(err error, target **grammar.SyntaxError) bool {
	if e, ok := err.(*grammar.SyntaxError); ok {
		*target = e
		return true
	}
	return false
}

// SchemaResolutionError reports a failure to derive or resolve a schema
// for a pipeline or channel before any tokens could be processed.
type SchemaResolutionError struct {
	Channel string
	Err     error
}

func (e *SchemaResolutionError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("engine: resolving schema: %s", e.Err)
	}
	return fmt.Sprintf("engine: resolving schema for channel %q: %s", e.Channel, e.Err)
}
func (e *SchemaResolutionError) Unwrap() error { return e.Err }

// ProviderError wraps a failure reported by whatever upstream is
// producing the token stream (an HTTP error, a closed connection, and so
// on), kept distinct from StreamingError so callers can tell "the model
// didn't answer" from "the model answered but not in valid JSON" apart.
// This engine never constructs one itself -- it only ever sees the
// fragments a host already pulled off the wire -- so it's the host's job
// to wrap its own provider-call errors in a ProviderError before they
// reach anything that type-switches on engine errors.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("engine: provider: %s", e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// SnapshotValidationError is re-exported so callers don't need to import
// the validate package directly to type-assert on it.
type SnapshotValidationError = validate.SnapshotValidationError

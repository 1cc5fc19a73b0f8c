// Package dispatch implements the multi-channel demultiplexing layer
// (C6): it takes one upstream of tagged envelopes -- the shape a
// LangGraph-style graph node emits when multiple logical output streams
// share one wire -- and runs an independent tokenizer -> recognizer ->
// assembler pipeline per channel, fanning the resulting chunks back into
// one ordered-per-channel output stream.
package dispatch

import "github.com/google/uuid"

// EnvelopeMeta carries the out-of-band bookkeeping a channel fragment
// arrives with.
type EnvelopeMeta struct {
	// CorrelationID ties every fragment of one logical run together,
	// independent of which channel it lands on.
	CorrelationID uuid.UUID
	// Extra holds any additional tags the upstream graph attaches (node
	// name, step index, and so on). The engine doesn't interpret Extra
	// itself; it exists so a caller building Message values by hand has
	// somewhere to stash bookkeeping it wants to correlate against its
	// own output, without the engine needing to know its shape.
	Extra map[string]any
}

// Fragment is one piece of streamed text belonging to a single channel.
type Fragment struct {
	// Text is the token text delta to append to this channel's buffer.
	Text string
	// Done marks the end of this channel's stream; no further fragments
	// for the same channel should follow in the same run.
	Done bool
}

// Message is the outer envelope carried on the upstream channel: a
// fragment tagged with which logical channel it belongs to and the
// correlation metadata for the run it's part of.
type Message struct {
	Channel  string
	Meta     EnvelopeMeta
	Fragment Fragment
}

// Envelope is an alias kept for callers that model the upstream as a
// sequence of envelopes rather than individual messages; in this engine
// the two are the same shape.
type Envelope = Message

// ContentElement is one piece of a RawEnvelope's message content, bit-
// exact with the shape a LangGraph-style graph node emits: either a
// plain-text delta or a tool-call argument fragment. Args holds either a
// string (a bare/partial argument payload) or a map[string]any (a
// complete argument object); Index, when present, is a float64 or a
// numeric-suffixed string and drives in-envelope fragment ordering.
type ContentElement struct {
	Type  string
	Text  string
	Args  any
	Name  *string
	ID    *string
	Index any
}

// RawEnvelopeMeta is the out-of-band routing metadata a RawEnvelope
// carries alongside its content.
type RawEnvelopeMeta struct {
	Tags          []string
	LangGraphNode string
}

// RawEnvelope is the Go-native realization of spec section 6.3's
// envelope shape: an optional event discriminator plus a (message, meta)
// pair, where message.Content is either a plain string or an ordered
// list of ContentElement. It is the input to Dispatcher.RunEnvelopes,
// one layer upstream of the plain Message a caller can also feed
// directly to Dispatcher.Run.
// RawEnvelope's Event is the producer's event-type discriminator (e.g. a
// LangGraph astream_events name like "on_chat_model_stream"). Spec
// section 6.3 only requires it to be carried, not interpreted: routing
// is driven entirely by Meta, so every RawEnvelope is fed to its
// resolved channel regardless of Event. It's exported so a host that
// does care about distinguishing event types (to log them, say) can
// read it straight off the envelope before handing it to RunEnvelopes.
type RawEnvelope struct {
	Event   string
	Content any // string or []ContentElement
	Meta    RawEnvelopeMeta
}

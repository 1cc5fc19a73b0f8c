package engine

import (
	"github.com/CogniformAI/instructor-stream-go/dispatch"
	"github.com/CogniformAI/instructor-stream-go/schema"
)

// DispatcherConfig configures the multi-channel entry point: one
// Config shared by every channel's pipeline, the schema each channel
// should be assembled against, and the routing knobs that only apply to
// the RunEnvelopes (LangGraph-envelope) entry point.
type DispatcherConfig struct {
	Config   Config
	Channels map[string]schema.Schema
	// DefaultNode and OnMissingNode are forwarded to dispatch.Dispatcher
	// verbatim; see its doc comments. Both are only consulted by
	// dispatch.Dispatcher.RunEnvelopes.
	DefaultNode   string
	OnMissingNode func(dispatch.RawEnvelope)
}

// NewDispatcher builds a dispatch.Dispatcher from a DispatcherConfig,
// translating the ambient Config fields into the dispatcher's own
// per-run knobs. Only ValidationMode, StrictRoot, TypeDefaults,
// DefaultData, ChannelBuffer and FailFast are carried over; Separator,
// BufferedStrings, HandleUnescapedNewlines, MinEmitInterval,
// AutoUnstringify, UnstringifyMaxDepth and Debug have no dispatcher
// counterpart and are ignored.
func NewDispatcher(cfg DispatcherConfig) *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Schemas:        cfg.Channels,
		ValidationMode: ParseValidationMode(cfg.Config.ValidationMode),
		StrictRoot:     cfg.Config.StrictRoot,
		TypeDefaults:   cfg.Config.TypeDefaults,
		DefaultData:    cfg.Config.DefaultData,
		ChannelBuffer:  cfg.Config.ChannelBuffer,
		DefaultNode:    cfg.DefaultNode,
		OnMissingNode:  cfg.OnMissingNode,
		FailFast:       cfg.Config.FailFast,
	}
}

// NewDispatcherFromValues derives one schema per channel from values via
// schema.FromStruct and builds a dispatch.Dispatcher from them. It's the
// fallible counterpart to NewDispatcher for callers that only have Go
// types in hand: a derivation failure is reported as a
// SchemaResolutionError naming the offending channel, raised at
// dispatcher construction per spec section 7, instead of surfacing later
// as a streaming error on that channel.
func NewDispatcherFromValues(cfg DispatcherConfig, values map[string]any) (*dispatch.Dispatcher, error) {
	channels := make(map[string]schema.Schema, len(values))
	for name, v := range values {
		sch, err := schema.FromStruct(v)
		if err != nil {
			return nil, &SchemaResolutionError{Channel: name, Err: err}
		}
		channels[name] = sch
	}
	cfg.Channels = channels
	return NewDispatcher(cfg), nil
}

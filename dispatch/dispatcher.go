package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/CogniformAI/instructor-stream-go/grammar"
	"github.com/CogniformAI/instructor-stream-go/jsonlex"
	"github.com/CogniformAI/instructor-stream-go/schema"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
	"github.com/CogniformAI/instructor-stream-go/validate"
)

// ChannelChunk is one observable step on a single channel's pipeline.
type ChannelChunk struct {
	Channel       string
	CorrelationID string
	Chunk         snapshot.Chunk
}

// Dispatcher demultiplexes a single upstream of tagged Messages into one
// tokenizer -> recognizer -> assembler pipeline per channel.
type Dispatcher struct {
	// Schemas maps a channel name to the schema its fragments should be
	// assembled against. A channel with no entry is assembled as a bare
	// object with no stub defaults.
	Schemas map[string]schema.Schema
	// ValidationMode applies to every channel's pipeline.
	ValidationMode validate.Mode
	// StrictRoot, when true, requires every channel's root value to be a
	// JSON object.
	StrictRoot bool
	// TypeDefaults and DefaultData apply to every channel's stub, the
	// same way they do for a single-schema Pipeline (spec section 6.1/
	// 6.2: these per-call inputs carry over to the dispatcher entry
	// point unchanged).
	TypeDefaults snapshot.TypeDefaults
	DefaultData  map[string]any
	// ChannelBuffer sizes each channel's internal fragment queue.
	ChannelBuffer int
	// DefaultNode is the channel an envelope routes to when it carries
	// neither a LangGraphNode tag nor a Tags entry matching a configured
	// channel. Only consulted by RunEnvelopes. Empty means no default.
	DefaultNode string
	// OnMissingNode, if set, is invoked once per envelope RunEnvelopes
	// could not route to any channel.
	OnMissingNode func(RawEnvelope)
	// FailFast, when true, cancels every channel's pipeline as soon as
	// one reports an error, per spec section 6.2. When false (the
	// default), a channel's error is recorded on Err() without
	// interrupting its siblings, which keep running to completion.
	FailFast bool

	mu  sync.Mutex
	err error
}

// Err returns the first error encountered by any channel's pipeline,
// available once the channel returned by Run/RunEnvelopes has been
// drained and closed. It follows the same store-then-check pattern the
// teacher's LLM type uses for its own streaming error.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Dispatcher) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

func (d *Dispatcher) channelGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	if d.FailFast {
		return errgroup.WithContext(ctx)
	}
	// A plain Group never cancels its shared context on a member's
	// error, so a grammatical error on one channel can't interrupt or
	// observably mutate another channel's pipeline (spec's cross-channel
	// isolation guarantee).
	return new(errgroup.Group), ctx
}

func (d *Dispatcher) bufferSize() int {
	if d.ChannelBuffer > 0 {
		return d.ChannelBuffer
	}
	return 16
}

func (d *Dispatcher) stubOptions() snapshot.StubOptions {
	return snapshot.StubOptions{TypeDefaults: d.TypeDefaults, DefaultData: d.DefaultData}
}

// Run starts demultiplexing in, launching one goroutine per distinct
// channel name it observes. The returned channel is owned by the
// goroutine this method starts and is always closed, even on error or
// context cancellation.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Message) <-chan ChannelChunk {
	out := make(chan ChannelChunk)

	if err := ctx.Err(); err != nil {
		d.setErr(err)
		close(out)
		return out
	}

	go func() {
		defer close(out)

		g, gctx := d.channelGroup(ctx)
		buf := d.bufferSize()

		var mu sync.Mutex
		channels := make(map[string]chan Fragment)

		getChannel := func(name string, corrID string) chan Fragment {
			mu.Lock()
			defer mu.Unlock()
			ch, ok := channels[name]
			if ok {
				return ch
			}
			ch = make(chan Fragment, buf)
			channels[name] = ch
			g.Go(func() error {
				return d.runChannel(gctx, name, corrID, ch, func(meta snapshot.Meta, root any) bool {
					select {
					case out <- ChannelChunk{Channel: name, CorrelationID: corrID, Chunk: snapshot.Chunk{Snapshot: root, Meta: meta}}:
						return true
					case <-gctx.Done():
						return false
					}
				})
			})
			return ch
		}

	loop:
		for {
			select {
			case <-gctx.Done():
				break loop
			case msg, ok := <-in:
				if !ok {
					break loop
				}
				ch := getChannel(msg.Channel, msg.Meta.CorrelationID.String())
				select {
				case ch <- msg.Fragment:
				case <-gctx.Done():
					break loop
				}
			}
		}

		mu.Lock()
		for _, ch := range channels {
			close(ch)
		}
		mu.Unlock()

		if err := g.Wait(); err != nil {
			d.setErr(err)
		}
	}()

	return out
}

// RunEnvelopes is the LangGraph-envelope entry point (spec section
// 4.4/6.2/6.3): it routes each RawEnvelope to a channel via a Router
// built from Schemas/DefaultNode/OnMissingNode, then emits a single
// ordered stream of snapshot.Chunk whose Snapshot is a map from every
// known channel name to that channel's own snapshot, merged afresh on
// every emission (scenario S3). Meta.Type names the channel whose
// progress triggered this particular chunk.
func (d *Dispatcher) RunEnvelopes(ctx context.Context, in <-chan RawEnvelope) <-chan snapshot.Chunk {
	out := make(chan snapshot.Chunk)

	if err := ctx.Err(); err != nil {
		d.setErr(err)
		close(out)
		return out
	}

	router := &Router{
		Channels:      make(map[string]bool, len(d.Schemas)),
		DefaultNode:   d.DefaultNode,
		OnMissingNode: d.OnMissingNode,
	}
	for name := range d.Schemas {
		router.Channels[name] = true
	}

	go func() {
		defer close(out)

		g, gctx := d.channelGroup(ctx)
		buf := d.bufferSize()

		var mergedMu sync.Mutex
		merged := make(map[string]any, len(d.Schemas))
		for name, sch := range d.Schemas {
			merged[name] = snapshot.BuildStub(sch, d.stubOptions())
		}

		emit := func(channel string, meta snapshot.Meta, root any) bool {
			mergedMu.Lock()
			merged[channel] = root
			snap := make(map[string]any, len(merged))
			for k, v := range merged {
				snap[k] = v
			}
			mergedMu.Unlock()
			meta.Type = channel
			select {
			case out <- snapshot.Chunk{Snapshot: snap, Meta: meta}:
				return true
			case <-gctx.Done():
				return false
			}
		}

		var mu sync.Mutex
		channels := make(map[string]chan Fragment)

		getChannel := func(name string) chan Fragment {
			mu.Lock()
			defer mu.Unlock()
			ch, ok := channels[name]
			if ok {
				return ch
			}
			ch = make(chan Fragment, buf)
			channels[name] = ch
			g.Go(func() error {
				return d.runChannel(gctx, name, "", ch, func(meta snapshot.Meta, root any) bool {
					return emit(name, meta, root)
				})
			})
			return ch
		}

	loop:
		for {
			select {
			case <-gctx.Done():
				break loop
			case env, ok := <-in:
				if !ok {
					break loop
				}
				channel, frags, routed := router.Route(env)
				if !routed {
					continue
				}
				ch := getChannel(channel)
				for _, frag := range frags {
					select {
					case ch <- frag:
					case <-gctx.Done():
						break loop
					}
				}
			}
		}

		mu.Lock()
		for _, ch := range channels {
			close(ch)
		}
		mu.Unlock()

		if err := g.Wait(); err != nil {
			d.setErr(err)
		}
	}()

	return out
}

// runChannel drives one channel's tokenizer -> recognizer -> assembler
// pipeline to completion, invoking send for every emitted chunk. It
// strips any non-JSON preamble from the channel's very first non-empty
// write (spec section 4.4's coalescence rule), so callers that route
// chatty LangGraph-style text ("Sure, here's the JSON: {...}") into a
// strict-JSON channel aren't immediately rejected.
func (d *Dispatcher) runChannel(ctx context.Context, channel, corrID string, fragments <-chan Fragment, send func(snapshot.Meta, any) bool) error {
	var sch schema.Schema
	if d.Schemas != nil {
		sch = d.Schemas[channel]
	}

	var root any
	var policy *validate.Policy
	if sch != nil {
		root = snapshot.BuildStub(sch, d.stubOptions())
		policy = validate.NewPolicy(d.ValidationMode, sch)
	} else {
		root = map[string]any{}
		policy = validate.NewPolicy(validate.ModeNone, nil)
	}
	asm := snapshot.NewAssembler(root)
	rec := grammar.New()
	rec.StrictRoot = d.StrictRoot

	var validationErr error

	rec.OnToken = func(path snapshot.Path, value any, partial bool) {
		asm.ApplyToken(path, value)
	}
	rec.OnValue = func(ev grammar.Event) {
		asm.Complete(ev.Path)
		rootClosed := len(ev.Path) == 0
		valid, errs := policy.Observe(asm.Root(), ev.Path, rootClosed)
		if rootClosed && d.ValidationMode == validate.ModeFinal && !valid {
			validationErr = &validate.SnapshotValidationError{Msg: validate.JoinIssues(errs)}
		}
		send(snapshot.Meta{
			ActivePath:       asm.ActivePath(),
			CompletedPaths:   asm.CompletedPaths(),
			IsValid:          valid,
			ValidationErrors: errs,
		}, asm.Root())
	}

	lex := jsonlex.New(func(tok jsonlex.Token) {
		if err := rec.Feed(tok); err != nil {
			return
		}
	})

	seenFirstByte := false
	for frag := range fragments {
		text := frag.Text
		if !seenFirstByte && text != "" {
			seenFirstByte = true
			text = stripJSONPreamble(text)
		}
		if text != "" {
			if err := lex.Write([]byte(text)); err != nil {
				return fmt.Errorf("dispatch: channel %q: %w", channel, err)
			}
			if err := rec.Err(); err != nil {
				return fmt.Errorf("dispatch: channel %q: %w", channel, err)
			}
		}
		if frag.Done {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := lex.End(); err != nil {
		return fmt.Errorf("dispatch: channel %q: %w", channel, err)
	}
	if err := rec.End(); err != nil {
		return fmt.Errorf("dispatch: channel %q: %w", channel, err)
	}
	if validationErr != nil {
		return fmt.Errorf("dispatch: channel %q: %w", channel, validationErr)
	}
	return nil
}

// stripJSONPreamble drops any leading characters before the first `{`
// or `[` in s, leaving s untouched if it already starts with one (or
// contains neither).
func stripJSONPreamble(s string) string {
	i := bytes.IndexAny([]byte(s), "{[")
	if i <= 0 {
		return s
	}
	return s[i:]
}

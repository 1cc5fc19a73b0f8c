package engine

import (
	"context"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/CogniformAI/instructor-stream-go/grammar"
	"github.com/CogniformAI/instructor-stream-go/jsonlex"
	"github.com/CogniformAI/instructor-stream-go/schema"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
	"github.com/CogniformAI/instructor-stream-go/validate"
)

// Pipeline is the single-schema entry point: one token stream in, one
// stream of snapshot chunks out. It owns the output channel and closes
// it on exit, the same contract the teacher's LLM.ChatUsingMessages
// makes for its update channel.
type Pipeline struct {
	Config Config
	Schema schema.Schema

	debug bool
	err   error
}

// NewPipeline builds a Pipeline for sch under cfg.
func NewPipeline(cfg Config, sch schema.Schema) *Pipeline {
	return &Pipeline{Config: cfg, Schema: sch}
}

// NewPipelineFromValue derives a schema from v via schema.FromStruct and
// builds a Pipeline for it. It's the fallible counterpart to NewPipeline
// for callers that only have a Go type in hand rather than an
// already-resolved schema.Schema: a derivation failure is reported as a
// SchemaResolutionError, raised at pipeline construction per spec
// section 7, instead of surfacing later as a streaming error.
func NewPipelineFromValue(cfg Config, v any) (*Pipeline, error) {
	sch, err := schema.FromStruct(v)
	if err != nil {
		return nil, &SchemaResolutionError{Err: err}
	}
	return NewPipeline(cfg, sch), nil
}

// WithDebug enables a debug.yaml trace dump of the run, written once the
// stream ends, in the same spirit as the teacher's LLM.WithDebug.
func (p *Pipeline) WithDebug() *Pipeline {
	p.debug = true
	return p
}

// Err returns the error that ended the run, if any. It's only meaningful
// once the channel returned by Run has been drained and closed.
func (p *Pipeline) Err() error { return p.err }

// Run consumes fragments (each a chunk of raw token text from an LLM
// completion) and emits a snapshot.Chunk after every token and value
// completion. The returned channel is closed when fragments closes, the
// context is cancelled, or a streaming error occurs.
func (p *Pipeline) Run(ctx context.Context, fragments <-chan string) <-chan snapshot.Chunk {
	out := make(chan snapshot.Chunk)

	if err := ctx.Err(); err != nil {
		p.err = err
		close(out)
		return out
	}

	go func() {
		defer close(out)

		root := snapshot.BuildStub(p.Schema, snapshot.StubOptions{
			TypeDefaults: p.Config.TypeDefaults,
			DefaultData:  p.Config.DefaultData,
		})
		asm := snapshot.NewAssembler(root)
		mode := ParseValidationMode(p.Config.ValidationMode)
		policy := validate.NewPolicy(mode, p.Schema)

		rec := grammar.New()
		rec.StrictRoot = p.Config.StrictRoot
		rec.ExpectSeparator = p.Config.Separator != ""

		var chunkCount int
		var recErr error
		var validationErr error
		lastValid, lastErrs := true, []string(nil)

		send := func(meta snapshot.Meta) bool {
			chunkCount++
			select {
			case out <- snapshot.Chunk{Snapshot: asm.Root(), Meta: meta}:
				return true
			case <-ctx.Done():
				p.err = ctx.Err()
				return false
			}
		}

		rec.OnToken = func(path snapshot.Path, value any, partial bool) {
			asm.ApplyToken(path, value)
			if !partial {
				return
			}
			// A still-streaming string gets its own snapshot chunk so
			// observers see the value grow incrementally (scenario S2)
			// instead of only on completion; jsonlex's MinEmitInterval
			// (if configured) already coalesces these before they ever
			// reach OnToken.
			send(snapshot.Meta{
				ActivePath:       asm.ActivePath(),
				CompletedPaths:   asm.CompletedPaths(),
				IsValid:          lastValid,
				ValidationErrors: lastErrs,
			})
		}
		rec.OnValue = func(ev grammar.Event) {
			asm.Complete(ev.Path)
			rootClosed := len(ev.Path) == 0
			if rootClosed && p.Config.AutoUnstringify {
				depth := p.Config.UnstringifyMaxDepth
				if depth <= 0 {
					depth = snapshot.DefaultUnstringifyDepth
				}
				asm.ApplyToken(nil, snapshot.AutoUnstringify(asm.Root(), depth))
			}
			valid, errs := policy.Observe(asm.Root(), ev.Path, rootClosed)
			lastValid, lastErrs = valid, errs
			if rootClosed && mode == validate.ModeFinal && !valid {
				validationErr = &validate.SnapshotValidationError{Msg: validate.JoinIssues(errs)}
			}
			send(snapshot.Meta{
				ActivePath:       asm.ActivePath(),
				CompletedPaths:   asm.CompletedPaths(),
				IsValid:          valid,
				ValidationErrors: errs,
			})
		}

		if p.debug {
			defer func() {
				debugData := map[string]any{
					"1_finalSnapshot": asm.Root(),
					"2_completedPaths": func() []string {
						var out []string
						for _, path := range asm.CompletedPaths() {
							out = append(out, path.String())
						}
						return out
					}(),
					"3_chunkCount": chunkCount,
					"4_config":     p.Config,
				}
				if data, err := yaml.Marshal(debugData); err == nil {
					os.WriteFile("debug.yaml", data, 0644)
				}
			}()
		}

		var lexOpts []jsonlex.Option
		if p.Config.Separator != "" {
			lexOpts = append(lexOpts, jsonlex.WithSeparator(p.Config.Separator))
		}
		if p.Config.HandleUnescapedNewlines {
			lexOpts = append(lexOpts, jsonlex.WithHandleUnescapedNewlines(true))
		}
		if p.Config.BufferedStrings {
			lexOpts = append(lexOpts, jsonlex.WithBufferedStrings(true))
		}
		if p.Config.MinEmitInterval > 0 {
			lexOpts = append(lexOpts, jsonlex.WithMinEmitInterval(p.Config.MinEmitInterval))
		}

		lex := jsonlex.New(func(tok jsonlex.Token) {
			if err := rec.Feed(tok); err != nil && recErr == nil {
				recErr = err
			}
		}, lexOpts...)

	readLoop:
		for {
			select {
			case <-ctx.Done():
				p.err = ctx.Err()
				return
			case frag, ok := <-fragments:
				if !ok {
					break readLoop
				}
				if err := lex.Write([]byte(frag)); err != nil {
					p.err = wrapStreamingError(err)
					return
				}
				if recErr != nil {
					p.err = wrapStreamingError(recErr)
					return
				}
			}
		}

		if err := lex.End(); err != nil {
			p.err = wrapStreamingError(err)
			return
		}
		if err := rec.End(); err != nil {
			p.err = wrapStreamingError(err)
			return
		}
		if validationErr != nil {
			p.err = validationErr
		}
	}()

	return out
}

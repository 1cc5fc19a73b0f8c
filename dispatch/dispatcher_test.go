package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CogniformAI/instructor-stream-go/schema"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
	"github.com/CogniformAI/instructor-stream-go/validate"
)

type note struct {
	Text string `json:"text"`
}

func collectChunks(t *testing.T, ch <-chan ChannelChunk, timeout time.Duration) []ChannelChunk {
	t.Helper()
	var got []ChannelChunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-deadline:
			t.Fatal("timed out waiting for dispatcher output")
		}
	}
}

func TestDispatcherSingleChannel(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"main": s}}
	in := make(chan Message, 4)
	corr := uuid.New()
	in <- Message{Channel: "main", Meta: EnvelopeMeta{CorrelationID: corr}, Fragment: Fragment{Text: `{"text":"hi"}`}}
	in <- Message{Channel: "main", Meta: EnvelopeMeta{CorrelationID: corr}, Fragment: Fragment{Done: true}}
	close(in)

	out := d.Run(context.Background(), in)
	chunks := collectChunks(t, out, 2*time.Second)
	require.NotEmpty(t, chunks)
	require.NoError(t, d.Err())

	last := chunks[len(chunks)-1]
	assert.Equal(t, "main", last.Channel)
	obj, ok := last.Chunk.Snapshot.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", obj["text"])
}

func TestDispatcherMultipleChannelsIndependent(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"a": s, "b": s}}
	in := make(chan Message, 8)
	in <- Message{Channel: "a", Fragment: Fragment{Text: `{"text":"A"}`}}
	in <- Message{Channel: "b", Fragment: Fragment{Text: `{"text":"B"}`}}
	in <- Message{Channel: "a", Fragment: Fragment{Done: true}}
	in <- Message{Channel: "b", Fragment: Fragment{Done: true}}
	close(in)

	out := d.Run(context.Background(), in)
	chunks := collectChunks(t, out, 2*time.Second)
	require.NoError(t, d.Err())

	seen := map[string]string{}
	for _, c := range chunks {
		obj, ok := c.Chunk.Snapshot.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := obj["text"].(string); ok {
			seen[c.Channel] = text
		}
	}
	assert.Equal(t, "A", seen["a"])
	assert.Equal(t, "B", seen["b"])
}

type alphaPayload struct {
	Message string `json:"message"`
}

type betaPayload struct {
	Value int `json:"value"`
}

func collectSnapshotChunks(t *testing.T, ch <-chan snapshot.Chunk, timeout time.Duration) []snapshot.Chunk {
	t.Helper()
	var got []snapshot.Chunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-deadline:
			t.Fatal("timed out waiting for dispatcher output")
		}
	}
}

func TestRunEnvelopesMergesAcrossChannels(t *testing.T) {
	alphaSchema, err := schema.FromStruct(alphaPayload{})
	require.NoError(t, err)
	betaSchema, err := schema.FromStruct(betaPayload{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"alpha": alphaSchema, "beta": betaSchema}}

	in := make(chan RawEnvelope, 4)
	in <- RawEnvelope{Meta: RawEnvelopeMeta{LangGraphNode: "alpha"}, Content: `{"message": `}
	in <- RawEnvelope{Meta: RawEnvelopeMeta{LangGraphNode: "beta"}, Content: `{"value":`}
	in <- RawEnvelope{Meta: RawEnvelopeMeta{LangGraphNode: "alpha"}, Content: []ContentElement{
		{Type: "tool_call_chunk", Args: `"hello"}`, Index: 0},
	}}
	in <- RawEnvelope{Meta: RawEnvelopeMeta{LangGraphNode: "beta"}, Content: `42}`}
	close(in)

	out := d.RunEnvelopes(context.Background(), in)
	chunks := collectSnapshotChunks(t, out, 2*time.Second)
	require.NoError(t, d.Err())
	require.NotEmpty(t, chunks)

	first := chunks[0]
	assert.Equal(t, "alpha", first.Meta.Type)
	firstSnap := first.Snapshot.(map[string]any)
	// beta hasn't emitted anything yet, but its default-shaped stub is
	// already present in the merged snapshot (scenario S3): with no
	// TypeDefaults configured, an un-streamed number field defaults to
	// null per spec section 4.3.
	assert.Nil(t, firstSnap["beta"].(map[string]any)["value"])

	last := chunks[len(chunks)-1]
	lastSnap := last.Snapshot.(map[string]any)
	assert.Equal(t, "hello", lastSnap["alpha"].(map[string]any)["message"])
	assert.Equal(t, float64(42), lastSnap["beta"].(map[string]any)["value"])
}

func TestRunEnvelopesMissingTagUsesDefaultNode(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"fallback": s}, DefaultNode: "fallback"}
	in := make(chan RawEnvelope, 2)
	in <- RawEnvelope{Content: `{"text":"hi"}`}
	close(in)

	out := d.RunEnvelopes(context.Background(), in)
	chunks := collectSnapshotChunks(t, out, 2*time.Second)
	require.NoError(t, d.Err())
	require.NotEmpty(t, chunks)
	assert.Equal(t, "fallback", chunks[0].Meta.Type)
}

func TestRunEnvelopesMissingTagWithoutDefaultReportsOnce(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	var dropped []RawEnvelope
	d := &Dispatcher{
		Schemas:       map[string]schema.Schema{"main": s},
		OnMissingNode: func(env RawEnvelope) { dropped = append(dropped, env) },
	}
	in := make(chan RawEnvelope, 2)
	in <- RawEnvelope{Content: `{"text":"hi"}`}
	close(in)

	out := d.RunEnvelopes(context.Background(), in)
	chunks := collectSnapshotChunks(t, out, 2*time.Second)
	require.NoError(t, d.Err())
	assert.Empty(t, chunks)
	assert.Len(t, dropped, 1)
}

func TestDispatcherContextCancellation(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Dispatcher{Schemas: map[string]schema.Schema{"main": s}}
	in := make(chan Message, 1)
	in <- Message{Channel: "main", Fragment: Fragment{Text: `{"text":"hi"}`}}
	close(in)

	out := d.Run(ctx, in)
	_, ok := <-out
	assert.False(t, ok)
	assert.Error(t, d.Err())
}

func TestRunEnvelopesContextCancellation(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Dispatcher{Schemas: map[string]schema.Schema{"main": s}}
	in := make(chan RawEnvelope, 1)
	in <- RawEnvelope{Meta: RawEnvelopeMeta{LangGraphNode: "main"}, Content: `{"text":"hi"}`}
	close(in)

	out := d.RunEnvelopes(ctx, in)
	_, ok := <-out
	assert.False(t, ok)
	assert.Error(t, d.Err())
}

func TestDispatcherFinalValidationSurfacesError(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"main": s}, ValidationMode: validate.ModeFinal}
	in := make(chan Message, 2)
	in <- Message{Channel: "main", Fragment: Fragment{Text: `{"text":5}`}}
	in <- Message{Channel: "main", Fragment: Fragment{Done: true}}
	close(in)

	out := d.Run(context.Background(), in)
	chunks := collectChunks(t, out, 2*time.Second)
	require.NotEmpty(t, chunks)
	assert.False(t, chunks[len(chunks)-1].Chunk.Meta.IsValid)

	require.Error(t, d.Err())
	var valErr *validate.SnapshotValidationError
	assert.ErrorAs(t, d.Err(), &valErr)
}

func TestDispatcherReportsChannelSyntaxError(t *testing.T) {
	s, err := schema.FromStruct(note{})
	require.NoError(t, err)

	d := &Dispatcher{Schemas: map[string]schema.Schema{"main": s}}
	in := make(chan Message, 2)
	in <- Message{Channel: "main", Fragment: Fragment{Text: `{"text":`}}
	in <- Message{Channel: "main", Fragment: Fragment{Text: `@@@`}}
	close(in)

	out := d.Run(context.Background(), in)
	collectChunks(t, out, 2*time.Second)
	assert.Error(t, d.Err())
}

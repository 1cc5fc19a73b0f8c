package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoUnstringifyReplacesNestedJSON(t *testing.T) {
	in := map[string]any{
		"payload": `{"inner":"value","n":1}`,
		"plain":   "just text",
	}
	out := AutoUnstringify(in, DefaultUnstringifyDepth).(map[string]any)

	inner, ok := out["payload"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "value", inner["inner"])
	assert.Equal(t, "just text", out["plain"])
}

func TestAutoUnstringifyLeavesInvalidJSONVerbatim(t *testing.T) {
	in := map[string]any{"payload": "{not valid json}"}
	out := AutoUnstringify(in, DefaultUnstringifyDepth).(map[string]any)
	assert.Equal(t, "{not valid json}", out["payload"])
}

func TestAutoUnstringifyRespectsMaxDepth(t *testing.T) {
	// Two levels of string-encoded JSON: the outer string decodes to an
	// object whose own field is itself a JSON-encoded string.
	doublyEncoded := map[string]any{"payload": `{"nested":"{\"x\":1}"}`}

	shallow := AutoUnstringify(doublyEncoded, 1).(map[string]any)
	outer, ok := shallow["payload"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, `{"x":1}`, outer["nested"], "depth 1 should stop after unwrapping the outer string only")

	deep := AutoUnstringify(doublyEncoded, 2).(map[string]any)
	outer2 := deep["payload"].(map[string]any)
	inner2, ok := outer2["nested"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(1), inner2["x"])
}

func TestAutoUnstringifyZeroDepthNoop(t *testing.T) {
	in := map[string]any{"payload": `{"x":1}`}
	out := AutoUnstringify(in, 0).(map[string]any)
	assert.Equal(t, `{"x":1}`, out["payload"])
}

package snapshot

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerWritesNestedPaths(t *testing.T) {
	stub := map[string]any{
		"user": map[string]any{
			"tags": []any{},
		},
	}
	a := NewAssembler(stub)
	rootPtr := reflect.ValueOf(a.Root()).Pointer()

	a.ApplyToken(Path{Key("user"), Key("name")}, "Alice")
	a.ApplyToken(Path{Key("user"), Key("tags"), Index(0)}, "x")
	a.ApplyToken(Path{Key("user"), Key("tags"), Index(1)}, "y")

	// The root map must remain the same underlying map (I4): mutation
	// happens in place, not by rebuilding the tree.
	assert.Equal(t, rootPtr, reflect.ValueOf(a.Root()).Pointer())

	user := a.Root().(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "Alice", user["name"])
	tags := user["tags"].([]any)
	require.Len(t, tags, 2)
	assert.Equal(t, "x", tags[0])
	assert.Equal(t, "y", tags[1])
}

func TestAssemblerLastWriteWins(t *testing.T) {
	a := NewAssembler(map[string]any{"msg": ""})
	a.ApplyToken(Path{Key("msg")}, "hel")
	a.ApplyToken(Path{Key("msg")}, "hello")
	assert.Equal(t, "hello", a.Root().(map[string]any)["msg"])
}

func TestAssemblerCompleteIsIdempotentAndOrdered(t *testing.T) {
	a := NewAssembler(map[string]any{})
	a.Complete(Path{Key("a")})
	a.Complete(Path{Key("b")})
	a.Complete(Path{Key("a")})

	got := a.CompletedPaths()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].String())
	assert.Equal(t, "b", got[1].String())
}

func TestAssemblerGrowsArraysAsNeeded(t *testing.T) {
	a := NewAssembler([]any{})
	a.ApplyToken(Path{Index(2)}, "z")
	arr := a.Root().([]any)
	require.Len(t, arr, 3)
	assert.Nil(t, arr[0])
	assert.Nil(t, arr[1])
	assert.Equal(t, "z", arr[2])
}

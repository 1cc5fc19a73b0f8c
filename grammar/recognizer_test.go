package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CogniformAI/instructor-stream-go/jsonlex"
	"github.com/CogniformAI/instructor-stream-go/snapshot"
)

type tokenEvent struct {
	path    snapshot.Path
	value   any
	partial bool
}

func feedString(t *testing.T, r *Recognizer, s string) {
	t.Helper()
	var toks []jsonlex.Token
	lex := jsonlex.New(func(tk jsonlex.Token) { toks = append(toks, tk) })
	require.NoError(t, lex.WriteString(s))
	require.NoError(t, lex.End())
	for _, tk := range toks {
		require.NoError(t, r.Feed(tk))
	}
}

func TestRecognizerFlatObject(t *testing.T) {
	var tokens []tokenEvent
	var values []Event
	r := New()
	r.OnToken = func(path snapshot.Path, value any, partial bool) {
		tokens = append(tokens, tokenEvent{path.Clone(), value, partial})
	}
	r.OnValue = func(ev Event) { values = append(values, ev) }

	feedString(t, r, `{"name":"Alice","age":30}`)
	require.NoError(t, r.End())

	require.Len(t, values, 3) // name scalar, age scalar, object close
	assert.Equal(t, "name", values[0].Path.String())
	assert.Equal(t, "Alice", values[0].Value)
	assert.Equal(t, "age", values[1].Path.String())
	assert.Equal(t, float64(30), values[1].Value)
	assert.Equal(t, EventObjectClose, values[2].Kind)
	assert.Equal(t, "", values[2].Path.String())
}

func TestRecognizerNestedPaths(t *testing.T) {
	var values []Event
	r := New()
	r.OnValue = func(ev Event) { values = append(values, ev) }

	feedString(t, r, `{"user":{"tags":["a","b"]}}`)
	require.NoError(t, r.End())

	var got []string
	for _, ev := range values {
		got = append(got, ev.Path.String())
	}
	assert.Equal(t, []string{
		"user.tags[0]",
		"user.tags[1]",
		"user.tags",
		"user",
		"",
	}, got)
}

func TestRecognizerArrayOfObjects(t *testing.T) {
	var values []Event
	r := New()
	r.OnValue = func(ev Event) { values = append(values, ev) }

	feedString(t, r, `[{"id":1},{"id":2}]`)
	require.NoError(t, r.End())

	var got []string
	for _, ev := range values {
		got = append(got, ev.Path.String())
	}
	assert.Equal(t, []string{
		"[0].id", "[0]",
		"[1].id", "[1]",
		"",
	}, got)
}

func TestRecognizerEmptyObjectAndArray(t *testing.T) {
	var values []Event
	r := New()
	r.OnValue = func(ev Event) { values = append(values, ev) }

	feedString(t, r, `{"empty_obj":{},"empty_arr":[]}`)
	require.NoError(t, r.End())

	require.Len(t, values, 3)
	assert.Equal(t, EventObjectClose, values[0].Kind)
	assert.Equal(t, "empty_obj", values[0].Path.String())
	assert.Equal(t, EventArrayClose, values[1].Kind)
	assert.Equal(t, "empty_arr", values[1].Path.String())
}

func TestRecognizerPartialStringUpdatesOnTokenOnly(t *testing.T) {
	var partials, finals int
	r := New()
	r.OnToken = func(path snapshot.Path, value any, partial bool) {
		if partial {
			partials++
		} else {
			finals++
		}
	}
	var scalarEvents int
	r.OnValue = func(ev Event) {
		if ev.Kind == EventScalar {
			scalarEvents++
		}
	}

	lex := jsonlex.New(func(tk jsonlex.Token) { require.NoError(t, r.Feed(tk)) })
	require.NoError(t, lex.WriteString(`{"msg":"hel`))
	require.NoError(t, lex.WriteString(`lo"}`))
	require.NoError(t, lex.End())
	require.NoError(t, r.End())

	assert.Greater(t, partials, 0)
	assert.Equal(t, 1, finals)
	assert.Equal(t, 1, scalarEvents)
}

func TestRecognizerStrictRootRejectsNonObject(t *testing.T) {
	r := New()
	r.StrictRoot = true
	lex := jsonlex.New(func(tk jsonlex.Token) {
		_ = r.Feed(tk)
	})
	require.NoError(t, lex.WriteString(`[1,2,3]`))
	require.NoError(t, lex.End())
	require.Error(t, r.Err())
	var syntaxErr *SyntaxError
	require.ErrorAs(t, r.Err(), &syntaxErr)
}

func TestRecognizerMismatchedCloserFails(t *testing.T) {
	r := New()
	lex := jsonlex.New(func(tk jsonlex.Token) {
		if r.Err() == nil {
			_ = r.Feed(tk)
		}
	})
	require.NoError(t, lex.WriteString(`{"a":[1,2}`))
	require.NoError(t, lex.End())
	require.Error(t, r.Err())
}

func TestRecognizerUnterminatedContainerFailsAtEnd(t *testing.T) {
	r := New()
	feedString(t, r, `{"a":1`)
	require.Error(t, r.End())
}

func TestRecognizerSeparatedTopLevelValues(t *testing.T) {
	var values []Event
	r := New()
	r.ExpectSeparator = true
	r.OnValue = func(ev Event) { values = append(values, ev) }

	var toks []jsonlex.Token
	lex := jsonlex.New(func(tk jsonlex.Token) { toks = append(toks, tk) }, jsonlex.WithSeparator("\n"))
	require.NoError(t, lex.WriteString("{\"a\":1}\n{\"b\":2}"))
	require.NoError(t, lex.End())
	for _, tk := range toks {
		if tk.Kind == jsonlex.Separator {
			require.NoError(t, r.Feed(tk))
			continue
		}
		require.NoError(t, r.Feed(tk))
	}
	require.NoError(t, r.End())

	var closes int
	for _, ev := range values {
		if ev.Kind == EventObjectClose {
			closes++
		}
	}
	assert.Equal(t, 2, closes)
}

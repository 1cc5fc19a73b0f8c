package snapshot

import (
	"encoding/json"
	"strings"
)

// AutoUnstringify walks value looking for strings that hold a JSON object
// or array (a common artifact of models that double-encode a nested
// object as a string field) and replaces them with the decoded value, up
// to maxDepth levels of nested string-encoding. Only strings whose trimmed
// text starts and ends with matching {...} or [...] delimiters are tried;
// a string that fails to parse as JSON is left untouched. It returns new
// maps and slices rather than modifying value.
func AutoUnstringify(value any, maxDepth int) any {
	if maxDepth <= 0 {
		return value
	}
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if len(trimmed) < 2 {
			return v
		}
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		looksLikeJSON := (first == '{' && last == '}') || (first == '[' && last == ']')
		if !looksLikeJSON {
			return v
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return v
		}
		return AutoUnstringify(decoded, maxDepth-1)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			out[k] = AutoUnstringify(sub, maxDepth)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = AutoUnstringify(sub, maxDepth)
		}
		return out
	default:
		return v
	}
}

// DefaultUnstringifyDepth is the depth AutoUnstringify is called with
// when a pipeline enables it without setting engine.Config's
// UnstringifyMaxDepth.
const DefaultUnstringifyDepth = 2

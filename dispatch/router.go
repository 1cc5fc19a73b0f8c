package dispatch

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
)

// Router resolves a RawEnvelope to the channel it belongs to and
// flattens its content into an ordered slice of Fragment, implementing
// spec section 4.4's routing guarantees (G1, G2) and section 6.3's tag
// resolution rule.
type Router struct {
	// Channels is the set of known channel names a tag in Meta.Tags may
	// match. Dispatcher populates this from its Schemas map.
	Channels map[string]bool
	// DefaultNode is used when an envelope carries neither a
	// LangGraphNode nor a recognized tag. Empty means no default.
	DefaultNode string
	// OnMissingNode, if set, is invoked once per envelope that could not
	// be routed to any channel (no LangGraphNode, no matching tag, and no
	// DefaultNode configured).
	OnMissingNode func(RawEnvelope)
}

// Route resolves env's channel tag and returns its content flattened
// into ordered fragments. ok is false when env could not be routed to
// any channel, in which case Router has already invoked OnMissingNode
// (if configured) and frags/channel are both zero-valued.
func (r *Router) Route(env RawEnvelope) (channel string, frags []Fragment, ok bool) {
	channel, routed := r.resolveChannel(env)
	if !routed {
		if r.OnMissingNode != nil {
			r.OnMissingNode(env)
		}
		return "", nil, false
	}
	return channel, flattenContent(env.Content), true
}

func (r *Router) resolveChannel(env RawEnvelope) (string, bool) {
	if env.Meta.LangGraphNode != "" {
		return env.Meta.LangGraphNode, true
	}
	for _, tag := range env.Meta.Tags {
		if r.Channels[tag] {
			return tag, true
		}
	}
	if r.DefaultNode != "" {
		return r.DefaultNode, true
	}
	return "", false
}

// flattenContent normalizes env.Content -- a plain string or a slice of
// ContentElement -- into an ordered sequence of text fragments, applying
// G1's index-based reordering: elements carrying a numeric or numeric-
// suffixed Index sort by that index; elements without one keep their
// original relative order and sort after every indexed element.
func flattenContent(content any) []Fragment {
	switch v := content.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []Fragment{{Text: v}}
	case []ContentElement:
		return flattenElements(v)
	default:
		return nil
	}
}

type indexedElement struct {
	element  ContentElement
	position int
	index    int
	hasIndex bool
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// elementIndex extracts a numeric ordering key from a ContentElement's
// Index field, matching spec section 6.3: "index, when present and
// numeric or numeric-suffixed, drives in-envelope fragment ordering."
func elementIndex(e ContentElement) (int, bool) {
	switch idx := e.Index.(type) {
	case nil:
		return 0, false
	case int:
		return idx, true
	case float64:
		return int(idx), true
	case string:
		if n, err := strconv.Atoi(idx); err == nil {
			return n, true
		}
		if m := trailingDigits.FindString(idx); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return n, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func flattenElements(elements []ContentElement) []Fragment {
	indexed := make([]indexedElement, len(elements))
	for i, e := range elements {
		n, has := elementIndex(e)
		indexed[i] = indexedElement{element: e, position: i, index: n, hasIndex: has}
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		a, b := indexed[i], indexed[j]
		if a.hasIndex != b.hasIndex {
			return a.hasIndex // indexed elements sort before unindexed ones
		}
		if a.hasIndex && b.hasIndex && a.index != b.index {
			return a.index < b.index
		}
		return a.position < b.position
	})

	frags := make([]Fragment, 0, len(indexed))
	for _, ie := range indexed {
		if text := elementText(ie.element); text != "" {
			frags = append(frags, Fragment{Text: text})
		}
	}
	return frags
}

// elementText renders one ContentElement as the literal text to append
// to the channel's token stream.
//
// A "tool_call_chunk" is mid-stream: providers that stream tool-call
// arguments (e.g. OpenAI's delta-indexed tool_calls) deliver Args as a
// raw, possibly-partial fragment of the arguments JSON text itself, so a
// string Args is appended verbatim, opaquely, the same as a "text"
// element. An object-shaped Args on a chunk means this particular
// fragment arrived already fully decoded, so it's re-serialized to JSON
// text before appending.
//
// A "tool_call" (no "_chunk" suffix) is a single, already-complete call:
// its Args *is* the whole argument value rather than a fragment, so a
// bare/primitive Args is normalized into a JSON-valid quoted string per
// spec section 4.4, matching e.g. a function whose sole argument is a
// plain string rather than an object.
func elementText(e ContentElement) string {
	switch e.Type {
	case "text":
		return e.Text
	case "tool_call_chunk":
		if s, ok := e.Args.(string); ok {
			return s
		}
		return stringifyArgs(e.Args)
	case "tool_call":
		if s, ok := e.Args.(string); ok {
			return quoteArg(s)
		}
		return stringifyArgs(e.Args)
	default:
		return e.Text
	}
}

func quoteArg(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

func stringifyArgs(args any) string {
	if args == nil {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(b)
}

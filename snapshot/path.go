// Package snapshot implements the schema-driven stub/snapshot layer of the
// streaming structured-JSON engine: building a default-populated object
// skeleton from a schema (C3), and assembling recognizer events into that
// skeleton in place while tracking active and completed paths (C4).
package snapshot

import "strconv"

// Segment is one element of a Path: either a string object key or a
// non-negative array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a string-keyed Segment.
func Key(key string) Segment { return Segment{Key: key} }

// Index returns an integer-indexed Segment.
func Index(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is an ordered sequence of segments locating a value inside a
// snapshot. Paths are compared by value, not by identity.
type Path []Segment

// Equal reports whether p and other have the same segments in the same
// order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of p that shares no backing array with it.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// WithKey returns a new Path with a string segment appended.
func (p Path) WithKey(key string) Path {
	return append(p.Clone(), Key(key))
}

// WithIndex returns a new Path with an index segment appended.
func (p Path) WithIndex(i int) Path {
	return append(p.Clone(), Index(i))
}

// String renders the path as "foo.bar[2].baz", mainly for debugging and
// error messages.
func (p Path) String() string {
	out := ""
	for i, seg := range p {
		if seg.IsIndex {
			out += "[" + seg.String() + "]"
			continue
		}
		if i > 0 {
			out += "."
		}
		out += seg.String()
	}
	return out
}

// ContainsPath reports whether paths contains a path equal to target.
func ContainsPath(paths []Path, target Path) bool {
	for _, p := range paths {
		if p.Equal(target) {
			return true
		}
	}
	return false
}

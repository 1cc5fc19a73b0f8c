package snapshot

// Assembler applies grammar events onto a pre-built stub in place,
// growing arrays and creating intermediate maps as needed, the way the
// teacher's streamingArgsBuilder.setValue/updateRoot pair walks a
// dotted/indexed argument path into a snapshot map. Unlike that builder,
// Assembler never holds its own copy of the tree: the stub is mutated
// directly (I4). Maps are written in place and keep their identity; a
// slice that has to grow is replaced by a longer copy stored back into
// its parent (or as the new root), and a write at the empty path
// replaces the root outright.
type Assembler struct {
	root any

	activePath     Path
	completedPaths []Path
}

// NewAssembler wraps stub (as built by BuildStub) for in-place
// assembly. stub must be a map[string]any or []any at the root.
func NewAssembler(stub any) *Assembler {
	return &Assembler{root: stub}
}

// Root returns the snapshot being assembled. A map root stays the same
// reference across calls; an array root is replaced when it grows, and
// ApplyToken with an empty path replaces either kind.
func (a *Assembler) Root() any { return a.root }

// ActivePath returns the path of the most recently written token.
func (a *Assembler) ActivePath() Path { return a.activePath }

// CompletedPaths returns every path that has fully closed so far, in
// the order they closed.
func (a *Assembler) CompletedPaths() []Path { return a.completedPaths }

// ApplyToken writes a (possibly partial) scalar value at path into the
// snapshot and records it as the active path. Last write wins: a later
// ApplyToken call for the same path always overwrites the earlier one
// (I2), including a partial string being progressively replaced by
// longer prefixes of itself.
func (a *Assembler) ApplyToken(path Path, value any) {
	a.activePath = path.Clone()
	if len(path) == 0 {
		a.root = value
		return
	}
	a.root = writeAt(a.root, path, value)
}

// Complete marks path as closed: a scalar finished, or an object/array
// closed. It is idempotent; closing the same path twice only records it
// once, in the order of first closure. A duplicate object key is
// therefore recorded once while its later value overwrites the earlier
// one via ApplyToken, which diverges from strict JSON validators that
// reject duplicate keys outright.
func (a *Assembler) Complete(path Path) {
	a.activePath = path.Clone()
	if ContainsPath(a.completedPaths, path) {
		return
	}
	a.completedPaths = append(a.completedPaths, path.Clone())
}

// writeAt returns root with value written at path, creating any missing
// intermediate maps/slices along the way. It mirrors the teacher's
// updateRoot: recursion unwinds by reassigning each container back into
// its parent, since Go map/slice element writes need the parent
// container in hand.
func writeAt(root any, path Path, value any) any {
	if len(path) == 0 {
		return value
	}
	seg := path[0]
	rest := path[1:]

	if seg.IsIndex {
		arr, _ := root.([]any)
		if seg.Index >= len(arr) {
			grown := make([]any, seg.Index+1)
			copy(grown, arr)
			arr = grown
		}
		if len(rest) == 0 {
			arr[seg.Index] = value
		} else {
			arr[seg.Index] = writeAt(arr[seg.Index], rest, value)
		}
		return arr
	}

	obj, ok := root.(map[string]any)
	if !ok {
		obj = make(map[string]any)
	}
	if len(rest) == 0 {
		obj[seg.Key] = value
	} else {
		obj[seg.Key] = writeAt(obj[seg.Key], rest, value)
	}
	return obj
}

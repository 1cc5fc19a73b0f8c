package snapshot

// Meta carries the bookkeeping the engine reports alongside every chunk:
// which paths are now considered complete, where the "cursor" (most
// recently written path) currently sits, and the validation verdict.
type Meta struct {
	// ActivePath is the path of the most recently written token. It may
	// point at a string that is still streaming in.
	ActivePath Path
	// CompletedPaths accumulates every path whose value (scalar or
	// container) has fully closed, in the order they closed. A path never
	// appears twice.
	CompletedPaths []Path
	// IsValid reflects the configured validation policy's verdict for
	// this chunk; it is always true under the "none" policy.
	IsValid bool
	// ValidationErrors holds the most recent validation failure details,
	// non-nil only when IsValid is false.
	ValidationErrors []string
	// Type optionally tags which logical channel/node produced this
	// chunk. It is unset for a single-schema Pipeline run and populated
	// by dispatch.Dispatcher.RunEnvelopes for its merged multi-channel
	// output.
	Type string
}

// Chunk is one observable step of the snapshot being assembled: the
// current (possibly partial) value plus Meta describing what changed.
type Chunk struct {
	Snapshot any
	Meta     Meta
}

func (m Meta) withCompletedPath(p Path) Meta {
	if ContainsPath(m.CompletedPaths, p) {
		return m
	}
	out := m
	out.CompletedPaths = append(append([]Path{}, m.CompletedPaths...), p.Clone())
	return out
}

package catalog

import "context"

// Loader yields normalized ServerDefinitions. Reconciling raw catalog files
// from the various external tool ecosystems into this shape is out of scope
// for the aggregator core (spec.md §1) — this interface is the seam an
// external loader plugs into.
type Loader interface {
	Load(ctx context.Context) ([]ServerDefinition, error)
}

// StaticLoader returns a fixed, pre-normalized list of definitions held in
// memory; it neither reads files nor validates. FileLoader is the
// file-backed Loader.
type StaticLoader struct {
	Definitions []ServerDefinition
}

// Load returns the configured definitions verbatim.
func (l StaticLoader) Load(context.Context) ([]ServerDefinition, error) {
	out := make([]ServerDefinition, len(l.Definitions))
	copy(out, l.Definitions)
	return out, nil
}

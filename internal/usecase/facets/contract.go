package facets

import "github.com/kailas-cloud/facetdex/internal/index"

// GenerationProvider yields the current published index generation.
// Implemented by index.Store.
type GenerationProvider interface {
	Current() (*index.Generation, error)
}

package rebuild

import "github.com/kailas-cloud/facetdex/internal/index"

// Publisher atomically swaps in a completed generation. Implemented by
// index.Store.
type Publisher interface {
	Publish(g *index.Generation)
}

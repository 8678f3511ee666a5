package health

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/index"
)

// SourcePinger checks catalog source availability.
type SourcePinger interface {
	Ping(ctx context.Context) error
}

// GenerationProvider reports whether an index generation is published.
type GenerationProvider interface {
	Current() (*index.Generation, error)
}

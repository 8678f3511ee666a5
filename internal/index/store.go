package index

import (
	"sync/atomic"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Store holds the current published generation behind an atomic pointer.
// Readers never block on a rebuild: they keep whatever generation they
// acquired until they are done with it.
type Store struct {
	current atomic.Pointer[Generation]
}

// NewStore creates an empty store; Current fails until the first Publish.
func NewStore() *Store { return &Store{} }

// Publish atomically swaps the current generation. The previous generation
// stays valid for readers that already hold it.
func (s *Store) Publish(g *Generation) {
	s.current.Store(g)
}

// Current returns the published generation.
func (s *Store) Current() (*Generation, error) {
	g := s.current.Load()
	if g == nil {
		return nil, domain.ErrNoGeneration
	}
	return g, nil
}

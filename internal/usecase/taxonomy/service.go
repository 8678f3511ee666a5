package taxonomy

import (
	"github.com/kailas-cloud/facetdex/internal/domain"
	domtax "github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/index"
)

// GenerationProvider yields the current published index generation.
type GenerationProvider interface {
	Current() (*index.Generation, error)
}

// Service exposes the classification tree of the current generation, with the
// per-node item counts frozen at rebuild time.
type Service struct {
	gens GenerationProvider
}

// New creates the taxonomy service.
func New(gens GenerationProvider) *Service {
	return &Service{gens: gens}
}

// Tree returns the active nodes in display order (level first, then display
// order, then code).
func (s *Service) Tree() ([]domtax.Node, error) {
	gen, err := s.gens.Current()
	if err != nil {
		return nil, err
	}
	var out []domtax.Node
	for _, n := range gen.Forest().Ordered() {
		if n.Active() {
			out = append(out, n)
		}
	}
	return out, nil
}

// Node returns one node by code, active or not.
func (s *Service) Node(code string) (domtax.Node, error) {
	gen, err := s.gens.Current()
	if err != nil {
		return domtax.Node{}, err
	}
	n, ok := gen.Forest().Node(code)
	if !ok {
		return domtax.Node{}, domain.ErrUnknownNode
	}
	return n, nil
}

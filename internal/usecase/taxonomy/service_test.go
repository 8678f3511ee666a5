package taxonomy

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	domtax "github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/index"
)

// --- Mocks ---

type stubGens struct {
	gen *index.Generation
	err error
}

func (s *stubGens) Current() (*index.Generation, error) { return s.gen, s.err }

type emptySource struct{}

func (emptySource) IterateItems(context.Context, func(catalog.Item) error) error { return nil }
func (emptySource) Count(context.Context) (int, error)                           { return 0, nil }
func (emptySource) Ping(context.Context) error                                   { return nil }
func (emptySource) Close() error                                                 { return nil }

// --- Fixture ---

func fixtureGeneration(t *testing.T) *index.Generation {
	t.Helper()

	forest, err := domtax.BuildForest([]domtax.NodeSpec{
		{Code: "lighting", Name: "Lighting", DisplayOrder: 2, Active: true},
		{Code: "cables", Name: "Cables", DisplayOrder: 1, Active: true},
		{Code: "legacy", Name: "Legacy", DisplayOrder: 3, Active: false},
		{Code: "indoor", ParentCode: "lighting", Name: "Indoor", DisplayOrder: 1, Active: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	b := index.NewBuilder("gen-tax", emptySource{},
		classify.NewEngine(nil, forest), forest, nil,
		index.BuilderConfig{}, zap.NewNop())
	if err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	gen, err := b.Generation()
	if err != nil {
		t.Fatal(err)
	}
	return gen
}

// --- Tests ---

func TestTree_ActiveNodesInDisplayOrder(t *testing.T) {
	svc := New(&stubGens{gen: fixtureGeneration(t)})

	nodes, err := svc.Tree()
	if err != nil {
		t.Fatal(err)
	}

	got := make([]string, 0, len(nodes))
	for _, n := range nodes {
		got = append(got, n.Code())
	}
	// Roots by display order, then children; legacy is inactive and hidden.
	want := []string{"cables", "lighting", "indoor"}
	if len(got) != len(want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("nodes = %v, want %v", got, want)
		}
	}
}

func TestNode_ReturnsInactiveToo(t *testing.T) {
	svc := New(&stubGens{gen: fixtureGeneration(t)})

	n, err := svc.Node("legacy")
	if err != nil {
		t.Fatal(err)
	}
	if n.Active() {
		t.Error("legacy should be inactive")
	}
}

func TestNode_Unknown(t *testing.T) {
	svc := New(&stubGens{gen: fixtureGeneration(t)})

	_, err := svc.Node("nope")
	if !errors.Is(err, domain.ErrUnknownNode) {
		t.Fatalf("err = %v, want ErrUnknownNode", err)
	}
}

func TestTree_NoGeneration(t *testing.T) {
	svc := New(&stubGens{err: domain.ErrNoGeneration})

	if _, err := svc.Tree(); !errors.Is(err, domain.ErrNoGeneration) {
		t.Fatalf("err = %v, want ErrNoGeneration", err)
	}
}

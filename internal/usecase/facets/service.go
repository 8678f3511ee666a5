package facets

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/index"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	"github.com/kailas-cloud/facetdex/internal/usecase/search"
)

// Defaults for the service knobs.
const (
	DefaultMemoSize = 1024
	DefaultTopN     = 50
)

// Service computes facet summaries for a filter combination. Broad
// single-node requests are answered from the generation's precomputed cache;
// everything else is aggregated on demand and memoized per generation.
type Service struct {
	gens   GenerationProvider
	memo   *lru.Cache[string, query.Facets]
	topN   int
	logger *zap.Logger
}

// New creates the facet service. Non-positive knobs select the defaults.
func New(gens GenerationProvider, memoSize, topN int, logger *zap.Logger) (*Service, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	memo, err := lru.New[string, query.Facets](memoSize)
	if err != nil {
		return nil, err
	}
	return &Service{gens: gens, memo: memo, topN: topN, logger: logger}, nil
}

// Compute returns the facet summaries for the request's filter shape.
// Pagination and sort are ignored. The response names the generation it was
// computed from; counts are exact as of that generation's rebuild.
func (s *Service) Compute(ctx context.Context, req query.Request) (query.Facets, error) {
	gen, err := s.gens.Current()
	if err != nil {
		return query.Facets{}, err
	}
	req = req.WithoutPagination()

	if f, ok := s.cached(gen, req); ok {
		metrics.FacetCacheTotal.WithLabelValues("precomputed").Inc()
		return f, nil
	}

	key := memoKey(gen.ID(), req)
	if f, ok := s.memo.Get(key); ok {
		metrics.FacetCacheTotal.WithLabelValues("memo").Inc()
		return f, nil
	}

	f, err := s.compute(ctx, gen, req)
	if err != nil {
		return query.Facets{}, err
	}
	metrics.FacetCacheTotal.WithLabelValues("miss").Inc()
	s.memo.Add(key, f)
	return f, nil
}

// cached serves broad single-node requests from the per-generation facet
// cache. A flag filter disqualifies the request: cache entries are computed
// with no filters beyond the node itself.
func (s *Service) cached(gen *index.Generation, req query.Request) (query.Facets, bool) {
	if !req.Broad() || len(req.Flags()) != 0 || len(req.TaxonomyCodes()) != 1 {
		return query.Facets{}, false
	}
	entry, ok := gen.CacheEntry(req.TaxonomyCodes()[0])
	if !ok {
		return query.Facets{}, false
	}

	f := query.Facets{
		Generation: gen.ID(),
		BuiltAt:    gen.BuiltAt().Unix(),
		TotalCount: entry.TotalCount,
		Suppliers:  entry.Suppliers,
	}
	for _, def := range s.applicable(gen, req) {
		summary := query.FacetSummary{
			Key:   def.Key(),
			Label: def.Label(),
			Kind:  string(def.Kind()),
		}
		switch def.Kind() {
		case filterdef.Boolean:
			bc, ok := entry.Bools[def.Key()]
			if !ok {
				continue
			}
			summary.Bool = &bc
		case filterdef.Categorical:
			summary.Values = entry.Categorical[def.Key()]
			if len(summary.Values) == 0 {
				continue
			}
		case filterdef.Range:
			rs, ok := entry.Ranges[def.Key()]
			if !ok {
				continue
			}
			summary.Range = &rs
		}
		f.Summaries = append(f.Summaries, summary)
	}
	return f, true
}

// compute aggregates facets on demand. Each summary is computed over the
// filtered set with the summary's own dimension excluded, so already-selected
// filters still show their alternatives.
func (s *Service) compute(ctx context.Context, gen *index.Generation, req query.Request) (query.Facets, error) {
	plan := search.Compile(gen, req, s.logger)

	full, err := plan.Set(ctx, "")
	if err != nil {
		return query.Facets{}, err
	}

	supplierSet, err := plan.Set(ctx, search.DimSuppliers)
	if err != nil {
		return query.Facets{}, err
	}

	f := query.Facets{
		Generation: gen.ID(),
		BuiltAt:    gen.BuiltAt().Unix(),
		TotalCount: int(full.GetCardinality()),
		Suppliers:  gen.SupplierCounts(supplierSet),
	}

	for _, def := range s.applicable(gen, req) {
		summary := query.FacetSummary{
			Key:   def.Key(),
			Label: def.Label(),
			Kind:  string(def.Kind()),
		}
		switch def.Kind() {
		case filterdef.Boolean:
			set, err := plan.Set(ctx, search.DimFlag+def.Key())
			if err != nil {
				return query.Facets{}, err
			}
			bc := gen.BoolCounts(def.Key(), set)
			summary.Bool = &bc
		case filterdef.Categorical:
			set, err := plan.Set(ctx, search.DimCat+def.Key())
			if err != nil {
				return query.Facets{}, err
			}
			summary.Values = gen.CategoricalCounts(def.Key(), set, s.topN)
			if len(summary.Values) == 0 {
				continue
			}
		case filterdef.Range:
			set, err := plan.Set(ctx, search.DimRange+def.Key())
			if err != nil {
				return query.Facets{}, err
			}
			rs, ok := gen.RangeStatsFor(def.Key(), set)
			if !ok {
				continue
			}
			summary.Range = &rs
		}
		f.Summaries = append(f.Summaries, summary)
	}
	return f, nil
}

// applicable returns the active definitions in display order that apply to
// the request's taxonomy selection.
func (s *Service) applicable(gen *index.Generation, req query.Request) []filterdef.Definition {
	var out []filterdef.Definition
	for _, def := range gen.FilterDefs() {
		if def.Active() && def.AppliesTo(req.TaxonomyCodes()) {
			out = append(out, def)
		}
	}
	return out
}

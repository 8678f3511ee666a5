package search

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/index"
	"github.com/kailas-cloud/facetdex/internal/metrics"
)

// DefaultExactCountThreshold is the estimate below which the executor always
// computes an exact total even when the plan needs row scans.
const DefaultExactCountThreshold = 10000

// Service executes faceted search queries against the current generation.
type Service struct {
	gens      GenerationProvider
	threshold int
	logger    *zap.Logger
}

// New creates the search service. A non-positive threshold selects
// DefaultExactCountThreshold.
func New(gens GenerationProvider, exactCountThreshold int, logger *zap.Logger) *Service {
	if exactCountThreshold <= 0 {
		exactCountThreshold = DefaultExactCountThreshold
	}
	return &Service{gens: gens, threshold: exactCountThreshold, logger: logger}
}

// Search compiles the request into a plan and returns one result page.
//
// The total is exact when the plan is bitmap-only, when the structural
// estimate is small enough to scan, or when the query is textual (text
// queries are narrow and relevance ranking needs the full match set).
// Otherwise the total is the structural estimate and Approximate is set.
func (s *Service) Search(ctx context.Context, req query.Request) (query.Page, error) {
	gen, err := s.gens.Current()
	if err != nil {
		return query.Page{}, err
	}

	plan := Compile(gen, req, s.logger)

	if plan.Exact() {
		set, err := plan.Set(ctx, "")
		if err != nil {
			return query.Page{}, err
		}
		return query.Page{
			Items:      s.page(gen, plan, req, set),
			TotalCount: int(set.GetCardinality()),
		}, nil
	}

	est := plan.Estimate()
	if est <= s.threshold || plan.HasText() {
		set, err := plan.Set(ctx, "")
		if err != nil {
			return query.Page{}, err
		}
		return query.Page{
			Items:      s.page(gen, plan, req, set),
			TotalCount: int(set.GetCardinality()),
		}, nil
	}

	items, err := s.lazyPage(ctx, gen, plan, req)
	if err != nil {
		return query.Page{}, err
	}
	metrics.QueriesApproximateTotal.Inc()
	return query.Page{
		Items:       items,
		TotalCount:  est,
		Approximate: true,
	}, nil
}

// page slices one page out of a fully materialized match set.
func (s *Service) page(gen *index.Generation, plan *Plan, req query.Request, set *roaring.Bitmap) []query.ResultRow {
	if req.Sort() == query.SortRelevance && plan.HasText() {
		return s.rankedPage(gen, plan, req, set)
	}

	order := gen.Order(req.Sort())
	items := make([]query.ResultRow, 0, req.Limit())
	skip := req.Offset()
	for _, row := range order {
		if !set.Contains(row) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		items = append(items, resultRow(gen.Row(row)))
		if len(items) == req.Limit() {
			break
		}
	}
	return items
}

// rankedPage orders text matches by match class, strongest first, with the
// item code breaking ties inside a class.
func (s *Service) rankedPage(gen *index.Generation, plan *Plan, req query.Request, set *roaring.Bitmap) []query.ResultRow {
	var buckets [matchExact + 1][]uint32
	for _, row := range gen.Order(query.SortRelevance) {
		if !set.Contains(row) {
			continue
		}
		buckets[plan.TextClass(row)] = append(buckets[plan.TextClass(row)], row)
	}

	items := make([]query.ResultRow, 0, req.Limit())
	skip := req.Offset()
	for class := matchExact; class >= matchSubstring; class-- {
		for _, row := range buckets[class] {
			if skip > 0 {
				skip--
				continue
			}
			items = append(items, resultRow(gen.Row(row)))
			if len(items) == req.Limit() {
				return items
			}
		}
	}
	return items
}

// lazyPage walks the sort order and applies the scan predicates on the fly,
// stopping as soon as the page is full. Used when the match set is too large
// to materialize for an exact count.
func (s *Service) lazyPage(ctx context.Context, gen *index.Generation, plan *Plan, req query.Request) ([]query.ResultRow, error) {
	base, scans := plan.base("")

	items := make([]query.ResultRow, 0, req.Limit())
	skip := req.Offset()
	n := 0
	for _, row := range gen.Order(req.Sort()) {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, domain.ErrQueryTimeout
			}
		}
		n++
		if !base.Contains(row) {
			continue
		}
		ok := true
		for _, scan := range scans {
			if !scan(row) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		items = append(items, resultRow(gen.Row(row)))
		if len(items) == req.Limit() {
			break
		}
	}
	return items, nil
}

func resultRow(r index.Row) query.ResultRow {
	return query.ResultRow{
		ItemID:    r.ItemID,
		Code:      r.Code,
		ShortDesc: r.ShortDesc,
		Supplier:  r.Supplier,
		ClassName: r.ClassName,
		Price:     r.Price,
		ImageRef:  r.ImageRef,
		Path:      r.Path,
	}
}

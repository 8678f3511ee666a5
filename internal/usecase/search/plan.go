package search

import (
	"context"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/index"
)

// Text match classes, strongest first.
const (
	matchExact     = 3
	matchPrefix    = 2
	matchSubstring = 1
	matchNone      = 0
)

// checkEvery bounds how many rows a scan processes between deadline checks.
const checkEvery = 4096

// Dimension keys. Filter-key-bound dimensions use the DimFlag/DimCat/DimRange
// prefixes so a facet computation can exclude exactly one of them.
const (
	DimTaxonomy  = "taxonomy"
	DimSuppliers = "suppliers"
	DimText      = "text"
	DimFlag      = "flag:"
	DimCat       = "cat:"
	DimRange     = "range:"
)

// dim is one compiled filter dimension: either a cheap bitmap conjunct
// (include, possibly negated) or a per-row scan predicate.
type dim struct {
	key     string
	include *roaring.Bitmap
	negate  bool
	scan    func(row uint32) bool
}

// Plan is a compiled query: a conjunction of dimensions over one generation.
// Malformed filters were dropped during compilation and are listed in
// Dropped; they never fail the query.
type Plan struct {
	gen       *index.Generation
	dims      []dim
	textClass func(row uint32) int
	hasText   bool
	usedFast  bool
	dropped   []string
}

// Compile translates the request's filters into predicates against the
// generation's columns. Unknown keys and mistyped values degrade to warnings.
func Compile(gen *index.Generation, req query.Request, logger *zap.Logger) *Plan {
	p := &Plan{gen: gen}

	p.compileTaxonomy(req.TaxonomyCodes())
	p.compileSuppliers(req.Suppliers())
	p.compileFlags(req.Flags(), logger)
	p.compileCategorical(req.Categorical(), logger)
	p.compileRanges(req.Ranges(), logger)
	p.compileText(req.Text())

	return p
}

// UsedFastColumns reports whether the taxonomy dimension compiled to fast
// boolean columns instead of a path-containment scan.
func (p *Plan) UsedFastColumns() bool { return p.usedFast }

// HasText reports whether the plan carries a free-text predicate.
func (p *Plan) HasText() bool { return p.hasText }

// Dropped lists the filters discarded during compilation.
func (p *Plan) Dropped() []string { return p.dropped }

// TextClass returns the row's text match class (matchNone when the plan has
// no text predicate or the row does not match).
func (p *Plan) TextClass(row uint32) int {
	if p.textClass == nil {
		return matchNone
	}
	return p.textClass(row)
}

// compileTaxonomy prefers fast columns: when every requested code has one,
// the dimension is a pure bitmap union. Codes without a fast column fall
// back to a path-containment scan.
func (p *Plan) compileTaxonomy(codes []string) {
	if len(codes) == 0 {
		return
	}

	fastUnion := roaring.New()
	var slow []string
	for _, code := range codes {
		if bm, fast := p.gen.TaxonomyPosting(code); fast {
			fastUnion.Or(bm)
		} else {
			slow = append(slow, code)
		}
	}

	if len(slow) == 0 {
		p.usedFast = true
		p.dims = append(p.dims, dim{key: DimTaxonomy, include: fastUnion})
		return
	}

	p.dims = append(p.dims, dim{key: DimTaxonomy, scan: func(row uint32) bool {
		if fastUnion.Contains(row) {
			return true
		}
		for _, code := range p.gen.Row(row).Path {
			for _, want := range slow {
				if code == want {
					return true
				}
			}
		}
		return false
	}})
}

func (p *Plan) compileSuppliers(suppliers []string) {
	if len(suppliers) == 0 {
		return
	}
	union := roaring.New()
	for _, s := range suppliers {
		if bm := p.gen.SupplierPosting(s); bm != nil {
			union.Or(bm)
		}
	}
	p.dims = append(p.dims, dim{key: DimSuppliers, include: union})
}

func (p *Plan) compileFlags(flags map[string]bool, logger *zap.Logger) {
	for key, want := range flags {
		def, ok := p.gen.FilterDef(key)
		if !ok {
			p.drop(logger, key, domain.ErrUnknownFilterKey)
			continue
		}
		if def.Kind() != filterdef.Boolean {
			p.drop(logger, key, domain.ErrTypeMismatch)
			continue
		}
		bm := p.gen.FlagPosting(key)
		if bm == nil {
			bm = roaring.New()
		}
		p.dims = append(p.dims, dim{key: DimFlag + key, include: bm, negate: !want})
	}
}

func (p *Plan) compileCategorical(categorical map[string][]string, logger *zap.Logger) {
	for key, values := range categorical {
		def, ok := p.gen.FilterDef(key)
		if !ok {
			p.drop(logger, key, domain.ErrUnknownFilterKey)
			continue
		}
		if def.Kind() != filterdef.Categorical {
			p.drop(logger, key, domain.ErrTypeMismatch)
			continue
		}
		if len(values) == 0 {
			continue
		}
		union := roaring.New()
		for _, v := range values {
			if bm := p.gen.CategoricalPosting(key, v); bm != nil {
				union.Or(bm)
			}
		}
		p.dims = append(p.dims, dim{key: DimCat + key, include: union})
	}
}

func (p *Plan) compileRanges(ranges map[string]query.RangeFilter, logger *zap.Logger) {
	for key, rf := range ranges {
		def, ok := p.gen.FilterDef(key)
		if !ok {
			p.drop(logger, key, domain.ErrUnknownFilterKey)
			continue
		}
		if def.Kind() != filterdef.Range {
			p.drop(logger, key, domain.ErrTypeMismatch)
			continue
		}
		if rf.Min == nil && rf.Max == nil {
			continue
		}
		col, ok := p.gen.Range(key)
		if !ok {
			p.dims = append(p.dims, dim{key: DimRange + key, include: roaring.New()})
			continue
		}
		p.dims = append(p.dims, dim{key: DimRange + key, scan: func(row uint32) bool {
			return col.Present().Contains(row) && rf.Contains(col.Value(row))
		}})
	}
}

// compileText builds a per-row match classifier: exact token, token prefix,
// or substring of the normalized row text, combined across query tokens with
// the weakest token deciding the class.
func (p *Plan) compileText(text string) {
	tokens := index.Tokenize(text)
	if len(tokens) == 0 {
		return
	}
	p.hasText = true

	type tokenPostings struct {
		raw    string
		exact  *roaring.Bitmap
		prefix *roaring.Bitmap
	}
	compiled := make([]tokenPostings, 0, len(tokens))
	for _, tok := range tokens {
		tp := tokenPostings{raw: tok, exact: roaring.New(), prefix: roaring.New()}
		if bm := p.gen.TokenPosting(tok); bm != nil {
			tp.exact.Or(bm)
		}
		for _, cand := range p.gen.TokensWithPrefix(tok) {
			if cand == tok {
				continue
			}
			if bm := p.gen.TokenPosting(cand); bm != nil {
				tp.prefix.Or(bm)
			}
		}
		compiled = append(compiled, tp)
	}

	p.textClass = func(row uint32) int {
		class := matchExact
		for _, tp := range compiled {
			switch {
			case tp.exact.Contains(row):
				// strongest for this token
			case tp.prefix.Contains(row):
				if class > matchPrefix {
					class = matchPrefix
				}
			case strings.Contains(p.gen.Row(row).NormText, tp.raw):
				class = matchSubstring
			default:
				return matchNone
			}
		}
		return class
	}
	p.dims = append(p.dims, dim{key: DimText, scan: func(row uint32) bool {
		return p.textClass(row) != matchNone
	}})
}

func (p *Plan) drop(logger *zap.Logger, key string, cause error) {
	p.dropped = append(p.dropped, key)
	if logger != nil {
		logger.Warn("filter dropped", zap.String("key", key), zap.Error(cause))
	}
}

// base folds the bitmap dimensions into one candidate bitmap, excluding the
// dimension named by excludeKey ("" excludes nothing), and returns the
// remaining scan predicates.
func (p *Plan) base(excludeKey string) (*roaring.Bitmap, []func(row uint32) bool) {
	bm := p.gen.All()
	var scans []func(row uint32) bool
	for _, d := range p.dims {
		if d.key == excludeKey {
			continue
		}
		switch {
		case d.scan != nil:
			scans = append(scans, d.scan)
		case d.negate:
			bm.AndNot(d.include)
		default:
			bm.And(d.include)
		}
	}
	return bm, scans
}

// Estimate returns the structural row estimate: the candidate cardinality
// after the cheap bitmap conjuncts, before any scan predicate runs. It is an
// upper bound on the exact count.
func (p *Plan) Estimate() int {
	bm, _ := p.base("")
	return int(bm.GetCardinality())
}

// Exact reports whether the plan needs no scan predicates, in which case
// Estimate is already the exact count.
func (p *Plan) Exact() bool {
	for _, d := range p.dims {
		if d.scan != nil {
			return false
		}
	}
	return true
}

// Set materializes the exact matching row set, excluding one dimension
// ("" excludes nothing). Honors the context deadline between scan chunks.
func (p *Plan) Set(ctx context.Context, excludeKey string) (*roaring.Bitmap, error) {
	bm, scans := p.base(excludeKey)
	if len(scans) == 0 {
		return bm, nil
	}

	out := roaring.New()
	it := bm.Iterator()
	n := 0
	for it.HasNext() {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, domain.ErrQueryTimeout
			}
		}
		n++
		row := it.Next()
		ok := true
		for _, scan := range scans {
			if !scan(row) {
				ok = false
				break
			}
		}
		if ok {
			out.Add(row)
		}
	}
	return out, nil
}

package index

import (
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

// RangeColumn is one numeric filter column: a dense value slice indexed by
// row plus a presence bitmap for rows that carry the attribute at all.
type RangeColumn struct {
	values  []float64
	present *roaring.Bitmap
}

// Present returns the bitmap of rows carrying a value.
func (c RangeColumn) Present() *roaring.Bitmap { return c.present }

// Value returns the row's value; only meaningful when Present contains row.
func (c RangeColumn) Value(row uint32) float64 { return c.values[row] }

// FacetCacheEntry is the precomputed facet summary for one taxonomy code,
// rebuilt with every generation.
type FacetCacheEntry struct {
	Code        string                        `json:"code"`
	TotalCount  int                           `json:"total_count"`
	Suppliers   []query.ValueCount            `json:"suppliers"`
	Categorical map[string][]query.ValueCount `json:"categorical"`
	Bools       map[string]query.BoolCount    `json:"bools"`
	Ranges      map[string]query.RangeStats   `json:"ranges"`
}

// Generation is one complete, immutable build of the index. Readers obtain a
// generation from the Store and never observe a partially built one.
type Generation struct {
	id      string
	builtAt time.Time

	rows     []Row
	byItemID map[string]uint32

	taxonomy  map[string]*roaring.Bitmap
	fastCols  map[string]*roaring.Bitmap
	flags     map[string]*roaring.Bitmap
	suppliers map[string]*roaring.Bitmap
	cats      map[string]map[string]*roaring.Bitmap
	ranges    map[string]RangeColumn
	tokens    map[string]*roaring.Bitmap
	tokenList []string

	orders map[query.Sort][]uint32

	defs       []filterdef.Definition
	forest     *taxonomy.Forest
	facetCache map[string]FacetCacheEntry
	report     classify.Report
}

// ID returns the generation identifier.
func (g *Generation) ID() string { return g.id }

// BuiltAt returns the completion time of the rebuild.
func (g *Generation) BuiltAt() time.Time { return g.builtAt }

// Len returns the number of indexed items.
func (g *Generation) Len() int { return len(g.rows) }

// Row returns the wide row at the given position.
func (g *Generation) Row(id uint32) Row { return g.rows[id] }

// RowByItemID returns the row for an item identifier.
func (g *Generation) RowByItemID(itemID string) (Row, bool) {
	id, ok := g.byItemID[itemID]
	if !ok {
		return Row{}, false
	}
	return g.rows[id], true
}

// All returns a bitmap of every row. The result is a fresh bitmap the caller
// may mutate.
func (g *Generation) All() *roaring.Bitmap {
	bm := roaring.New()
	if len(g.rows) > 0 {
		bm.AddRange(0, uint64(len(g.rows)))
	}
	return bm
}

// TaxonomyPosting returns the members of a taxonomy code and whether the
// code has a dedicated fast column. The bitmap is shared: do not mutate.
func (g *Generation) TaxonomyPosting(code string) (bm *roaring.Bitmap, fast bool) {
	if bm, ok := g.fastCols[code]; ok {
		return bm, true
	}
	return g.taxonomy[code], false
}

// FlagPosting returns the rows with the given boolean flag set.
func (g *Generation) FlagPosting(flag string) *roaring.Bitmap { return g.flags[flag] }

// SupplierPosting returns the rows of one supplier.
func (g *Generation) SupplierPosting(supplier string) *roaring.Bitmap {
	return g.suppliers[supplier]
}

// CategoricalPosting returns the rows with value for a categorical key.
func (g *Generation) CategoricalPosting(key, value string) *roaring.Bitmap {
	if vals, ok := g.cats[key]; ok {
		return vals[value]
	}
	return nil
}

// CategoricalValues returns the distinct values of a categorical key sorted
// ascending.
func (g *Generation) CategoricalValues(key string) []string {
	vals, ok := g.cats[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vals))
	for v := range vals {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Suppliers returns the distinct suppliers sorted ascending.
func (g *Generation) Suppliers() []string {
	out := make([]string, 0, len(g.suppliers))
	for s := range g.suppliers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Flags returns the distinct flag names sorted ascending.
func (g *Generation) Flags() []string {
	out := make([]string, 0, len(g.flags))
	for f := range g.flags {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Range returns the numeric column for a range filter key.
func (g *Generation) Range(key string) (RangeColumn, bool) {
	c, ok := g.ranges[key]
	return c, ok
}

// TokenPosting returns the rows containing the exact token.
func (g *Generation) TokenPosting(token string) *roaring.Bitmap { return g.tokens[token] }

// TokensWithPrefix returns every indexed token starting with prefix, via
// binary search over the sorted vocabulary.
func (g *Generation) TokensWithPrefix(prefix string) []string {
	start := sort.SearchStrings(g.tokenList, prefix)
	var out []string
	for i := start; i < len(g.tokenList); i++ {
		if !strings.HasPrefix(g.tokenList[i], prefix) {
			break
		}
		out = append(out, g.tokenList[i])
	}
	return out
}

// Order returns the precomputed row ordering for a sort key. Relevance has
// no precomputed order; callers fall back to the code order.
func (g *Generation) Order(s query.Sort) []uint32 {
	if o, ok := g.orders[s]; ok {
		return o
	}
	return g.orders[query.SortName]
}

// FilterDefs returns the active filter definitions captured at build time.
func (g *Generation) FilterDefs() []filterdef.Definition { return g.defs }

// FilterDef returns the definition for a filter key.
func (g *Generation) FilterDef(key string) (filterdef.Definition, bool) {
	for _, d := range g.defs {
		if d.Key() == key {
			return d, true
		}
	}
	return filterdef.Definition{}, false
}

// Forest returns the taxonomy forest with precomputed item counts.
func (g *Generation) Forest() *taxonomy.Forest { return g.forest }

// CacheEntry returns the precomputed facet summary for a taxonomy code.
func (g *Generation) CacheEntry(code string) (FacetCacheEntry, bool) {
	e, ok := g.facetCache[code]
	return e, ok
}

// Report returns the dead-rule report of the classification pass.
func (g *Generation) Report() classify.Report { return g.report }

// rebuildDerived recomputes the token vocabulary and the precomputed sort
// orders from the primary data. Called by the aggregate phase and after a
// snapshot import.
func (g *Generation) rebuildDerived() {
	g.tokenList = make([]string, 0, len(g.tokens))
	for tok := range g.tokens {
		g.tokenList = append(g.tokenList, tok)
	}
	sort.Strings(g.tokenList)

	n := len(g.rows)
	perm := func(less func(ri, rj Row) bool) []uint32 {
		p := make([]uint32, n)
		for i := range p {
			p[i] = uint32(i)
		}
		sort.SliceStable(p, func(i, j int) bool {
			return less(g.rows[p[i]], g.rows[p[j]])
		})
		return p
	}

	g.orders = map[query.Sort][]uint32{
		query.SortRelevance: perm(func(ri, rj Row) bool {
			return ri.Code < rj.Code
		}),
		query.SortName: perm(func(ri, rj Row) bool {
			if ri.ShortDesc != rj.ShortDesc {
				return ri.ShortDesc < rj.ShortDesc
			}
			return ri.Code < rj.Code
		}),
		query.SortPriceAsc: perm(func(ri, rj Row) bool {
			if ri.Price != rj.Price {
				return ri.Price < rj.Price
			}
			return ri.Code < rj.Code
		}),
		query.SortPriceDesc: perm(func(ri, rj Row) bool {
			if ri.Price != rj.Price {
				return ri.Price > rj.Price
			}
			return ri.Code < rj.Code
		}),
	}
}

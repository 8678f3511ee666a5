package query

// Pagination limits.
const (
	DefaultLimit = 24
	MaxLimit     = 100
)

// RangeFilter is an optional-bounded numeric interval, inclusive on both ends.
type RangeFilter struct {
	Min *float64
	Max *float64
}

// Contains reports whether v falls inside the filter bounds.
func (r RangeFilter) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Request is a validated faceted search query. Taxonomy codes, suppliers and
// categorical values are OR within a key and AND across keys.
type Request struct {
	text          string
	taxonomyCodes []string
	suppliers     []string
	flags         map[string]bool
	categorical   map[string][]string
	ranges        map[string]RangeFilter
	sort          Sort
	limit         int
	offset        int
}

// New normalizes search parameters. Malformed pagination is clamped rather
// than rejected; an invalid sort falls back to relevance.
func New(
	text string,
	taxonomyCodes, suppliers []string,
	flags map[string]bool,
	categorical map[string][]string,
	ranges map[string]RangeFilter,
	sort Sort,
	limit, offset int,
) Request {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	if !sort.IsValid() {
		sort = SortRelevance
	}
	return Request{
		text:          text,
		taxonomyCodes: taxonomyCodes,
		suppliers:     suppliers,
		flags:         flags,
		categorical:   categorical,
		ranges:        ranges,
		sort:          sort,
		limit:         limit,
		offset:        offset,
	}
}

// Text returns the free-text query, empty when unset.
func (r Request) Text() string { return r.text }

// TaxonomyCodes returns the requested taxonomy codes (OR semantics).
func (r Request) TaxonomyCodes() []string { return r.taxonomyCodes }

// Suppliers returns the requested suppliers (OR semantics).
func (r Request) Suppliers() []string { return r.suppliers }

// Flags returns the boolean flag filters.
func (r Request) Flags() map[string]bool { return r.flags }

// Categorical returns the categorical filters (key -> accepted values).
func (r Request) Categorical() map[string][]string { return r.categorical }

// Ranges returns the range filters.
func (r Request) Ranges() map[string]RangeFilter { return r.ranges }

// Sort returns the result ordering.
func (r Request) Sort() Sort { return r.sort }

// Limit returns the clamped page size.
func (r Request) Limit() int { return r.limit }

// Offset returns the clamped page offset.
func (r Request) Offset() int { return r.offset }

// Broad reports whether the request qualifies for the precomputed facet
// cache: no free text, no supplier, no categorical or range filter.
func (r Request) Broad() bool {
	return r.text == "" && len(r.suppliers) == 0 && len(r.categorical) == 0 && len(r.ranges) == 0
}

// WithoutPagination returns a copy stripped of sort/limit/offset, the filter
// shape used by facet requests.
func (r Request) WithoutPagination() Request {
	r.sort = SortRelevance
	r.limit = DefaultLimit
	r.offset = 0
	return r
}

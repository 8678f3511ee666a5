package query

// ValueCount is one categorical facet value with its count in the result set.
type ValueCount struct {
	Value string
	Count int
}

// BoolCount is the facet summary of a boolean filter. Items without the flag
// count as false.
type BoolCount struct {
	True  int
	False int
}

// RangeStats is the facet summary of a range filter over the result set.
type RangeStats struct {
	Min   float64
	Max   float64
	Count int
}

// FacetSummary describes the still-available options of one filter key,
// computed over the filtered set excluding the key's own dimension.
type FacetSummary struct {
	Key    string
	Label  string
	Kind   string
	Values []ValueCount
	Bool   *BoolCount
	Range  *RangeStats
}

// Facets is a full facet response. Generation and BuiltAt tell callers which
// rebuild the counts reflect; cached summaries are exact as of that rebuild.
type Facets struct {
	Generation string
	BuiltAt    int64
	TotalCount int
	Suppliers  []ValueCount
	Summaries  []FacetSummary
}

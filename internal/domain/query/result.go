package query

// ResultRow is one denormalized search hit, displayable without consulting
// the raw attribute store.
type ResultRow struct {
	ItemID    string
	Code      string
	ShortDesc string
	Supplier  string
	ClassName string
	Price     float64
	ImageRef  string
	Path      []string
}

// Page is one ordered result page. TotalCount may be approximate for broad
// queries; Approximate is true whenever it was estimated rather than counted.
type Page struct {
	Items       []ResultRow
	TotalCount  int
	Approximate bool
}

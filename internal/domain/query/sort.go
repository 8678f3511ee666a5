package query

// Sort is the result ordering of a search.
type Sort string

// Sort orders. Relevance ranks exact/prefix text matches above substring
// matches above the rest, tie-broken by item code ascending.
const (
	SortRelevance Sort = "relevance"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

// IsValid reports whether s is a known sort order.
func (s Sort) IsValid() bool {
	switch s {
	case SortRelevance, SortPriceAsc, SortPriceDesc, SortName:
		return true
	default:
		return false
	}
}

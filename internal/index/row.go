package index

// Row is the denormalized per-item search record: everything needed to
// display a result without consulting the raw attribute store. Filterable
// values live in the generation's column postings, not here.
type Row struct {
	ItemID    string   `json:"item_id"`
	Code      string   `json:"code"`
	ShortDesc string   `json:"short_desc"`
	Supplier  string   `json:"supplier"`
	ClassName string   `json:"class_name"`
	Price     float64  `json:"price"`
	ImageRef  string   `json:"image_ref"`
	Path      []string `json:"path"`
	// NormText is the precomputed lowercase text used for substring search.
	NormText string `json:"norm_text"`
}

package chi

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain/query"
	domtax "github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

// searchRequest is the wire shape of POST /search and POST /facets. The
// filters object is heterogeneous: booleans, string arrays and {min,max}
// objects keyed by filter key.
type searchRequest struct {
	Text          string                     `json:"text,omitempty"`
	TaxonomyCodes []string                   `json:"taxonomy_codes,omitempty"`
	Suppliers     []string                   `json:"suppliers,omitempty"`
	Filters       map[string]json.RawMessage `json:"filters,omitempty"`
	Sort          string                     `json:"sort,omitempty"`
	Limit         int                        `json:"limit,omitempty"`
	Offset        int                        `json:"offset,omitempty"`
}

type rangeFilterDTO struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// toQuery translates the wire request into a domain query. A filter value
// that fits none of the three shapes is dropped with a warning; it never
// fails the request.
func (r searchRequest) toQuery(logger *zap.Logger) query.Request {
	flags := map[string]bool{}
	categorical := map[string][]string{}
	ranges := map[string]query.RangeFilter{}

	for key, raw := range r.Filters {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			flags[key] = b
			continue
		}
		var values []string
		if err := json.Unmarshal(raw, &values); err == nil {
			categorical[key] = values
			continue
		}
		var rf rangeFilterDTO
		if err := json.Unmarshal(raw, &rf); err == nil && (rf.Min != nil || rf.Max != nil) {
			ranges[key] = query.RangeFilter{Min: rf.Min, Max: rf.Max}
			continue
		}
		logger.Warn("malformed filter value dropped", zap.String("key", key))
	}

	return query.New(
		r.Text, r.TaxonomyCodes, r.Suppliers,
		flags, categorical, ranges,
		query.Sort(r.Sort), r.Limit, r.Offset,
	)
}

type resultRowDTO struct {
	ItemID    string   `json:"item_id"`
	Code      string   `json:"code"`
	ShortDesc string   `json:"short_desc"`
	Supplier  string   `json:"supplier,omitempty"`
	ClassName string   `json:"class_name,omitempty"`
	Price     float64  `json:"price"`
	ImageRef  string   `json:"image_ref,omitempty"`
	Path      []string `json:"path"`
}

type searchResponse struct {
	Items       []resultRowDTO `json:"items"`
	TotalCount  int            `json:"total_count"`
	Approximate bool           `json:"approximate"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset"`
}

func searchResponseFrom(page query.Page, req query.Request) searchResponse {
	items := make([]resultRowDTO, len(page.Items))
	for i, row := range page.Items {
		items[i] = resultRowDTO{
			ItemID:    row.ItemID,
			Code:      row.Code,
			ShortDesc: row.ShortDesc,
			Supplier:  row.Supplier,
			ClassName: row.ClassName,
			Price:     row.Price,
			ImageRef:  row.ImageRef,
			Path:      row.Path,
		}
	}
	return searchResponse{
		Items:       items,
		TotalCount:  page.TotalCount,
		Approximate: page.Approximate,
		Limit:       req.Limit(),
		Offset:      req.Offset(),
	}
}

type valueCountDTO struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type boolCountDTO struct {
	True  int `json:"true"`
	False int `json:"false"`
}

type rangeStatsDTO struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

type facetSummaryDTO struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Kind   string          `json:"kind"`
	Values []valueCountDTO `json:"values,omitempty"`
	Bool   *boolCountDTO   `json:"bool,omitempty"`
	Range  *rangeStatsDTO  `json:"range,omitempty"`
}

type facetsResponse struct {
	Generation string            `json:"generation"`
	BuiltAt    int64             `json:"built_at"`
	TotalCount int               `json:"total_count"`
	Suppliers  []valueCountDTO   `json:"suppliers"`
	Facets     []facetSummaryDTO `json:"facets"`
}

func facetsResponseFrom(f query.Facets) facetsResponse {
	resp := facetsResponse{
		Generation: f.Generation,
		BuiltAt:    f.BuiltAt,
		TotalCount: f.TotalCount,
		Suppliers:  valueCountsFrom(f.Suppliers),
		Facets:     make([]facetSummaryDTO, 0, len(f.Summaries)),
	}
	for _, s := range f.Summaries {
		dto := facetSummaryDTO{
			Key:    s.Key,
			Label:  s.Label,
			Kind:   s.Kind,
			Values: valueCountsFrom(s.Values),
		}
		if s.Bool != nil {
			dto.Bool = &boolCountDTO{True: s.Bool.True, False: s.Bool.False}
		}
		if s.Range != nil {
			dto.Range = &rangeStatsDTO{Min: s.Range.Min, Max: s.Range.Max, Count: s.Range.Count}
		}
		resp.Facets = append(resp.Facets, dto)
	}
	return resp
}

func valueCountsFrom(vcs []query.ValueCount) []valueCountDTO {
	out := make([]valueCountDTO, len(vcs))
	for i, vc := range vcs {
		out[i] = valueCountDTO{Value: vc.Value, Count: vc.Count}
	}
	return out
}

type nodeDTO struct {
	Code         string   `json:"code"`
	ParentCode   string   `json:"parent_code,omitempty"`
	Name         string   `json:"name"`
	Level        int      `json:"level"`
	DisplayOrder int      `json:"display_order"`
	ItemCount    int      `json:"item_count"`
	Path         []string `json:"path"`
}

func nodeFrom(n domtax.Node) nodeDTO {
	return nodeDTO{
		Code:         n.Code(),
		ParentCode:   n.ParentCode(),
		Name:         n.Name(),
		Level:        n.Level(),
		DisplayOrder: n.DisplayOrder(),
		ItemCount:    n.ItemCount(),
		Path:         n.Path(),
	}
}

type taxonomyResponse struct {
	Nodes []nodeDTO `json:"nodes"`
}

type rebuildResponse struct {
	GenerationID     string           `json:"generation_id"`
	Status           string           `json:"status"`
	Items            int              `json:"items"`
	PhaseDurationsMs map[string]int64 `json:"phase_durations_ms"`
	DeadRules        []deadRuleDTO    `json:"dead_rules,omitempty"`
	UnknownCodes     []string         `json:"unknown_codes,omitempty"`
}

type deadRuleDTO struct {
	Name           string `json:"name"`
	Priority       int    `json:"priority"`
	AttrKeyMissing bool   `json:"attr_key_missing,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

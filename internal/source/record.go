package source

import (
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
)

// ItemRecord is the wire/storage shape of one catalog item shared by the
// drivers (sqlite rows, redis hashes, snapshot fixtures).
type ItemRecord struct {
	ID         string      `json:"id"`
	Code       string      `json:"code"`
	ShortDesc  string      `json:"short_desc"`
	LongDesc   string      `json:"long_desc"`
	Supplier   string      `json:"supplier"`
	GroupCode  string      `json:"group_code"`
	ClassCode  string      `json:"class_code"`
	ClassName  string      `json:"class_name"`
	Price      float64     `json:"price"`
	ImageRef   string      `json:"image_ref"`
	Attributes []AttrRecord `json:"attributes"`
}

// AttrRecord is the storage shape of one typed attribute.
type AttrRecord struct {
	Key  string  `json:"key"`
	Kind string  `json:"kind"` // text, number, bool, interval
	Text string  `json:"text,omitempty"`
	Num  float64 `json:"num,omitempty"`
	Bool bool    `json:"bool,omitempty"`
	Lo   float64 `json:"lo,omitempty"`
	Hi   float64 `json:"hi,omitempty"`
	Unit string  `json:"unit,omitempty"`
}

// ToItem converts the record into a domain item.
func (r ItemRecord) ToItem() (catalog.Item, error) {
	attrs := make([]catalog.Attribute, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		v, err := a.toValue()
		if err != nil {
			return catalog.Item{}, fmt.Errorf("item %s attribute %s: %w", r.ID, a.Key, err)
		}
		attrs = append(attrs, catalog.NewAttribute(a.Key, v, a.Unit))
	}
	return catalog.New(
		r.ID, r.Code, r.ShortDesc, r.LongDesc, r.Supplier,
		r.GroupCode, r.ClassCode, r.ClassName,
		r.Price, r.ImageRef, attrs,
	), nil
}

func (a AttrRecord) toValue() (catalog.Value, error) {
	switch catalog.Kind(a.Kind) {
	case catalog.KindText:
		return catalog.Text(a.Text), nil
	case catalog.KindNumber:
		return catalog.Number(a.Num), nil
	case catalog.KindBool:
		return catalog.Bool(a.Bool), nil
	case catalog.KindInterval:
		return catalog.Interval(a.Lo, a.Hi), nil
	default:
		return catalog.Value{}, fmt.Errorf("unknown attribute kind %q", a.Kind)
	}
}

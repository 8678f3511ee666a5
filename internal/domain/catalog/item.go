package catalog

// Item is one raw catalog record as delivered by the attribute store.
// Items are immutable between rebuilds; this system never writes them.
type Item struct {
	id         string
	code       string
	shortDesc  string
	longDesc   string
	supplier   string
	groupCode  string
	classCode  string
	className  string
	price      float64
	imageRef   string
	attributes []Attribute
	byKey      map[string]int
}

// New creates an Item. Attributes are indexed by key for O(1) lookup;
// on duplicate keys the first occurrence wins.
func New(
	id, code, shortDesc, longDesc, supplier string,
	groupCode, classCode, className string,
	price float64, imageRef string,
	attributes []Attribute,
) Item {
	byKey := make(map[string]int, len(attributes))
	for i, a := range attributes {
		if _, ok := byKey[a.Key()]; !ok {
			byKey[a.Key()] = i
		}
	}
	return Item{
		id:         id,
		code:       code,
		shortDesc:  shortDesc,
		longDesc:   longDesc,
		supplier:   supplier,
		groupCode:  groupCode,
		classCode:  classCode,
		className:  className,
		price:      price,
		imageRef:   imageRef,
		attributes: attributes,
		byKey:      byKey,
	}
}

// ID returns the item identifier.
func (i Item) ID() string { return i.id }

// Code returns the human-readable item code.
func (i Item) Code() string { return i.code }

// ShortDesc returns the short description.
func (i Item) ShortDesc() string { return i.shortDesc }

// LongDesc returns the long description.
func (i Item) LongDesc() string { return i.longDesc }

// Supplier returns the supplier name.
func (i Item) Supplier() string { return i.supplier }

// GroupCode returns the catalog group code.
func (i Item) GroupCode() string { return i.groupCode }

// ClassCode returns the catalog class code.
func (i Item) ClassCode() string { return i.classCode }

// ClassName returns the display class name.
func (i Item) ClassName() string { return i.className }

// Price returns the item price.
func (i Item) Price() float64 { return i.price }

// ImageRef returns the image reference.
func (i Item) ImageRef() string { return i.imageRef }

// Attributes returns the raw attribute list.
func (i Item) Attributes() []Attribute { return i.attributes }

// Attribute returns the typed value for key. The second return is false
// when the item does not carry the attribute; this is never an error.
func (i Item) Attribute(key string) (Value, bool) {
	idx, ok := i.byKey[key]
	if !ok {
		return Value{}, false
	}
	return i.attributes[idx].Value(), true
}

package filterdef

import "fmt"

// Kind is the filter behavior of a definition.
type Kind string

// Filter kinds.
const (
	Boolean     Kind = "boolean"
	Categorical Kind = "categorical"
	Range       Kind = "range"
)

// Definition binds a queryable filter key to an item attribute. Definitions
// are configuration, edited out-of-band and read by the rebuild pipeline.
type Definition struct {
	key           string
	kind          Kind
	label         string
	attributeKey  string
	unitHint      string
	taxonomyCodes []string
	displayOrder  int
	active        bool
}

// New validates and creates a Definition. For boolean filters the attribute
// key may be empty, in which case the key names a classification flag.
func New(
	key string, kind Kind, label, attributeKey, unitHint string,
	taxonomyCodes []string, displayOrder int, active bool,
) (Definition, error) {
	if key == "" {
		return Definition{}, fmt.Errorf("filter key is required")
	}
	switch kind {
	case Boolean, Categorical, Range:
	default:
		return Definition{}, fmt.Errorf("filter %q: invalid kind %q", key, kind)
	}
	if kind != Boolean && attributeKey == "" {
		return Definition{}, fmt.Errorf("filter %q: attribute key is required for kind %q", key, kind)
	}
	if label == "" {
		label = key
	}
	return Definition{
		key:           key,
		kind:          kind,
		label:         label,
		attributeKey:  attributeKey,
		unitHint:      unitHint,
		taxonomyCodes: taxonomyCodes,
		displayOrder:  displayOrder,
		active:        active,
	}, nil
}

// Reconstruct creates a Definition without validation (snapshot hydration).
func Reconstruct(
	key string, kind Kind, label, attributeKey, unitHint string,
	taxonomyCodes []string, displayOrder int, active bool,
) Definition {
	return Definition{
		key:           key,
		kind:          kind,
		label:         label,
		attributeKey:  attributeKey,
		unitHint:      unitHint,
		taxonomyCodes: taxonomyCodes,
		displayOrder:  displayOrder,
		active:        active,
	}
}

// Key returns the filter key.
func (d Definition) Key() string { return d.key }

// Kind returns the filter kind.
func (d Definition) Kind() Kind { return d.kind }

// Label returns the display label.
func (d Definition) Label() string { return d.label }

// AttributeKey returns the bound item attribute key.
func (d Definition) AttributeKey() string { return d.attributeKey }

// UnitHint returns the UI unit hint, if any.
func (d Definition) UnitHint() string { return d.unitHint }

// TaxonomyCodes returns the taxonomy codes this filter is restricted to;
// empty means the filter applies everywhere.
func (d Definition) TaxonomyCodes() []string { return d.taxonomyCodes }

// DisplayOrder returns the UI ordering key.
func (d Definition) DisplayOrder() int { return d.displayOrder }

// Active reports whether the filter participates in index builds and queries.
func (d Definition) Active() bool { return d.active }

// AppliesTo reports whether the filter applies to any of the given taxonomy
// codes. An unrestricted filter applies to everything, including no selection.
func (d Definition) AppliesTo(codes []string) bool {
	if len(d.taxonomyCodes) == 0 {
		return true
	}
	for _, scope := range d.taxonomyCodes {
		for _, c := range codes {
			if scope == c {
				return true
			}
		}
	}
	return false
}

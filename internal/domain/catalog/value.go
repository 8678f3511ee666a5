package catalog

import "strconv"

// Kind is the type of an attribute value.
type Kind string

// Attribute value kinds.
const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindBool     Kind = "bool"
	KindInterval Kind = "interval"
)

// Value is a typed attribute value: text, number, boolean, or numeric interval.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
	lo   float64
	hi   float64
}

// Text creates a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number creates a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Interval creates a numeric interval value [lo, hi].
func Interval(lo, hi float64) Value { return Value{kind: KindInterval, lo: lo, hi: hi} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// AsText returns the value rendered as a string. Numbers use the shortest
// round-trip form so "20" and "20.0" compare equal after extraction.
func (v Value) AsText() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInterval:
		return strconv.FormatFloat(v.lo, 'f', -1, 64) + ".." + strconv.FormatFloat(v.hi, 'f', -1, 64)
	default:
		return v.text
	}
}

// AsNumber returns the numeric value. Intervals report their lower bound;
// the second return is false for non-numeric kinds.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindInterval:
		return v.lo, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value; the second return is false for other kinds.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Bounds returns the interval bounds; the second return is false for other kinds.
func (v Value) Bounds() (lo, hi float64, ok bool) {
	if v.kind != KindInterval {
		return 0, 0, false
	}
	return v.lo, v.hi, true
}

// Attribute is one raw (key, typed value, unit) entry on an item.
type Attribute struct {
	key   string
	value Value
	unit  string
}

// NewAttribute creates an attribute.
func NewAttribute(key string, value Value, unit string) Attribute {
	return Attribute{key: key, value: value, unit: unit}
}

// Key returns the attribute key.
func (a Attribute) Key() string { return a.key }

// Value returns the typed value.
func (a Attribute) Value() Value { return a.value }

// Unit returns the unit of measure, if any.
func (a Attribute) Unit() string { return a.unit }

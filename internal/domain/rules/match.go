package rules

import (
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
)

// Matches reports whether the condition holds for the item.
// A missing attribute makes an attribute condition false, never an error.
func (c Condition) Matches(item catalog.Item) bool {
	switch {
	case len(c.groupCodes) > 0:
		return c.groupCodes[item.GroupCode()]
	case len(c.classCodes) > 0:
		return c.classCodes[item.ClassCode()]
	case c.pattern != nil:
		return c.pattern.MatchString(item.ShortDesc()) || c.pattern.MatchString(item.LongDesc())
	case c.attrKey != "":
		return c.matchAttribute(item)
	default:
		return false
	}
}

func (c Condition) matchAttribute(item catalog.Item) bool {
	v, ok := item.Attribute(c.attrKey)
	if !ok {
		return false
	}

	switch c.op {
	case OpExists:
		return true
	case OpEquals:
		return strings.EqualFold(v.AsText(), c.target)
	case OpContains:
		return strings.Contains(strings.ToLower(v.AsText()), strings.ToLower(c.target))
	case OpGreaterThan:
		n, isNum := v.AsNumber()
		return isNum && n > c.targetNum
	case OpLessThan:
		n, isNum := v.AsNumber()
		return isNum && n < c.targetNum
	case OpInRange:
		n, isNum := v.AsNumber()
		if !isNum {
			return false
		}
		if c.includeMin {
			if n < c.rangeMin {
				return false
			}
		} else if n <= c.rangeMin {
			return false
		}
		if c.includeMax {
			return n <= c.rangeMax
		}
		return n < c.rangeMax
	default:
		return false
	}
}

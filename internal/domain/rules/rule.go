package rules

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Rule assigns taxonomy membership and/or a boolean flag to matching items.
// Outputs of all matching rules are unioned; priority only orders how
// contributions are reported, it never overrides another rule.
type Rule struct {
	name         string
	priority     int
	taxonomyCode string
	flag         string
	active       bool
	condition    Condition
}

// New validates and creates a Rule. Exactly one condition type must be set
// and the rule must produce at least one output (taxonomy code or flag).
func New(name string, priority int, taxonomyCode, flag string, active bool, cond Condition) (Rule, error) {
	if name == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	if taxonomyCode == "" && flag == "" {
		return Rule{}, fmt.Errorf("rule %q: taxonomy code or flag is required", name)
	}
	if err := cond.validate(); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w: %w", name, domain.ErrInvalidRuleCondition, err)
	}
	return Rule{
		name:         name,
		priority:     priority,
		taxonomyCode: taxonomyCode,
		flag:         flag,
		active:       active,
		condition:    cond,
	}, nil
}

// Name returns the rule name.
func (r Rule) Name() string { return r.name }

// Priority returns the rule priority; lower values report first.
func (r Rule) Priority() int { return r.priority }

// TaxonomyCode returns the taxonomy code assigned on match, if any.
func (r Rule) TaxonomyCode() string { return r.taxonomyCode }

// Flag returns the boolean flag set on match, if any.
func (r Rule) Flag() string { return r.flag }

// Active reports whether the rule participates in classification.
func (r Rule) Active() bool { return r.active }

// Condition returns the rule's single condition.
func (r Rule) Condition() Condition { return r.condition }

// Operator compares one attribute value against a rule target.
type Operator string

// Attribute condition operators.
const (
	OpExists      Operator = "exists"
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpInRange     Operator = "in_range"
)

// Condition is the single matching clause of a rule. Exactly one of the
// four condition kinds may be configured.
type Condition struct {
	groupCodes map[string]bool
	classCodes map[string]bool

	attrKey    string
	op         Operator
	target     string
	targetNum  float64
	rangeMin   float64
	rangeMax   float64
	includeMin bool
	includeMax bool

	pattern *regexp.Regexp
}

// GroupCodes creates a group-code set condition.
func GroupCodes(codes ...string) Condition {
	return Condition{groupCodes: toSet(codes)}
}

// ClassCodes creates a class-code set condition.
func ClassCodes(codes ...string) Condition {
	return Condition{classCodes: toSet(codes)}
}

// AttributeExists creates an attribute presence condition.
func AttributeExists(key string) Condition {
	return Condition{attrKey: key, op: OpExists}
}

// AttributeEquals creates a string/boolean equality condition.
func AttributeEquals(key, target string) Condition {
	return Condition{attrKey: key, op: OpEquals, target: target}
}

// AttributeContains creates a case-insensitive substring condition.
func AttributeContains(key, target string) Condition {
	return Condition{attrKey: key, op: OpContains, target: target}
}

// AttributeGreaterThan creates a numeric greater-than condition.
func AttributeGreaterThan(key string, target float64) Condition {
	return Condition{attrKey: key, op: OpGreaterThan, targetNum: target}
}

// AttributeLessThan creates a numeric less-than condition.
func AttributeLessThan(key string, target float64) Condition {
	return Condition{attrKey: key, op: OpLessThan, targetNum: target}
}

// AttributeInRange creates a numeric range condition. Bound inclusivity is
// configurable; the conventional setup is inclusive min, exclusive max.
func AttributeInRange(key string, min, max float64, includeMin, includeMax bool) Condition {
	return Condition{
		attrKey: key, op: OpInRange,
		rangeMin: min, rangeMax: max,
		includeMin: includeMin, includeMax: includeMax,
	}
}

// TextPattern creates a case-insensitive regexp condition against the item
// descriptions. The pattern is compiled here, once, at configuration load.
func TextPattern(pattern string) (Condition, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Condition{}, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return Condition{pattern: re}, nil
}

// AttrKey returns the attribute key of an attribute condition, empty otherwise.
func (c Condition) AttrKey() string { return c.attrKey }

// validate ensures exactly one condition kind is configured.
func (c Condition) validate() error {
	kinds := 0
	if len(c.groupCodes) > 0 {
		kinds++
	}
	if len(c.classCodes) > 0 {
		kinds++
	}
	if c.attrKey != "" {
		kinds++
	}
	if c.pattern != nil {
		kinds++
	}
	switch kinds {
	case 0:
		return fmt.Errorf("no condition configured")
	case 1:
		return nil
	default:
		return fmt.Errorf("%d condition types configured, want exactly 1", kinds)
	}
}

func toSet(codes []string) map[string]bool {
	s := make(map[string]bool, len(codes))
	for _, c := range codes {
		s[c] = true
	}
	return s
}

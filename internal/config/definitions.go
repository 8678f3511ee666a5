package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

// Definitions is the full classification configuration: the taxonomy forest,
// the rule set and the filter definitions. Loaded once at startup; a rebuild
// snapshots whatever was loaded then.
type Definitions struct {
	Forest  *taxonomy.Forest
	Rules   []rules.Rule
	Filters []filterdef.Definition
}

type taxonomyFile struct {
	Nodes []struct {
		Code         string `yaml:"code"`
		Parent       string `yaml:"parent"`
		Name         string `yaml:"name"`
		DisplayOrder int    `yaml:"display_order"`
		Active       *bool  `yaml:"active"`
		FastColumn   bool   `yaml:"fast_column"`
	} `yaml:"nodes"`
}

type attrCondition struct {
	Key        string  `yaml:"key"`
	Op         string  `yaml:"op"`
	Value      string  `yaml:"value"`
	Number     float64 `yaml:"number"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	IncludeMin *bool   `yaml:"include_min"`
	IncludeMax bool    `yaml:"include_max"`
}

type rulesFile struct {
	Rules []struct {
		Name      string `yaml:"name"`
		Priority  int    `yaml:"priority"`
		Active    *bool  `yaml:"active"`
		Condition struct {
			GroupCodes  []string       `yaml:"group_codes"`
			ClassCodes  []string       `yaml:"class_codes"`
			TextPattern string         `yaml:"text_pattern"`
			Attribute   *attrCondition `yaml:"attribute"`
		} `yaml:"condition"`
		Assign struct {
			Taxonomy string `yaml:"taxonomy"`
			Flag     string `yaml:"flag"`
		} `yaml:"assign"`
	} `yaml:"rules"`
}

type filtersFile struct {
	Filters []struct {
		Key           string   `yaml:"key"`
		Kind          string   `yaml:"kind"`
		Label         string   `yaml:"label"`
		AttributeKey  string   `yaml:"attribute_key"`
		Unit          string   `yaml:"unit"`
		TaxonomyCodes []string `yaml:"taxonomy_codes"`
		DisplayOrder  int      `yaml:"display_order"`
		Active        *bool    `yaml:"active"`
	} `yaml:"filters"`
}

// LoadDefinitions reads and validates the three definition files. A rule
// with an invalid condition fails the load; broken configuration never
// reaches the rebuild pipeline.
func LoadDefinitions(cfg DefinitionsConfig) (Definitions, error) {
	forest, err := loadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return Definitions{}, fmt.Errorf("load taxonomy: %w", err)
	}
	ruleset, err := loadRules(cfg.RulesPath)
	if err != nil {
		return Definitions{}, fmt.Errorf("load rules: %w", err)
	}
	filters, err := loadFilters(cfg.FiltersPath)
	if err != nil {
		return Definitions{}, fmt.Errorf("load filters: %w", err)
	}
	return Definitions{Forest: forest, Rules: ruleset, Filters: filters}, nil
}

func loadTaxonomy(path string) (*taxonomy.Forest, error) {
	var f taxonomyFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	specs := make([]taxonomy.NodeSpec, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		specs = append(specs, taxonomy.NodeSpec{
			Code:         n.Code,
			ParentCode:   n.Parent,
			Name:         n.Name,
			DisplayOrder: n.DisplayOrder,
			Active:       boolOr(n.Active, true),
			FastColumn:   n.FastColumn,
		})
	}
	return taxonomy.BuildForest(specs)
}

func loadRules(path string) ([]rules.Rule, error) {
	var f rulesFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	out := make([]rules.Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		cond, err := buildCondition(r.Name, r.Condition.GroupCodes, r.Condition.ClassCodes, r.Condition.TextPattern, r.Condition.Attribute)
		if err != nil {
			return nil, err
		}
		rule, err := rules.New(r.Name, r.Priority, r.Assign.Taxonomy, r.Assign.Flag, boolOr(r.Active, true), cond)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func buildCondition(
	ruleName string,
	groupCodes, classCodes []string,
	textPattern string,
	attr *attrCondition,
) (rules.Condition, error) {
	kinds := 0
	var cond rules.Condition
	if len(groupCodes) > 0 {
		kinds++
		cond = rules.GroupCodes(groupCodes...)
	}
	if len(classCodes) > 0 {
		kinds++
		cond = rules.ClassCodes(classCodes...)
	}
	if textPattern != "" {
		kinds++
		c, err := rules.TextPattern(textPattern)
		if err != nil {
			return rules.Condition{}, fmt.Errorf("rule %q: %w", ruleName, err)
		}
		cond = c
	}
	if attr != nil {
		kinds++
		switch rules.Operator(attr.Op) {
		case rules.OpExists:
			cond = rules.AttributeExists(attr.Key)
		case rules.OpEquals:
			cond = rules.AttributeEquals(attr.Key, attr.Value)
		case rules.OpContains:
			cond = rules.AttributeContains(attr.Key, attr.Value)
		case rules.OpGreaterThan:
			cond = rules.AttributeGreaterThan(attr.Key, attr.Number)
		case rules.OpLessThan:
			cond = rules.AttributeLessThan(attr.Key, attr.Number)
		case rules.OpInRange:
			cond = rules.AttributeInRange(attr.Key, attr.Min, attr.Max, boolOr(attr.IncludeMin, true), attr.IncludeMax)
		default:
			return rules.Condition{}, fmt.Errorf("rule %q: unknown attribute op %q", ruleName, attr.Op)
		}
	}
	if kinds != 1 {
		return rules.Condition{}, fmt.Errorf(
			"rule %q: %w: %d condition types configured, want exactly 1",
			ruleName, domain.ErrInvalidRuleCondition, kinds,
		)
	}
	return cond, nil
}

func loadFilters(path string) ([]filterdef.Definition, error) {
	var f filtersFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	out := make([]filterdef.Definition, 0, len(f.Filters))
	for _, d := range f.Filters {
		def, err := filterdef.New(
			d.Key, filterdef.Kind(d.Kind), d.Label, d.AttributeKey,
			d.Unit, d.TaxonomyCodes, d.DisplayOrder, boolOr(d.Active, true),
		)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	data = expandEnvVars(data)
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

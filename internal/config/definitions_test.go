package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const taxonomyYAML = `
nodes:
  - code: lighting
    name: Lighting
    display_order: 1
    fast_column: true
  - code: indoor
    parent: lighting
    name: Indoor
    display_order: 1
  - code: legacy
    name: Legacy
    active: false
`

const rulesYAML = `
rules:
  - name: indoor-by-group
    priority: 10
    condition:
      group_codes: [G100, G200]
    assign:
      taxonomy: indoor
  - name: dimmable-flag
    priority: 20
    condition:
      attribute:
        key: dimmable
        op: equals
        value: "true"
    assign:
      flag: dimmable
`

const filtersYAML = `
filters:
  - key: dimmable
    kind: boolean
    label: Dimmable
    display_order: 1
  - key: color
    kind: categorical
    label: Color
    attribute_key: color
    display_order: 2
  - key: power
    kind: range
    label: Power
    attribute_key: power_w
    unit: W
    taxonomy_codes: [lighting]
    display_order: 3
`

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	cfg := DefinitionsConfig{
		TaxonomyPath: writeFile(t, dir, "taxonomy.yaml", taxonomyYAML),
		RulesPath:    writeFile(t, dir, "rules.yaml", rulesYAML),
		FiltersPath:  writeFile(t, dir, "filters.yaml", filtersYAML),
	}

	defs, err := LoadDefinitions(cfg)
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}

	if got := len(defs.Forest.Nodes()); got != 3 {
		t.Errorf("expected 3 nodes, got %d", got)
	}
	indoor, ok := defs.Forest.Node("indoor")
	if !ok {
		t.Fatal("node indoor not found")
	}
	if indoor.Level() != 1 {
		t.Errorf("expected indoor at level 1, got %d", indoor.Level())
	}
	lighting, _ := defs.Forest.Node("lighting")
	if !lighting.FastColumn() {
		t.Error("expected lighting to have a fast column")
	}
	legacy, _ := defs.Forest.Node("legacy")
	if legacy.Active() {
		t.Error("expected legacy to be inactive")
	}

	if got := len(defs.Rules); got != 2 {
		t.Errorf("expected 2 rules, got %d", got)
	}
	if defs.Rules[1].Flag() != "dimmable" {
		t.Errorf("expected flag 'dimmable', got %q", defs.Rules[1].Flag())
	}

	if got := len(defs.Filters); got != 3 {
		t.Errorf("expected 3 filters, got %d", got)
	}
	if defs.Filters[2].UnitHint() != "W" {
		t.Errorf("expected unit hint 'W', got %q", defs.Filters[2].UnitHint())
	}
}

func TestLoadDefinitions_MultipleConditionKinds(t *testing.T) {
	dir := t.TempDir()
	cfg := DefinitionsConfig{
		TaxonomyPath: writeFile(t, dir, "taxonomy.yaml", taxonomyYAML),
		RulesPath: writeFile(t, dir, "rules.yaml", `
rules:
  - name: broken
    condition:
      group_codes: [G100]
      class_codes: [C1]
    assign:
      taxonomy: indoor
`),
		FiltersPath: writeFile(t, dir, "filters.yaml", filtersYAML),
	}

	_, err := LoadDefinitions(cfg)
	if !errors.Is(err, domain.ErrInvalidRuleCondition) {
		t.Fatalf("expected ErrInvalidRuleCondition, got %v", err)
	}
}

func TestLoadDefinitions_NoCondition(t *testing.T) {
	dir := t.TempDir()
	cfg := DefinitionsConfig{
		TaxonomyPath: writeFile(t, dir, "taxonomy.yaml", taxonomyYAML),
		RulesPath: writeFile(t, dir, "rules.yaml", `
rules:
  - name: empty
    condition: {}
    assign:
      taxonomy: indoor
`),
		FiltersPath: writeFile(t, dir, "filters.yaml", filtersYAML),
	}

	_, err := LoadDefinitions(cfg)
	if !errors.Is(err, domain.ErrInvalidRuleCondition) {
		t.Fatalf("expected ErrInvalidRuleCondition, got %v", err)
	}
}

func TestLoadDefinitions_BadRegexp(t *testing.T) {
	dir := t.TempDir()
	cfg := DefinitionsConfig{
		TaxonomyPath: writeFile(t, dir, "taxonomy.yaml", taxonomyYAML),
		RulesPath: writeFile(t, dir, "rules.yaml", `
rules:
  - name: bad-pattern
    condition:
      text_pattern: "([unclosed"
    assign:
      taxonomy: indoor
`),
		FiltersPath: writeFile(t, dir, "filters.yaml", filtersYAML),
	}

	if _, err := LoadDefinitions(cfg); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

func TestLoadDefinitions_ParentDeclaredAfterChild(t *testing.T) {
	dir := t.TempDir()
	cfg := DefinitionsConfig{
		TaxonomyPath: writeFile(t, dir, "taxonomy.yaml", `
nodes:
  - code: indoor
    parent: lighting
    name: Indoor
  - code: lighting
    name: Lighting
`),
		RulesPath:   writeFile(t, dir, "rules.yaml", rulesYAML),
		FiltersPath: writeFile(t, dir, "filters.yaml", filtersYAML),
	}

	if _, err := LoadDefinitions(cfg); err == nil {
		t.Fatal("expected error for parent declared after child")
	}
}

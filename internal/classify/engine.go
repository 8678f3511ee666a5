// Package classify evaluates configured classification rules against catalog
// items. Matching is union-of-contributions: every matching rule adds its
// taxonomy code and flag, nothing is ever overwritten.
package classify

import (
	"sort"

	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

// Classification is the rule engine output for one item.
type Classification struct {
	ItemID string
	// Path is the union of the full taxonomy paths of every matched code,
	// deduplicated and sorted for determinism.
	Path []string
	// Flags holds every flag whose matching rule fired, always true.
	Flags map[string]bool
}

// Engine applies active rules to items. Safe for concurrent Classify calls;
// the dead-rule stats are guarded internally.
type Engine struct {
	rules  []rules.Rule
	forest *taxonomy.Forest
	stats  *stats
}

// NewEngine creates an engine over the active subset of the given rules,
// ordered by priority (lower first) for stable audit output.
func NewEngine(all []rules.Rule, forest *taxonomy.Forest) *Engine {
	active := make([]rules.Rule, 0, len(all))
	for _, r := range all {
		if r.Active() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority() < active[j].Priority()
	})
	return &Engine{
		rules:  active,
		forest: forest,
		stats:  newStats(active),
	}
}

// Rules returns the active rules in priority order.
func (e *Engine) Rules() []rules.Rule { return e.rules }

// Classify evaluates every active rule against the item and unions the
// outputs. Items matching no rule get an empty path and no flags.
func (e *Engine) Classify(item catalog.Item) Classification {
	codes := map[string]bool{}
	flags := map[string]bool{}

	for _, r := range e.rules {
		if !r.Condition().Matches(item) {
			continue
		}
		e.stats.recordFired(r.Name())
		if code := r.TaxonomyCode(); code != "" {
			codes[code] = true
		}
		if flag := r.Flag(); flag != "" {
			flags[flag] = true
		}
	}
	e.stats.recordItem(item)

	return Classification{
		ItemID: item.ID(),
		Path:   e.expandPath(codes),
		Flags:  flags,
	}
}

// expandPath turns assigned codes into the union of their full ancestor
// paths. Codes unknown to the taxonomy are dropped (and show up in the
// dead-rule report as unknown codes).
func (e *Engine) expandPath(codes map[string]bool) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := map[string]bool{}
	for code := range codes {
		node, ok := e.forest.Node(code)
		if !ok {
			e.stats.recordUnknownCode(code)
			continue
		}
		for _, ancestor := range node.Path() {
			seen[ancestor] = true
		}
	}
	path := make([]string, 0, len(seen))
	for code := range seen {
		path = append(path, code)
	}
	sort.Strings(path)
	return path
}

// Contribution is one rule's share of an item's classification, for audit.
type Contribution struct {
	RuleName     string
	Priority     int
	TaxonomyCode string
	Flag         string
}

// Explain returns the matching rules for an item in priority order. Used to
// audit why an item landed where it did; the outputs themselves are a union,
// so every listed rule genuinely contributed.
func (e *Engine) Explain(item catalog.Item) []Contribution {
	var out []Contribution
	for _, r := range e.rules {
		if r.Condition().Matches(item) {
			out = append(out, Contribution{
				RuleName:     r.Name(),
				Priority:     r.Priority(),
				TaxonomyCode: r.TaxonomyCode(),
				Flag:         r.Flag(),
			})
		}
	}
	return out
}

// Report returns the dead-rule report accumulated since engine creation.
func (e *Engine) Report() Report { return e.stats.report(e.rules) }

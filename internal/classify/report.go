package classify

import (
	"sort"
	"sync"

	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
)

// RuleStatus is one rule's line in the dead-rule report.
type RuleStatus struct {
	Name     string
	Priority int
	Fired    int
	// AttrKeyMissing is true for attribute rules whose key never appeared
	// anywhere in the dataset; such rules can never fire.
	AttrKeyMissing bool
}

// Report lists rules that never fired and attribute keys absent from the
// dataset. Informational only: a dead rule never fails a build.
type Report struct {
	Rules        []RuleStatus
	UnknownCodes []string
	ItemsSeen    int
}

// DeadRules returns the rules that never fired.
func (r Report) DeadRules() []RuleStatus {
	var out []RuleStatus
	for _, s := range r.Rules {
		if s.Fired == 0 {
			out = append(out, s)
		}
	}
	return out
}

type stats struct {
	mu           sync.Mutex
	fired        map[string]int
	seenAttrKeys map[string]bool
	unknownCodes map[string]bool
	items        int
}

func newStats(active []rules.Rule) *stats {
	s := &stats{
		fired:        make(map[string]int, len(active)),
		seenAttrKeys: map[string]bool{},
		unknownCodes: map[string]bool{},
	}
	for _, r := range active {
		s.fired[r.Name()] = 0
	}
	return s
}

func (s *stats) recordFired(ruleName string) {
	s.mu.Lock()
	s.fired[ruleName]++
	s.mu.Unlock()
}

func (s *stats) recordItem(item catalog.Item) {
	s.mu.Lock()
	s.items++
	for _, a := range item.Attributes() {
		s.seenAttrKeys[a.Key()] = true
	}
	s.mu.Unlock()
}

func (s *stats) recordUnknownCode(code string) {
	s.mu.Lock()
	s.unknownCodes[code] = true
	s.mu.Unlock()
}

func (s *stats) report(active []rules.Rule) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]RuleStatus, 0, len(active))
	for _, r := range active {
		status := RuleStatus{
			Name:     r.Name(),
			Priority: r.Priority(),
			Fired:    s.fired[r.Name()],
		}
		if key := r.Condition().AttrKey(); key != "" {
			status.AttrKeyMissing = !s.seenAttrKeys[key]
		}
		statuses = append(statuses, status)
	}

	codes := make([]string, 0, len(s.unknownCodes))
	for c := range s.unknownCodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	return Report{Rules: statuses, UnknownCodes: codes, ItemsSeen: s.items}
}

package facets

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain/query"
)

// memoKey builds a canonical string for the request's filter shape. Requests
// that differ only in map iteration order or pagination produce the same key.
func memoKey(generationID string, req query.Request) string {
	var b strings.Builder
	b.WriteString(generationID)
	b.WriteString("|t=")
	b.WriteString(req.Text())

	writeSorted := func(prefix string, values []string) {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		b.WriteString(prefix)
		b.WriteString(strings.Join(sorted, ","))
	}
	writeSorted("|tax=", req.TaxonomyCodes())
	writeSorted("|sup=", req.Suppliers())

	flagKeys := make([]string, 0, len(req.Flags()))
	for k := range req.Flags() {
		flagKeys = append(flagKeys, k)
	}
	sort.Strings(flagKeys)
	b.WriteString("|flags=")
	for _, k := range flagKeys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatBool(req.Flags()[k]))
		b.WriteByte(';')
	}

	catKeys := make([]string, 0, len(req.Categorical()))
	for k := range req.Categorical() {
		catKeys = append(catKeys, k)
	}
	sort.Strings(catKeys)
	b.WriteString("|cats=")
	for _, k := range catKeys {
		vals := append([]string(nil), req.Categorical()[k]...)
		sort.Strings(vals)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte(';')
	}

	rangeKeys := make([]string, 0, len(req.Ranges()))
	for k := range req.Ranges() {
		rangeKeys = append(rangeKeys, k)
	}
	sort.Strings(rangeKeys)
	b.WriteString("|ranges=")
	for _, k := range rangeKeys {
		rf := req.Ranges()[k]
		b.WriteString(k)
		b.WriteByte('=')
		if rf.Min != nil {
			b.WriteString(strconv.FormatFloat(*rf.Min, 'f', -1, 64))
		}
		b.WriteByte(':')
		if rf.Max != nil {
			b.WriteString(strconv.FormatFloat(*rf.Max, 'f', -1, 64))
		}
		b.WriteByte(';')
	}

	return b.String()
}

package index

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/facetdex/internal/domain/query"
)

// SupplierCounts aggregates supplier counts over the given row set.
func (g *Generation) SupplierCounts(set *roaring.Bitmap) []query.ValueCount {
	return countPostings(g.suppliers, set, 0)
}

// CategoricalCounts aggregates value counts for one categorical key over the
// given row set, top N by count (0 = all), ties broken by value ascending.
func (g *Generation) CategoricalCounts(key string, set *roaring.Bitmap, topN int) []query.ValueCount {
	vals, ok := g.cats[key]
	if !ok {
		return nil
	}
	return countPostings(vals, set, topN)
}

// BoolCounts counts flag true/false over the given row set. Rows without the
// flag count as false.
func (g *Generation) BoolCounts(flag string, set *roaring.Bitmap) query.BoolCount {
	total := int(set.GetCardinality())
	trueCount := 0
	if bm := g.flags[flag]; bm != nil {
		trueCount = int(roaring.And(bm, set).GetCardinality())
	}
	return query.BoolCount{True: trueCount, False: total - trueCount}
}

// RangeStatsFor computes min/max/count of one numeric column over the given
// row set. ok is false when no row in the set carries a value.
func (g *Generation) RangeStatsFor(key string, set *roaring.Bitmap) (query.RangeStats, bool) {
	col, exists := g.ranges[key]
	if !exists {
		return query.RangeStats{}, false
	}
	members := roaring.And(col.present, set)
	if members.IsEmpty() {
		return query.RangeStats{}, false
	}

	stats := query.RangeStats{Min: math.MaxFloat64, Max: -math.MaxFloat64}
	it := members.Iterator()
	for it.HasNext() {
		v := col.values[it.Next()]
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		stats.Count++
	}
	return stats, true
}

func countPostings(postings map[string]*roaring.Bitmap, set *roaring.Bitmap, topN int) []query.ValueCount {
	out := make([]query.ValueCount, 0, len(postings))
	for value, bm := range postings {
		n := int(roaring.And(bm, set).GetCardinality())
		if n > 0 {
			out = append(out, query.ValueCount{Value: value, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

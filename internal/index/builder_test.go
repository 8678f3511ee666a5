package index

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

// --- Mocks ---

type memSource struct {
	items    []catalog.Item
	failNext int // number of upcoming IterateItems calls to fail
}

func (m *memSource) IterateItems(ctx context.Context, fn func(catalog.Item) error) error {
	if m.failNext > 0 {
		m.failNext--
		return errors.New("store connection reset")
	}
	for _, it := range m.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSource) Count(context.Context) (int, error) { return len(m.items), nil }
func (m *memSource) Ping(context.Context) error         { return nil }
func (m *memSource) Close() error                       { return nil }

// --- Fixture ---

func fixtureForest(t *testing.T) *taxonomy.Forest {
	t.Helper()
	f, err := taxonomy.BuildForest([]taxonomy.NodeSpec{
		{Code: "lighting", Name: "Lighting", DisplayOrder: 1, Active: true, FastColumn: true},
		{Code: "indoor", ParentCode: "lighting", Name: "Indoor", DisplayOrder: 1, Active: true},
		{Code: "cables", Name: "Cables", DisplayOrder: 2, Active: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func fixtureRules(t *testing.T) []rules.Rule {
	t.Helper()
	mk := func(name string, prio int, code, flag string, cond rules.Condition) rules.Rule {
		r, err := rules.New(name, prio, code, flag, true, cond)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}
	return []rules.Rule{
		mk("lighting-by-group", 10, "lighting", "", rules.GroupCodes("L100")),
		mk("indoor-by-class", 20, "indoor", "", rules.ClassCodes("LI01")),
		mk("dimmable-flag", 30, "", "dimmable", rules.AttributeEquals("dimmable", "true")),
	}
}

func fixtureDefs(t *testing.T) []filterdef.Definition {
	t.Helper()
	mk := func(key string, kind filterdef.Kind, attrKey string, codes []string, order int) filterdef.Definition {
		d, err := filterdef.New(key, kind, "", attrKey, "", codes, order, true)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	return []filterdef.Definition{
		mk("dimmable", filterdef.Boolean, "", nil, 1),
		mk("color", filterdef.Categorical, "color", nil, 2),
		mk("power_w", filterdef.Range, "power_w", []string{"lighting"}, 3),
	}
}

func fixtureItems() []catalog.Item {
	return []catalog.Item{
		catalog.New("i1", "A-100", "LED panel", "flat LED panel", "acme", "L100", "LI01", "Panels", 30, "img/a100", []catalog.Attribute{
			catalog.NewAttribute("color", catalog.Text("white"), ""),
			catalog.NewAttribute("power_w", catalog.Number(20), "W"),
			catalog.NewAttribute("dimmable", catalog.Bool(true), ""),
		}),
		catalog.New("i2", "A-200", "Floodlight", "outdoor floodlight", "acme", "L100", "", "", 80, "", []catalog.Attribute{
			catalog.NewAttribute("color", catalog.Text("black"), ""),
			catalog.NewAttribute("power_w", catalog.Number(60), "W"),
		}),
		catalog.New("i3", "B-100", "Junction box", "", "bolt", "X900", "", "", 5, "", nil),
	}
}

func buildFixtureGeneration(t *testing.T) *Generation {
	t.Helper()
	forest := fixtureForest(t)
	b := NewBuilder("gen-1", &memSource{items: fixtureItems()},
		classify.NewEngine(fixtureRules(t), forest), forest, fixtureDefs(t),
		BuilderConfig{BatchSize: 2, Workers: 2}, zap.NewNop())
	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	gen, err := b.Generation()
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	return gen
}

// --- Tests ---

func TestBuilder_FullPipeline(t *testing.T) {
	gen := buildFixtureGeneration(t)

	if gen.Len() != 3 {
		t.Fatalf("len = %d, want 3", gen.Len())
	}

	lighting, fast := gen.TaxonomyPosting("lighting")
	if !fast {
		t.Error("lighting should use its fast column")
	}
	if got := lighting.GetCardinality(); got != 2 {
		t.Errorf("lighting cardinality = %d, want 2", got)
	}

	indoor, fast := gen.TaxonomyPosting("indoor")
	if fast {
		t.Error("indoor has no fast column")
	}
	if got := indoor.GetCardinality(); got != 1 {
		t.Errorf("indoor cardinality = %d, want 1", got)
	}

	if bm := gen.FlagPosting("dimmable"); bm == nil || bm.GetCardinality() != 1 {
		t.Errorf("dimmable flag posting = %v, want one row", bm)
	}
	if bm := gen.SupplierPosting("acme"); bm == nil || bm.GetCardinality() != 2 {
		t.Errorf("acme supplier posting = %v, want two rows", bm)
	}
	if bm := gen.CategoricalPosting("color", "white"); bm == nil || bm.GetCardinality() != 1 {
		t.Errorf("color=white posting = %v, want one row", bm)
	}

	col, ok := gen.Range("power_w")
	if !ok {
		t.Fatal("power_w column missing")
	}
	if got := col.Present().GetCardinality(); got != 2 {
		t.Errorf("power_w presence = %d, want 2", got)
	}

	row, ok := gen.RowByItemID("i1")
	if !ok {
		t.Fatal("row i1 missing")
	}
	if row.Code != "A-100" || row.Supplier != "acme" || row.Price != 30 {
		t.Errorf("row i1 not fully projected: %+v", row)
	}
	if row.NormText == "" {
		t.Error("row i1 has no normalized text")
	}

	if bm := gen.TokenPosting("floodlight"); bm == nil || bm.GetCardinality() != 1 {
		t.Errorf("token 'floodlight' posting = %v, want one row", bm)
	}

	node, ok := gen.Forest().Node("lighting")
	if !ok {
		t.Fatal("lighting node missing from generation forest")
	}
	if node.ItemCount() != 2 {
		t.Errorf("lighting item count = %d, want 2", node.ItemCount())
	}
}

func TestBuilder_PriceOrder(t *testing.T) {
	gen := buildFixtureGeneration(t)

	order := gen.Order(query.SortPriceAsc)
	if len(order) != 3 {
		t.Fatalf("order len = %d, want 3", len(order))
	}
	prev := -1.0
	for _, id := range order {
		p := gen.Row(id).Price
		if p < prev {
			t.Fatalf("price order not ascending: %v after %v", p, prev)
		}
		prev = p
	}
}

func TestBuilder_FacetCache(t *testing.T) {
	gen := buildFixtureGeneration(t)

	entry, ok := gen.CacheEntry("lighting")
	if !ok {
		t.Fatal("lighting cache entry missing")
	}
	if entry.TotalCount != 2 {
		t.Errorf("total count = %d, want 2", entry.TotalCount)
	}
	if len(entry.Suppliers) != 1 || entry.Suppliers[0].Value != "acme" || entry.Suppliers[0].Count != 2 {
		t.Errorf("suppliers = %+v", entry.Suppliers)
	}
	if got := entry.Bools["dimmable"]; got.True != 1 || got.False != 1 {
		t.Errorf("dimmable counts = %+v", got)
	}
	if got := entry.Ranges["power_w"]; got.Min != 20 || got.Max != 60 || got.Count != 2 {
		t.Errorf("power_w stats = %+v", got)
	}

	// The power_w filter is scoped to lighting, so the cables entry is
	// never built with it even if cables rows carried the attribute.
	if entry, ok := gen.CacheEntry("cables"); ok {
		if _, scoped := entry.Ranges["power_w"]; scoped {
			t.Error("power_w leaked into cables cache entry")
		}
	}
}

func TestBuilder_PhaseOrderEnforced(t *testing.T) {
	forest := fixtureForest(t)
	b := NewBuilder("gen-1", &memSource{items: fixtureItems()},
		classify.NewEngine(fixtureRules(t), forest), forest, fixtureDefs(t),
		BuilderConfig{}, zap.NewNop())

	if err := b.Run(context.Background(), PhaseProject); err == nil {
		t.Fatal("project before classify should fail")
	}
	if _, err := b.Generation(); err == nil {
		t.Fatal("generation before completion should fail")
	}
}

func TestBuilder_PhaseRetryAfterFailure(t *testing.T) {
	forest := fixtureForest(t)
	src := &memSource{items: fixtureItems(), failNext: 1}
	b := NewBuilder("gen-1", src,
		classify.NewEngine(fixtureRules(t), forest), forest, fixtureDefs(t),
		BuilderConfig{}, zap.NewNop())

	ctx := context.Background()
	if err := b.Run(ctx, PhaseClassify); err == nil {
		t.Fatal("expected first classify attempt to fail")
	}
	if err := b.Run(ctx, PhaseClassify); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if err := b.Run(ctx, PhaseProject); err != nil {
		t.Fatalf("project: %v", err)
	}
	if err := b.Run(ctx, PhaseAggregate); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	gen, err := b.Generation()
	if err != nil {
		t.Fatal(err)
	}
	if gen.Len() != 3 {
		t.Errorf("len after retry = %d, want 3", gen.Len())
	}
}

func TestBuilder_DuplicateItemIDSkipped(t *testing.T) {
	items := fixtureItems()
	items = append(items, catalog.New("i1", "A-100-DUP", "Duplicate", "", "acme", "L100", "", "", 1, "", nil))

	forest := fixtureForest(t)
	b := NewBuilder("gen-1", &memSource{items: items},
		classify.NewEngine(fixtureRules(t), forest), forest, fixtureDefs(t),
		BuilderConfig{}, zap.NewNop())
	if err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	gen, err := b.Generation()
	if err != nil {
		t.Fatal(err)
	}

	if gen.Len() != 3 {
		t.Errorf("len = %d, want 3 (duplicate dropped)", gen.Len())
	}
	row, _ := gen.RowByItemID("i1")
	if row.Code != "A-100" {
		t.Errorf("first occurrence should win, got code %q", row.Code)
	}
}

func TestBuilder_CanceledContext(t *testing.T) {
	forest := fixtureForest(t)
	b := NewBuilder("gen-1", &memSource{items: fixtureItems()},
		classify.NewEngine(fixtureRules(t), forest), forest, fixtureDefs(t),
		BuilderConfig{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Build(ctx); err == nil {
		t.Fatal("expected build to fail on canceled context")
	}
}

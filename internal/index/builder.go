package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/query"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/source"
)

// Rebuild phase names, in execution order.
const (
	PhaseClassify  = "classify"
	PhaseProject   = "project"
	PhaseAggregate = "aggregate"
)

// Phases lists the rebuild phases in order.
var Phases = []string{PhaseClassify, PhaseProject, PhaseAggregate}

// BuilderConfig tunes the rebuild pipeline.
type BuilderConfig struct {
	BatchSize int // items held in memory per streaming batch
	Workers   int // concurrent classifiers per batch
	FacetTopN int // categorical values kept per facet cache entry
}

func (c *BuilderConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 2000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.FacetTopN <= 0 {
		c.FacetTopN = 50
	}
}

// Builder assembles one new generation in three isolated, individually
// retryable phases. Each phase streams the source in batches so the working
// set beyond the index itself stays bounded.
type Builder struct {
	src    source.Source
	engine *classify.Engine
	forest *taxonomy.Forest
	defs   []filterdef.Definition
	cfg    BuilderConfig
	logger *zap.Logger

	gen       *Generation
	completed map[string]bool
}

// NewBuilder creates a builder for one rebuild attempt. defs may include
// inactive definitions; only active ones are projected.
func NewBuilder(
	id string,
	src source.Source,
	engine *classify.Engine,
	forest *taxonomy.Forest,
	defs []filterdef.Definition,
	cfg BuilderConfig,
	logger *zap.Logger,
) *Builder {
	cfg.applyDefaults()

	active := make([]filterdef.Definition, 0, len(defs))
	for _, d := range defs {
		if d.Active() {
			active = append(active, d)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DisplayOrder() < active[j].DisplayOrder()
	})

	return &Builder{
		src:    src,
		engine: engine,
		forest: forest,
		defs:   active,
		cfg:    cfg,
		logger: logger,
		gen: &Generation{
			id:        id,
			byItemID:  map[string]uint32{},
			taxonomy:  map[string]*roaring.Bitmap{},
			fastCols:  map[string]*roaring.Bitmap{},
			flags:     map[string]*roaring.Bitmap{},
			suppliers: map[string]*roaring.Bitmap{},
			cats:      map[string]map[string]*roaring.Bitmap{},
			ranges:    map[string]RangeColumn{},
			tokens:    map[string]*roaring.Bitmap{},
			orders:    map[query.Sort][]uint32{},
			defs:      active,
		},
		completed: map[string]bool{},
	}
}

// Run executes one phase by name. Phases must run in order; a failed phase
// may be retried without touching the others.
func (b *Builder) Run(ctx context.Context, phase string) error {
	switch phase {
	case PhaseClassify:
		return b.runClassify(ctx)
	case PhaseProject:
		if !b.completed[PhaseClassify] {
			return domain.NewRebuildPhaseError(phase, "", fmt.Errorf("classify phase has not completed"))
		}
		return b.runProject(ctx)
	case PhaseAggregate:
		if !b.completed[PhaseProject] {
			return domain.NewRebuildPhaseError(phase, "", fmt.Errorf("project phase has not completed"))
		}
		return b.runAggregate(ctx)
	default:
		return domain.NewRebuildPhaseError(phase, "", fmt.Errorf("unknown phase"))
	}
}

// Build runs all phases in order.
func (b *Builder) Build(ctx context.Context) error {
	for _, phase := range Phases {
		if err := b.Run(ctx, phase); err != nil {
			return err
		}
	}
	return nil
}

// Generation returns the built generation. It is only valid after every
// phase has completed; partial builds are never published.
func (b *Builder) Generation() (*Generation, error) {
	for _, phase := range Phases {
		if !b.completed[phase] {
			return nil, fmt.Errorf("phase %s has not completed", phase)
		}
	}
	return b.gen, nil
}

// runClassify streams items through the rule engine and writes
// (item, taxonomy path, flags) into the new generation.
func (b *Builder) runClassify(ctx context.Context) error {
	// Retry support: discard any partial output of a failed attempt.
	b.gen.rows = nil
	b.gen.byItemID = map[string]uint32{}
	b.gen.taxonomy = map[string]*roaring.Bitmap{}
	b.gen.fastCols = map[string]*roaring.Bitmap{}
	b.gen.flags = map[string]*roaring.Bitmap{}

	batch := make([]catalog.Item, 0, b.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		results := make([]classify.Classification, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.cfg.Workers)
		for i := range batch {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = b.engine.Classify(batch[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, item := range batch {
			if _, dup := b.gen.byItemID[item.ID()]; dup {
				b.logger.Warn("duplicate item id skipped", zap.String("item_id", item.ID()))
				continue
			}
			row := uint32(len(b.gen.rows))
			b.gen.byItemID[item.ID()] = row
			b.gen.rows = append(b.gen.rows, Row{ItemID: item.ID(), Path: results[i].Path})

			for _, code := range results[i].Path {
				addPosting(b.gen.taxonomy, code, row)
				if node, ok := b.forest.Node(code); ok && node.FastColumn() {
					addPosting(b.gen.fastCols, code, row)
				}
			}
			for flag := range results[i].Flags {
				addPosting(b.gen.flags, flag, row)
			}
		}
		batch = batch[:0]
		return nil
	}

	err := b.src.IterateItems(ctx, func(item catalog.Item) error {
		batch = append(batch, item)
		if len(batch) >= b.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return domain.NewRebuildPhaseError(PhaseClassify, "", err)
	}

	b.completed[PhaseClassify] = true
	b.logger.Info("classify phase complete",
		zap.Int("items", len(b.gen.rows)),
		zap.Int("taxonomy_codes", len(b.gen.taxonomy)),
		zap.Int("flags", len(b.gen.flags)),
	)
	return nil
}

// runProject streams the source a second time and extracts every active
// filter definition's bound attribute into a first-class column, replacing
// the sparse per-attribute layout with the wide row.
func (b *Builder) runProject(ctx context.Context) error {
	n := len(b.gen.rows)
	b.gen.suppliers = map[string]*roaring.Bitmap{}
	b.gen.cats = map[string]map[string]*roaring.Bitmap{}
	b.gen.tokens = map[string]*roaring.Bitmap{}
	b.gen.ranges = map[string]RangeColumn{}
	for _, d := range b.defs {
		switch d.Kind() {
		case filterdef.Categorical:
			b.gen.cats[d.Key()] = map[string]*roaring.Bitmap{}
		case filterdef.Range:
			b.gen.ranges[d.Key()] = RangeColumn{
				values:  make([]float64, n),
				present: roaring.New(),
			}
		}
	}

	skipped := 0
	err := b.src.IterateItems(ctx, func(item catalog.Item) error {
		row, ok := b.gen.byItemID[item.ID()]
		if !ok {
			// Source drifted between passes; the item joins the next rebuild.
			skipped++
			return nil
		}
		b.projectItem(row, item)
		return nil
	})
	if err != nil {
		return domain.NewRebuildPhaseError(PhaseProject, "", err)
	}
	if skipped > 0 {
		b.logger.Warn("items not seen by classify pass skipped", zap.Int("count", skipped))
	}

	b.completed[PhaseProject] = true
	b.logger.Info("project phase complete",
		zap.Int("filters", len(b.defs)),
		zap.Int("tokens", len(b.gen.tokens)),
	)
	return nil
}

func (b *Builder) projectItem(row uint32, item catalog.Item) {
	r := &b.gen.rows[row]
	r.Code = item.Code()
	r.ShortDesc = item.ShortDesc()
	r.Supplier = item.Supplier()
	r.ClassName = item.ClassName()
	r.Price = item.Price()
	r.ImageRef = item.ImageRef()
	r.NormText = NormalizeText(item.Code(), item.ShortDesc(), item.LongDesc())

	if item.Supplier() != "" {
		addPosting(b.gen.suppliers, item.Supplier(), row)
	}
	for _, tok := range Tokenize(item.Code(), item.ShortDesc(), item.LongDesc()) {
		addPosting(b.gen.tokens, tok, row)
	}

	for _, d := range b.defs {
		switch d.Kind() {
		case filterdef.Boolean:
			// Flag-backed booleans were written by the classify pass.
			if d.AttributeKey() == "" {
				continue
			}
			if v, ok := item.Attribute(d.AttributeKey()); ok {
				if bv, isBool := v.AsBool(); isBool && bv {
					addPosting(b.gen.flags, d.Key(), row)
				}
			}
		case filterdef.Categorical:
			if v, ok := item.Attribute(d.AttributeKey()); ok {
				if s := v.AsText(); s != "" {
					addPosting(b.gen.cats[d.Key()], s, row)
				}
			}
		case filterdef.Range:
			if v, ok := item.Attribute(d.AttributeKey()); ok {
				if n, isNum := v.AsNumber(); isNum {
					col := b.gen.ranges[d.Key()]
					col.values[row] = n
					col.present.Add(row)
					b.gen.ranges[d.Key()] = col
				}
			}
		}
	}
}

// runAggregate derives taxonomy counts, sort orders, the token vocabulary
// and the facet cache from the now-complete generation.
func (b *Builder) runAggregate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.NewRebuildPhaseError(PhaseAggregate, "", err)
	}

	counts := make(map[string]int, len(b.gen.taxonomy))
	for code, bm := range b.gen.taxonomy {
		counts[code] = int(bm.GetCardinality())
	}
	b.gen.forest = b.forest.WithCounts(counts)

	b.gen.rebuildDerived()
	b.buildFacetCache()

	b.gen.report = b.engine.Report()
	b.gen.builtAt = time.Now().UTC()
	b.completed[PhaseAggregate] = true
	b.logger.Info("aggregate phase complete",
		zap.Int("facet_cache_entries", len(b.gen.facetCache)),
	)
	return nil
}

func (b *Builder) buildFacetCache() {
	b.gen.facetCache = make(map[string]FacetCacheEntry, len(b.gen.taxonomy))
	for _, node := range b.gen.forest.Active() {
		members := b.gen.taxonomy[node.Code()]
		if members == nil {
			continue
		}

		entry := FacetCacheEntry{
			Code:        node.Code(),
			TotalCount:  int(members.GetCardinality()),
			Suppliers:   b.gen.SupplierCounts(members),
			Categorical: map[string][]query.ValueCount{},
			Bools:       map[string]query.BoolCount{},
			Ranges:      map[string]query.RangeStats{},
		}
		for _, d := range b.defs {
			if !d.AppliesTo([]string{node.Code()}) {
				continue
			}
			switch d.Kind() {
			case filterdef.Boolean:
				entry.Bools[d.Key()] = b.gen.BoolCounts(d.Key(), members)
			case filterdef.Categorical:
				entry.Categorical[d.Key()] = b.gen.CategoricalCounts(d.Key(), members, b.cfg.FacetTopN)
			case filterdef.Range:
				if stats, ok := b.gen.RangeStatsFor(d.Key(), members); ok {
					entry.Ranges[d.Key()] = stats
				}
			}
		}
		b.gen.facetCache[node.Code()] = entry
	}
}

func addPosting(postings map[string]*roaring.Bitmap, key string, row uint32) {
	bm, ok := postings[key]
	if !ok {
		bm = roaring.New()
		postings[key] = bm
	}
	bm.Add(row)
}


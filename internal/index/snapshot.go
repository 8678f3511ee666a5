package index

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
)

const snapshotVersion = 1

// Posting kinds in the snapshot stream.
const (
	postTaxonomy = "taxonomy"
	postFast     = "fast"
	postFlag     = "flag"
	postSupplier = "supplier"
	postCat      = "cat"
	postToken    = "token"
)

type snapshotHeader struct {
	Version int       `json:"version"`
	ID      string    `json:"id"`
	BuiltAt time.Time `json:"built_at"`
	Items   int       `json:"items"`
}

type nodeDTO struct {
	Code         string   `json:"code"`
	ParentCode   string   `json:"parent_code,omitempty"`
	Level        int      `json:"level"`
	Name         string   `json:"name"`
	DisplayOrder int      `json:"display_order"`
	Active       bool     `json:"active"`
	Path         []string `json:"path"`
	ItemCount    int      `json:"item_count"`
	FastColumn   bool     `json:"fast_column,omitempty"`
}

type defDTO struct {
	Key           string   `json:"key"`
	Kind          string   `json:"kind"`
	Label         string   `json:"label"`
	AttributeKey  string   `json:"attribute_key,omitempty"`
	UnitHint      string   `json:"unit_hint,omitempty"`
	TaxonomyCodes []string `json:"taxonomy_codes,omitempty"`
	DisplayOrder  int      `json:"display_order"`
	Active        bool     `json:"active"`
}

type snapshotMeta struct {
	Nodes  []nodeDTO       `json:"nodes"`
	Defs   []defDTO        `json:"defs"`
	Report classify.Report `json:"report"`
}

type postingDTO struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Bitmap []byte `json:"bitmap"`
}

type rangeDTO struct {
	Key     string    `json:"key"`
	Values  []float64 `json:"values"`
	Present []byte    `json:"present"`
}

// snapRecord is one record of the zstd-compressed JSON stream. Exactly one
// field is set per record.
type snapRecord struct {
	Header  *snapshotHeader  `json:"header,omitempty"`
	Meta    *snapshotMeta    `json:"meta,omitempty"`
	Row     *Row             `json:"row,omitempty"`
	Posting *postingDTO      `json:"posting,omitempty"`
	Range   *rangeDTO        `json:"range,omitempty"`
	Cache   *FacetCacheEntry `json:"cache,omitempty"`
}

// Save writes the generation as a zstd-compressed JSON record stream.
// Operational tooling only; a generation is normally rebuilt from source.
func Save(w io.Writer, g *Generation) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)

	emit := func(rec snapRecord) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode snapshot record: %w", err)
		}
		return nil
	}

	if err := emit(snapRecord{Header: &snapshotHeader{
		Version: snapshotVersion,
		ID:      g.id,
		BuiltAt: g.builtAt,
		Items:   len(g.rows),
	}}); err != nil {
		return err
	}

	meta := snapshotMeta{Report: g.report}
	for _, n := range g.forest.Nodes() {
		meta.Nodes = append(meta.Nodes, nodeDTO{
			Code:         n.Code(),
			ParentCode:   n.ParentCode(),
			Level:        n.Level(),
			Name:         n.Name(),
			DisplayOrder: n.DisplayOrder(),
			Active:       n.Active(),
			Path:         n.Path(),
			ItemCount:    n.ItemCount(),
			FastColumn:   n.FastColumn(),
		})
	}
	for _, d := range g.defs {
		meta.Defs = append(meta.Defs, defDTO{
			Key:           d.Key(),
			Kind:          string(d.Kind()),
			Label:         d.Label(),
			AttributeKey:  d.AttributeKey(),
			UnitHint:      d.UnitHint(),
			TaxonomyCodes: d.TaxonomyCodes(),
			DisplayOrder:  d.DisplayOrder(),
			Active:        d.Active(),
		})
	}
	if err := emit(snapRecord{Meta: &meta}); err != nil {
		return err
	}

	for i := range g.rows {
		if err := emit(snapRecord{Row: &g.rows[i]}); err != nil {
			return err
		}
	}

	postingSets := []struct {
		kind     string
		postings map[string]*roaring.Bitmap
	}{
		{postTaxonomy, g.taxonomy},
		{postFast, g.fastCols},
		{postFlag, g.flags},
		{postSupplier, g.suppliers},
		{postToken, g.tokens},
	}
	for _, set := range postingSets {
		for key, bm := range set.postings {
			data, err := bm.MarshalBinary()
			if err != nil {
				return fmt.Errorf("marshal %s posting %q: %w", set.kind, key, err)
			}
			if err := emit(snapRecord{Posting: &postingDTO{Kind: set.kind, Key: key, Bitmap: data}}); err != nil {
				return err
			}
		}
	}
	for key, vals := range g.cats {
		for value, bm := range vals {
			data, err := bm.MarshalBinary()
			if err != nil {
				return fmt.Errorf("marshal cat posting %q=%q: %w", key, value, err)
			}
			if err := emit(snapRecord{Posting: &postingDTO{Kind: postCat, Key: key, Value: value, Bitmap: data}}); err != nil {
				return err
			}
		}
	}

	for key, col := range g.ranges {
		data, err := col.present.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal range presence %q: %w", key, err)
		}
		if err := emit(snapRecord{Range: &rangeDTO{Key: key, Values: col.values, Present: data}}); err != nil {
			return err
		}
	}

	for code := range g.facetCache {
		entry := g.facetCache[code]
		if err := emit(snapRecord{Cache: &entry}); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// Load reads a snapshot stream back into a generation.
func Load(r io.Reader) (*Generation, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)

	g := &Generation{
		byItemID:   map[string]uint32{},
		taxonomy:   map[string]*roaring.Bitmap{},
		fastCols:   map[string]*roaring.Bitmap{},
		flags:      map[string]*roaring.Bitmap{},
		suppliers:  map[string]*roaring.Bitmap{},
		cats:       map[string]map[string]*roaring.Bitmap{},
		ranges:     map[string]RangeColumn{},
		tokens:     map[string]*roaring.Bitmap{},
		facetCache: map[string]FacetCacheEntry{},
	}

	for {
		var rec snapRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode snapshot record: %w", err)
		}

		switch {
		case rec.Header != nil:
			if rec.Header.Version != snapshotVersion {
				return nil, fmt.Errorf("unsupported snapshot version %d", rec.Header.Version)
			}
			g.id = rec.Header.ID
			g.builtAt = rec.Header.BuiltAt

		case rec.Meta != nil:
			nodes := make([]taxonomy.Node, 0, len(rec.Meta.Nodes))
			for _, n := range rec.Meta.Nodes {
				nodes = append(nodes, taxonomy.Reconstruct(
					n.Code, n.ParentCode, n.Level, n.Name,
					n.DisplayOrder, n.Active, n.Path, n.ItemCount, n.FastColumn,
				))
			}
			g.forest = taxonomy.ReconstructForest(nodes)
			for _, d := range rec.Meta.Defs {
				g.defs = append(g.defs, filterdef.Reconstruct(
					d.Key, filterdef.Kind(d.Kind), d.Label, d.AttributeKey,
					d.UnitHint, d.TaxonomyCodes, d.DisplayOrder, d.Active,
				))
			}
			g.report = rec.Meta.Report

		case rec.Row != nil:
			g.byItemID[rec.Row.ItemID] = uint32(len(g.rows))
			g.rows = append(g.rows, *rec.Row)

		case rec.Posting != nil:
			bm := roaring.New()
			if err := bm.UnmarshalBinary(rec.Posting.Bitmap); err != nil {
				return nil, fmt.Errorf("unmarshal posting %q: %w", rec.Posting.Key, err)
			}
			switch rec.Posting.Kind {
			case postTaxonomy:
				g.taxonomy[rec.Posting.Key] = bm
			case postFast:
				g.fastCols[rec.Posting.Key] = bm
			case postFlag:
				g.flags[rec.Posting.Key] = bm
			case postSupplier:
				g.suppliers[rec.Posting.Key] = bm
			case postToken:
				g.tokens[rec.Posting.Key] = bm
			case postCat:
				if g.cats[rec.Posting.Key] == nil {
					g.cats[rec.Posting.Key] = map[string]*roaring.Bitmap{}
				}
				g.cats[rec.Posting.Key][rec.Posting.Value] = bm
			default:
				return nil, fmt.Errorf("unknown posting kind %q", rec.Posting.Kind)
			}

		case rec.Range != nil:
			present := roaring.New()
			if err := present.UnmarshalBinary(rec.Range.Present); err != nil {
				return nil, fmt.Errorf("unmarshal range presence %q: %w", rec.Range.Key, err)
			}
			g.ranges[rec.Range.Key] = RangeColumn{values: rec.Range.Values, present: present}

		case rec.Cache != nil:
			g.facetCache[rec.Cache.Code] = *rec.Cache
		}
	}

	if g.forest == nil {
		return nil, fmt.Errorf("snapshot missing meta record")
	}
	g.rebuildDerived()
	return g, nil
}

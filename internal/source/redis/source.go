// Package redis reads the catalog from Redis item hashes via rueidis.
// Each item lives at <prefix>item:<id> with scalar fields plus a JSON-encoded
// attribute list.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/source"
)

const (
	scanCount = 500
	getBatch  = 200
)

// Compile-time check: Source implements source.Source.
var _ source.Source = (*Source)(nil)

// Config holds redis source settings.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Source streams catalog items stored as redis hashes.
type Source struct {
	client rueidis.Client
	prefix string
}

// New connects to the catalog redis instance.
func New(cfg Config) (*Source, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "catalog:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Source{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewWithClient wraps an existing client (tests).
func NewWithClient(client rueidis.Client, prefix string) *Source {
	return &Source{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (s *Source) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Source) Close() error {
	s.client.Close()
	return nil
}

// Count returns the catalog item count.
func (s *Source) Count(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// IterateItems scans all item keys, sorts them for a stable restartable
// order, and streams the hashes in DoMulti batches.
func (s *Source) IterateItems(ctx context.Context, fn func(catalog.Item) error) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	sort.Strings(keys)

	for start := 0; start < len(keys); start += getBatch {
		end := start + getBatch
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		cmds := make([]rueidis.Completed, len(batch))
		for i, key := range batch {
			cmds[i] = s.client.B().Hgetall().Key(key).Build()
		}
		results := s.client.DoMulti(ctx, cmds...)
		for i, res := range results {
			fields, err := res.AsStrMap()
			if err != nil {
				return fmt.Errorf("%w: hgetall %s: %w", domain.ErrSourceUnavailable, batch[i], err)
			}
			item, err := itemFromHash(fields)
			if err != nil {
				return fmt.Errorf("decode %s: %w", batch[i], err)
			}
			if err := fn(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Source) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := s.prefix + "item:*"

	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", domain.ErrSourceUnavailable, err)
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func itemFromHash(fields map[string]string) (catalog.Item, error) {
	price, err := strconv.ParseFloat(defaultStr(fields["price"], "0"), 64)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("parse price %q: %w", fields["price"], err)
	}

	rec := source.ItemRecord{
		ID:        fields["id"],
		Code:      fields["code"],
		ShortDesc: fields["short_desc"],
		LongDesc:  fields["long_desc"],
		Supplier:  fields["supplier"],
		GroupCode: fields["group_code"],
		ClassCode: fields["class_code"],
		ClassName: fields["class_name"],
		Price:     price,
		ImageRef:  fields["image_ref"],
	}
	if raw := fields["attributes"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Attributes); err != nil {
			return catalog.Item{}, fmt.Errorf("parse attributes: %w", err)
		}
	}
	return rec.ToItem()
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

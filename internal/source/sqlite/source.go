// Package sqlite reads the catalog from a SQLite database using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/source"
)

const defaultBatchSize = 1000

// Compile-time check: Source implements source.Source.
var _ source.Source = (*Source)(nil)

// Config holds sqlite source settings.
type Config struct {
	Path      string
	BatchSize int
}

// Source streams catalog items out of the items/item_attributes tables.
type Source struct {
	db        *sql.DB
	batchSize int
}

// New opens the catalog database read-only.
func New(cfg Config) (*Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Source{db: db, batchSize: cfg.BatchSize}, nil
}

// NewFromDB wraps an existing handle (tests, in-memory fixtures).
func NewFromDB(db *sql.DB, batchSize int) *Source {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Source{db: db, batchSize: batchSize}
}

// Ping checks connectivity.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Source) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close catalog db: %w", err)
	}
	return nil
}

// Count returns the catalog item count.
func (s *Source) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count items: %w", domain.ErrSourceUnavailable, err)
	}
	return n, nil
}

// IterateItems streams items in id order using keyset pagination, fetching
// attributes per batch so no unbounded result set is held at once.
func (s *Source) IterateItems(ctx context.Context, fn func(catalog.Item) error) error {
	lastID := ""
	for {
		records, err := s.fetchBatch(ctx, lastID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := s.attachAttributes(ctx, records); err != nil {
			return err
		}
		for i := range records {
			item, err := records[i].ToItem()
			if err != nil {
				return err
			}
			if err := fn(item); err != nil {
				return err
			}
		}
		lastID = records[len(records)-1].ID
	}
}

func (s *Source) fetchBatch(ctx context.Context, afterID string) ([]source.ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, short_desc, long_desc, supplier,
		       group_code, class_code, class_name, price, image_ref
		FROM items
		WHERE id > ?
		ORDER BY id
		LIMIT ?`, afterID, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: query items: %w", domain.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var out []source.ItemRecord
	for rows.Next() {
		var r source.ItemRecord
		if err := rows.Scan(
			&r.ID, &r.Code, &r.ShortDesc, &r.LongDesc, &r.Supplier,
			&r.GroupCode, &r.ClassCode, &r.ClassName, &r.Price, &r.ImageRef,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate items: %w", domain.ErrSourceUnavailable, err)
	}
	return out, nil
}

func (s *Source) attachAttributes(ctx context.Context, records []source.ItemRecord) error {
	ids := make([]any, len(records))
	byID := make(map[string]*source.ItemRecord, len(records))
	for i := range records {
		ids[i] = records[i].ID
		byID[records[i].ID] = &records[i]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, key, kind, text_value, num_value, bool_value, lo, hi, unit
		FROM item_attributes
		WHERE item_id IN (`+placeholders+`)
		ORDER BY item_id, key`, ids...)
	if err != nil {
		return fmt.Errorf("%w: query attributes: %w", domain.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID string
		var a source.AttrRecord
		var boolVal int
		if err := rows.Scan(&itemID, &a.Key, &a.Kind, &a.Text, &a.Num, &boolVal, &a.Lo, &a.Hi, &a.Unit); err != nil {
			return fmt.Errorf("scan attribute: %w", err)
		}
		a.Bool = boolVal != 0
		if rec, ok := byID[itemID]; ok {
			rec.Attributes = append(rec.Attributes, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate attributes: %w", domain.ErrSourceUnavailable, err)
	}
	return nil
}

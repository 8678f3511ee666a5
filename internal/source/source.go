// Package source adapts the external catalog's attribute store. The store is
// read-only to this system; drivers surface domain.ErrSourceUnavailable on
// connectivity failures and never retry internally.
package source

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
)

// Source streams raw catalog items. Iteration is finite and restartable:
// every IterateItems call starts from the beginning of the catalog.
type Source interface {
	// IterateItems calls fn for each item in stable order. Returning an
	// error from fn stops the iteration and is propagated unchanged.
	IterateItems(ctx context.Context, fn func(catalog.Item) error) error

	// Count returns the number of items in the catalog.
	Count(ctx context.Context) (int, error)

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the driver's resources.
	Close() error
}

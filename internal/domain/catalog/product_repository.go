package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductReader gives read access to the catalog
type ProductReader interface {
	// FindByID finds a product with all of its variants
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds several products at once, keyed by id
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
}

// InventoryLedger mutates per-variant stock counters. It must only be used
// inside a transaction.
type InventoryLedger interface {
	// Decrement takes qty units from the variant only if at least qty are
	// on hand. It returns false without changing anything otherwise.
	Decrement(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)

	// Restock puts qty units back on the variant
	Restock(ctx context.Context, variantID uuid.UUID, qty int) error

	// Available returns the current quantity on hand
	Available(ctx context.Context, variantID uuid.UUID) (int, error)
}

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
)

// NewSQLiteDatabase opens a private in-memory sqlite database with the full
// schema. It is closed when the test ends.
func NewSQLiteDatabase(t *testing.T) *persistence.Database {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 60,
		ConnMaxIdleTime: 30,
	}
	db, err := persistence.NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// VariantSeed describes one variant created by SeedProduct
type VariantSeed struct {
	Size       string
	Color      string
	Price      int64
	PromoPrice int64
	Stock      int
	Inactive   bool
}

// SeedProduct stores an active XOF product with the given variants
func SeedProduct(t *testing.T, db *persistence.Database, name string, variants ...VariantSeed) *catalog.Product {
	t.Helper()
	product := &catalog.Product{
		ID:       uuid.New(),
		Name:     name,
		Images:   []string{"front.jpg", "back.jpg"},
		Active:   true,
		Currency: valueobject.XOF,
	}
	product.Slug = fmt.Sprintf("product-%s", product.ID.String()[:8])
	for i, v := range variants {
		variant := catalog.Variant{
			ID:             uuid.New(),
			ProductID:      product.ID,
			Size:           v.Size,
			Color:          v.Color,
			SKU:            fmt.Sprintf("SKU-%s-%d", product.ID.String()[:4], i),
			UnitPrice:      decimal.NewFromInt(v.Price),
			QuantityOnHand: v.Stock,
			Active:         !v.Inactive,
		}
		if v.PromoPrice > 0 {
			promo := decimal.NewFromInt(v.PromoPrice)
			variant.PromoPrice = &promo
		}
		product.Variants = append(product.Variants, variant)
	}
	require.NoError(t, persistence.NewGormProductRepository(db.DB).Create(context.Background(), product))
	return product
}

// StockOf reads the quantity on hand of a variant
func StockOf(t *testing.T, db *persistence.Database, variantID uuid.UUID) int {
	t.Helper()
	qty, err := persistence.NewGormInventoryLedger(db.DB).Available(context.Background(), variantID)
	require.NoError(t, err)
	return qty
}

// TestAddress returns a valid shipping address
func TestAddress() valueobject.Address {
	return valueobject.Address{
		FullName:   "Awa Diop",
		Street:     "12 Rue Carnot",
		City:       "Dakar",
		PostalCode: "10200",
		Country:    "Sénégal",
		Phone:      "+221770000000",
	}
}

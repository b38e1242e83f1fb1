package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductReader using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product with its variants
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Preload("Variants").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads several products in one query. Missing ids are absent from the map.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error) {
	result := make(map[uuid.UUID]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Preload("Variants").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ID] = rows[i].ToDomain()
	}
	return result, nil
}

// Create inserts a product and its variants. The catalog is owned by another
// service; this is used by seeding and tests.
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error
}

// GormInventoryLedger implements catalog.InventoryLedger with conditional
// updates on product_variants.quantity_on_hand
type GormInventoryLedger struct {
	db *gorm.DB
}

// NewGormInventoryLedger creates a new GormInventoryLedger
func NewGormInventoryLedger(db *gorm.DB) *GormInventoryLedger {
	return &GormInventoryLedger{db: db}
}

// Decrement subtracts qty only while enough stock remains. The check and the
// write are a single statement so two buyers can never both take the last unit.
func (l *GormInventoryLedger) Decrement(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, shared.ErrInvalidInput
	}
	result := l.db.WithContext(ctx).
		Model(&models.ProductVariantModel{}).
		Where("id = ? AND quantity_on_hand >= ?", variantID, qty).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Restock adds qty back to the variant
func (l *GormInventoryLedger) Restock(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	result := l.db.WithContext(ctx).
		Model(&models.ProductVariantModel{}).
		Where("id = ?", variantID).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Available returns the quantity currently on hand
func (l *GormInventoryLedger) Available(ctx context.Context, variantID uuid.UUID) (int, error) {
	var model models.ProductVariantModel
	err := l.db.WithContext(ctx).
		Select("quantity_on_hand").
		First(&model, "id = ?", variantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return model.QuantityOnHand, nil
}

var (
	_ catalog.ProductReader   = (*GormProductRepository)(nil)
	_ catalog.InventoryLedger = (*GormInventoryLedger)(nil)
)

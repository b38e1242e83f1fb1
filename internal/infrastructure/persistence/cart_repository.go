package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCartRepository implements cart.Repository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// FindByUser returns the cart of a user
func (r *GormCartRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	var model models.CartModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save updates the cart when its version still matches, or inserts it when
// no row exists yet
func (r *GormCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	db := r.db.WithContext(ctx)
	currentVersion := c.Version

	model := models.CartModelFromDomain(c)
	model.Version = currentVersion + 1
	model.UpdatedAt = time.Now()

	result := db.Model(&models.CartModel{}).
		Where("id = ? AND version = ?", c.ID, currentVersion).
		Updates(map[string]any{
			"lines":         model.Lines,
			"promo_code":    model.PromoCode,
			"promo_percent": model.PromoPercent,
			"discount":      model.Discount,
			"currency":      model.Currency,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		c.Version = model.Version
		c.UpdatedAt = model.UpdatedAt
		return nil
	}

	var count int64
	if err := db.Model(&models.CartModel{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = currentVersion
	if err := db.Create(model).Error; err != nil {
		return err
	}
	c.UpdatedAt = model.UpdatedAt
	return nil
}

var _ cart.Repository = (*GormCartRepository)(nil)

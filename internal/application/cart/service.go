// Package cart holds the use cases behind the shopping cart endpoints.
package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Service manages the per-user cart. It never reserves stock; availability
// is only reported.
type Service struct {
	carts    cart.Repository
	products catalog.ProductReader
	promos   cart.PromoCatalog
	currency valueobject.Currency
	logger   *zap.Logger
}

// ServiceConfig holds the collaborators of the cart service
type ServiceConfig struct {
	Carts    cart.Repository
	Products catalog.ProductReader
	Promos   cart.PromoCatalog
	// Currency is used for carts created on first use
	Currency valueobject.Currency
	Logger   *zap.Logger
}

// NewService creates a new cart Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	promos := cfg.Promos
	if promos == nil {
		promos = cart.NewStaticPromoCatalog(cart.DefaultPromoCodes)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Service{
		carts:    cfg.Carts,
		products: cfg.Products,
		promos:   promos,
		currency: currency,
		logger:   logger,
	}
}

// GetCart returns the user's cart with availability annotations.
// A user without a cart gets an empty one, which is not persisted.
func (s *Service) GetCart(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, c)
}

// AddItem adds a variant to the cart, merging with an existing line
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartResponse, error) {
	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, catalog.ErrProductUnavailable(req.ProductID.String(), "")
		}
		return nil, err
	}
	if !product.Active {
		return nil, catalog.ErrProductUnavailable(product.Name, "")
	}
	variant, ok := product.FindVariant(req.Size, req.Color)
	if !ok {
		return nil, catalog.ErrProductUnavailable(product.Name, req.Size+"/"+req.Color)
	}
	if !variant.HasStock(req.Quantity) {
		return nil, catalog.ErrInsufficientStock(product.Name, variant.QuantityOnHand)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := c.AddLine(product, variant, req.Quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Item added to cart",
		zap.String("user_id", userID.String()),
		zap.String("product_id", product.ID.String()),
		zap.String("sku", variant.SKU),
		zap.Int("quantity", req.Quantity),
	)
	return s.respond(ctx, c)
}

// UpdateItem changes a line quantity; zero removes the line
func (s *Service) UpdateItem(ctx context.Context, userID, lineID uuid.UUID, req UpdateItemRequest) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) error {
		return c.UpdateQuantity(lineID, req.Quantity)
	})
}

// RemoveItem deletes a line
func (s *Service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) error {
		return c.RemoveLine(lineID)
	})
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// ApplyPromoCode applies a percentage promo code to a non-empty cart
func (s *Service) ApplyPromoCode(ctx context.Context, userID uuid.UUID, req ApplyPromoRequest) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) error {
		return c.ApplyPromoCode(req.Code, s.promos)
	})
}

// RemovePromoCode drops the applied promo code
func (s *Service) RemovePromoCode(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) error {
		c.RemovePromoCode()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID uuid.UUID, fn func(c *cart.Cart) error) (*CartResponse, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.respond(ctx, c)
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return cart.New(userID, s.currency), nil
	}
	return nil, err
}

func (s *Service) respond(ctx context.Context, c *cart.Cart) (*CartResponse, error) {
	products := map[uuid.UUID]*catalog.Product{}
	if !c.IsEmpty() {
		ids := make([]uuid.UUID, 0, len(c.Lines))
		for _, line := range c.Lines {
			ids = append(ids, line.ProductID)
		}
		found, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		products = found
	}
	resp := ToCartResponse(c, products)
	return &resp, nil
}

// Package transaction defines the unit-of-work boundary used by the order and
// payment services.
package transaction

import (
	"context"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/trade"
)

// Scope runs a function atomically. If the function returns an error every
// write made through the supplied repositories is rolled back.
type Scope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type Repositories interface {
	Carts() cart.Repository
	Orders() trade.OrderRepository
	Payments() payment.Repository
	Products() catalog.ProductReader
	Inventory() catalog.InventoryLedger
	OrderNumbers() trade.OrderNumberGenerator
}

// NoOpScope calls the function directly with a fixed set of repositories.
// It is used by tests that run against in-memory fakes.
type NoOpScope struct {
	carts        cart.Repository
	orders       trade.OrderRepository
	payments     payment.Repository
	products     catalog.ProductReader
	inventory    catalog.InventoryLedger
	orderNumbers trade.OrderNumberGenerator
}

// NewNoOpScope creates a NoOpScope with the given repositories.
func NewNoOpScope(
	carts cart.Repository,
	orders trade.OrderRepository,
	payments payment.Repository,
	products catalog.ProductReader,
	inventory catalog.InventoryLedger,
	orderNumbers trade.OrderNumberGenerator,
) *NoOpScope {
	return &NoOpScope{
		carts:        carts,
		orders:       orders,
		payments:     payments,
		products:     products,
		inventory:    inventory,
		orderNumbers: orderNumbers,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpScope) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return fn(s)
}

func (s *NoOpScope) Carts() cart.Repository                   { return s.carts }
func (s *NoOpScope) Orders() trade.OrderRepository            { return s.orders }
func (s *NoOpScope) Payments() payment.Repository             { return s.payments }
func (s *NoOpScope) Products() catalog.ProductReader          { return s.products }
func (s *NoOpScope) Inventory() catalog.InventoryLedger       { return s.inventory }
func (s *NoOpScope) OrderNumbers() trade.OrderNumberGenerator { return s.orderNumbers }

var (
	_ Scope        = (*NoOpScope)(nil)
	_ Repositories = (*NoOpScope)(nil)
)

// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: base models (BaseModel, AggregateModel) and the JSON column type
// - catalog.go: products and variants (read view plus stock counters)
// - cart.go: carts with inline JSON lines
// - trade.go: orders, frozen order lines and the order number sequence
// - payment.go: payments keyed by processor intent id
package models

// All returns every model, in dependency order, for AutoMigrate in tests
func All() []any {
	return []any{
		&ProductModel{},
		&ProductVariantModel{},
		&CartModel{},
		&OrderModel{},
		&OrderLineModel{},
		&OrderSequenceModel{},
		&PaymentModel{},
	}
}

package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// GormOrderNumberGenerator hands out order numbers from a counter row per
// prefix and day.
// The upsert is atomic, so concurrent checkouts never share a number.
type GormOrderNumberGenerator struct {
	db     *gorm.DB
	prefix string
}

// NewGormOrderNumberGenerator creates a generator; an empty prefix falls back to the default
func NewGormOrderNumberGenerator(db *gorm.DB, prefix string) *GormOrderNumberGenerator {
	if prefix == "" {
		prefix = trade.DefaultOrderNumberPrefix
	}
	return &GormOrderNumberGenerator{db: db, prefix: prefix}
}

// Next returns the next number for the day of at
func (g *GormOrderNumberGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")
	var seq int64
	err := g.db.WithContext(ctx).Raw(
		`INSERT INTO order_sequences (prefix, day, value) VALUES (?, ?, 1)
		 ON CONFLICT (prefix, day) DO UPDATE SET value = order_sequences.value + 1
		 RETURNING value`, g.prefix, day).Scan(&seq).Error
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	if seq == 0 {
		return "", fmt.Errorf("failed to allocate order number for %s-%s", g.prefix, day)
	}
	return trade.FormatOrderNumber(g.prefix, at.UTC(), seq), nil
}

var _ trade.OrderNumberGenerator = (*GormOrderNumberGenerator)(nil)

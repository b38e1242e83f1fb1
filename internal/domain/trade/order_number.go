package trade

import (
	"context"
	"fmt"
	"time"
)

// DefaultOrderNumberPrefix starts every storefront order number
const DefaultOrderNumberPrefix = "NODY"

// OrderNumberGenerator hands out unique human-readable order numbers
type OrderNumberGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// FormatOrderNumber renders PREFIX-YYYYMMDD-NNNNN
func FormatOrderNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, at.Format("20060102"), seq)
}

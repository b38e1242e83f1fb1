package cart

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PromoCatalog resolves promo codes to a percentage discount
type PromoCatalog interface {
	// Lookup returns the normalized code and its percentage
	Lookup(code string) (string, decimal.Decimal, bool)
}

// StaticPromoCatalog is a fixed code -> percentage table
type StaticPromoCatalog struct {
	percents map[string]decimal.Decimal
	upper    cases.Caser
}

// DefaultPromoCodes are offered when no table is configured
var DefaultPromoCodes = map[string]int{
	"NOUVEAU10":   10,
	"BIENVENUE15": 15,
	"ETE2024":     20,
}

// NewStaticPromoCatalog builds a catalog; percentages outside (0,100] are ignored
func NewStaticPromoCatalog(codes map[string]int) *StaticPromoCatalog {
	c := &StaticPromoCatalog{
		percents: make(map[string]decimal.Decimal, len(codes)),
		upper:    cases.Upper(language.Und),
	}
	for code, pct := range codes {
		if pct <= 0 || pct > 100 {
			continue
		}
		c.percents[c.normalize(code)] = decimal.NewFromInt(int64(pct))
	}
	return c
}

// Lookup implements PromoCatalog
func (c *StaticPromoCatalog) Lookup(code string) (string, decimal.Decimal, bool) {
	normalized := c.normalize(code)
	pct, ok := c.percents[normalized]
	return normalized, pct, ok
}

func (c *StaticPromoCatalog) normalize(code string) string {
	return c.upper.String(strings.TrimSpace(code))
}

package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promo(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestProduct_FindVariant(t *testing.T) {
	p := &Product{
		Name:   "Boubou",
		Active: true,
		Variants: []Variant{
			{Size: "M", Color: "Blue", Active: false},
			{Size: "L", Color: "Blue", Active: true},
		},
	}

	v, ok := p.FindVariant("l", "blue")
	require.True(t, ok)
	assert.Equal(t, "L", v.Size)

	_, ok = p.FindVariant("M", "Blue")
	assert.False(t, ok, "inactive variants are not offered")

	v, ok = p.FindAnyVariant("M", "Blue")
	require.True(t, ok)
	assert.False(t, v.Active)
}

func TestVariant_EffectivePrice(t *testing.T) {
	v := Variant{UnitPrice: decimal.NewFromInt(100)}
	assert.True(t, v.EffectivePrice().Equal(decimal.NewFromInt(100)))

	v.PromoPrice = promo("80")
	assert.True(t, v.EffectivePrice().Equal(decimal.NewFromInt(80)))
}

func TestVariant_Validate(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		code    string
	}{
		{"valid", Variant{UnitPrice: decimal.NewFromInt(10), PromoPrice: promo("5"), QuantityOnHand: 1}, ""},
		{"promo above list", Variant{UnitPrice: decimal.NewFromInt(10), PromoPrice: promo("12")}, "INVALID_PRICE"},
		{"negative stock", Variant{UnitPrice: decimal.NewFromInt(10), QuantityOnHand: -1}, "INVALID_QUANTITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.variant.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			de, ok := shared.AsDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestErrInsufficientStock(t *testing.T) {
	err := ErrInsufficientStock("Boubou", 0)
	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, 0, err.Details["available"])
	assert.Contains(t, err.Message, "Boubou")
}

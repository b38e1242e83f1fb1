package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConversionTable maps each currency to the number of its units worth one
// unit of the base currency.
type ConversionTable struct {
	base  Currency
	rates map[Currency]decimal.Decimal
}

// DefaultConversionTable returns the fixed storefront rates, XOF based
func DefaultConversionTable() *ConversionTable {
	return &ConversionTable{
		base: XOF,
		rates: map[Currency]decimal.Decimal{
			XOF: decimal.NewFromInt(1),
			XAF: decimal.NewFromInt(1),
			EUR: decimal.RequireFromString("0.0015"),
			USD: decimal.RequireFromString("0.0016"),
			CAD: decimal.RequireFromString("0.0022"),
			CNY: decimal.RequireFromString("0.011"),
		},
	}
}

// NewConversionTable builds a table from explicit rates. The base currency must have rate 1.
func NewConversionTable(base Currency, rates map[Currency]decimal.Decimal) (*ConversionTable, error) {
	r, ok := rates[base]
	if !ok || !r.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("base currency %s must have rate 1", base)
	}
	for c, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", c)
		}
	}
	copied := make(map[Currency]decimal.Decimal, len(rates))
	for c, rate := range rates {
		copied[c] = rate
	}
	return &ConversionTable{base: base, rates: copied}, nil
}

// Base returns the reference currency of the table
func (t *ConversionTable) Base() Currency {
	return t.base
}

// Rate returns the rate of c relative to the base currency
func (t *ConversionTable) Rate(c Currency) (decimal.Decimal, error) {
	rate, ok := t.rates[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, c)
	}
	return rate, nil
}

// Convert maps amount expressed in from into a whole number of units of to
func (t *ConversionTable) Convert(amount decimal.Decimal, from, to Currency) (int64, error) {
	converted, err := t.convert(amount, from, to)
	if err != nil {
		return 0, err
	}
	return converted.Round(0).IntPart(), nil
}

// ConvertMoney converts m into to, rounded to the target currency precision
func (t *ConversionTable) ConvertMoney(m Money, to Currency) (Money, error) {
	converted, err := t.convert(m.amount, m.currency, to)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: converted.Round(to.Decimals()), currency: to}, nil
}

func (t *ConversionTable) convert(amount decimal.Decimal, from, to Currency) (decimal.Decimal, error) {
	fromRate, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return amount, nil
	}
	// from -> base -> to
	return amount.Div(fromRate).Mul(toRate), nil
}

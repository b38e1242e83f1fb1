package trade

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// ShippingQuote is the fee and expected delivery time for one order
type ShippingQuote struct {
	Fee          valueobject.Money
	DeliveryDays int
}

// ShippingFeePolicy prices delivery for a cart subtotal
type ShippingFeePolicy interface {
	Quote(subtotal valueobject.Money, express bool) (ShippingQuote, error)
}

// FlatShippingPolicy charges a flat standard or express fee, configured in
// the conversion table's base currency and converted to the order currency
type FlatShippingPolicy struct {
	StandardFee  decimal.Decimal
	ExpressFee   decimal.Decimal
	StandardDays int
	ExpressDays  int
	Rates        *valueobject.ConversionTable
}

// DefaultShippingPolicy returns the storefront's standard fees (XOF). Express
// delivery is faster and costs more.
func DefaultShippingPolicy(rates *valueobject.ConversionTable) *FlatShippingPolicy {
	if rates == nil {
		rates = valueobject.DefaultConversionTable()
	}
	return &FlatShippingPolicy{
		StandardFee:  decimal.NewFromInt(1500),
		ExpressFee:   decimal.NewFromInt(2000),
		StandardDays: 7,
		ExpressDays:  2,
		Rates:        rates,
	}
}

// Quote implements ShippingFeePolicy
func (p *FlatShippingPolicy) Quote(subtotal valueobject.Money, express bool) (ShippingQuote, error) {
	fee, days := p.StandardFee, p.StandardDays
	if express {
		fee, days = p.ExpressFee, p.ExpressDays
	}
	base, err := valueobject.NewMoney(fee, p.Rates.Base())
	if err != nil {
		return ShippingQuote{}, err
	}
	converted, err := p.Rates.ConvertMoney(base, subtotal.Currency())
	if err != nil {
		return ShippingQuote{}, err
	}
	return ShippingQuote{Fee: converted, DeliveryDays: days}, nil
}

package cart

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

var (
	ErrLineNotFound     = shared.NewDomainError("LINE_NOT_FOUND", "Item not found in cart")
	ErrEmptyCart        = shared.NewDomainError("EMPTY_CART", "The cart is empty")
	ErrInvalidPromoCode = shared.NewDomainError("INVALID_PROMO_CODE", "Invalid or expired promo code")
	ErrInvalidQuantity  = shared.NewDomainError("INVALID_QUANTITY",
		fmt.Sprintf("Quantity must be between %d and %d", MinLineQuantity, MaxLineQuantity))
)

// ErrCurrencyMismatch reports a product priced in another currency than the cart
func ErrCurrencyMismatch(product, cart valueobject.Currency) *shared.DomainError {
	return shared.NewDomainErrorf("CURRENCY_MISMATCH",
		"Product is priced in %s but the cart uses %s", product, cart)
}

package catalog

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
)

const (
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
)

// ErrProductUnavailable reports a product or variant that is missing or inactive
func ErrProductUnavailable(productName, variant string) *shared.DomainError {
	msg := fmt.Sprintf("Product %q is no longer available", productName)
	if variant != "" {
		msg = fmt.Sprintf("The selected variant %s of %q is no longer available", variant, productName)
	}
	return shared.NewDomainError(CodeProductUnavailable, msg).
		WithDetail("product", productName)
}

// ErrInsufficientStock reports the quantity still available for a variant
func ErrInsufficientStock(productName string, available int) *shared.DomainError {
	return shared.NewDomainErrorf(CodeInsufficientStock,
		"Insufficient stock for %q. Available quantity: %d", productName, available).
		WithDetail("product", productName).
		WithDetail("available", available)
}

package trade

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
)

var (
	ErrOrderNotFound       = shared.NewDomainError("ORDER_NOT_FOUND", "Order not found")
	ErrOrderNotCancellable = shared.NewDomainError("ORDER_NOT_CANCELLABLE", "This order can no longer be cancelled")
	ErrOrderNotPayable     = shared.NewDomainError("ORDER_NOT_PAYABLE", "This order can no longer be paid")
	ErrNoLines             = shared.NewDomainError("NO_ITEMS", "An order needs at least one line")
)

// ErrInvalidTransition reports a status change the state machine forbids
func ErrInvalidTransition(from, to OrderStatus) *shared.DomainError {
	return shared.NewDomainError("INVALID_STATE",
		fmt.Sprintf("Cannot move order from %s to %s", from, to))
}

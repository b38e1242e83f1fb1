package payment

import (
	"errors"
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
)

var (
	ErrPaymentNotFound  = shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	ErrSignatureInvalid = shared.NewDomainError("SIGNATURE_INVALID", "Webhook signature verification failed")
	ErrAmountTooSmall   = shared.NewDomainError("AMOUNT_TOO_SMALL", "Amount is below the processor minimum")
	ErrRefundNotAllowed = shared.NewDomainError("REFUND_NOT_ALLOWED", "This payment cannot be refunded")
)

// ErrUnhandledStatus reports an intent status confirmation cannot act on
func ErrUnhandledStatus(status IntentStatus) *shared.DomainError {
	return shared.NewDomainErrorf("UNHANDLED_PAYMENT_STATUS", "Unhandled payment status: %s", status).
		WithDetail("status", string(status))
}

// CodeGatewayError is the code surfaced for processor failures
const CodeGatewayError = "PAYMENT_GATEWAY_ERROR"

// GatewayError is the uniform shape of every processor failure
type GatewayError struct {
	Code    string
	Message string
	Type    string
	// Temporary is set for timeouts and transport failures, where the
	// outcome at the processor is unknown
	Temporary bool
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment gateway: %s", e.Message)
	}
	return fmt.Sprintf("payment gateway: %s: %s", e.Code, e.Message)
}

// LastError converts the failure into a recordable LastError
func (e *GatewayError) LastError() LastError {
	return LastError{Code: e.Code, Message: e.Message, Type: e.Type}
}

// DomainError exposes the failure with a customer-safe message
func (e *GatewayError) DomainError() *shared.DomainError {
	msg := "Payment could not be completed"
	if e.Type == "card_error" && e.Message != "" {
		msg = e.Message
	}
	return shared.NewDomainError(CodeGatewayError, msg).WithDetail("gateway_code", e.Code)
}

// AsGatewayError unwraps err into a *GatewayError when possible
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

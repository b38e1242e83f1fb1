package dto

import (
	"net/http"
	"strings"
)

// Error codes returned by the API. Domain errors keep their own code
// (ORDER_NOT_FOUND, INSUFFICIENT_STOCK, ...); the constants below cover the
// transport layer and the shared domain codes.

// General error codes
const (
	ErrCodeInternal = "INTERNAL_ERROR"
)

// Input error codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
)

// Resource error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeDuplicateRequest    = "DUPLICATE_REQUEST"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
)

// Storefront error codes
const (
	ErrCodeEmptyCart              = "EMPTY_CART"
	ErrCodeLineNotFound           = "LINE_NOT_FOUND"
	ErrCodeInvalidPromoCode       = "INVALID_PROMO_CODE"
	ErrCodeProductUnavailable     = "PRODUCT_UNAVAILABLE"
	ErrCodeInsufficientStock      = "INSUFFICIENT_STOCK"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeOrderNotCancellable    = "ORDER_NOT_CANCELLABLE"
	ErrCodeOrderNotPayable        = "ORDER_NOT_PAYABLE"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodePaymentGateway         = "PAYMENT_GATEWAY_ERROR"
	ErrCodeSignatureInvalid       = "SIGNATURE_INVALID"
	ErrCodeAmountTooSmall         = "AMOUNT_TOO_SMALL"
	ErrCodeUnhandledPaymentStatus = "UNHANDLED_PAYMENT_STATUS"
	ErrCodeRefundNotAllowed       = "REFUND_NOT_ALLOWED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Codes of the
// INVALID_* family that are not listed are treated as bad input.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeRateLimited:         http.StatusTooManyRequests,

	ErrCodeEmptyCart:              http.StatusUnprocessableEntity,
	ErrCodeLineNotFound:           http.StatusNotFound,
	ErrCodeInvalidPromoCode:       http.StatusUnprocessableEntity,
	ErrCodeProductUnavailable:     http.StatusConflict,
	ErrCodeInsufficientStock:      http.StatusConflict,
	ErrCodeOrderNotFound:          http.StatusNotFound,
	ErrCodeOrderNotCancellable:    http.StatusConflict,
	ErrCodeOrderNotPayable:        http.StatusConflict,
	ErrCodePaymentNotFound:        http.StatusNotFound,
	ErrCodePaymentGateway:         http.StatusPaymentRequired,
	ErrCodeSignatureInvalid:       http.StatusBadRequest,
	ErrCodeAmountTooSmall:         http.StatusBadRequest,
	ErrCodeUnhandledPaymentStatus: http.StatusBadGateway,
	ErrCodeRefundNotAllowed:       http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code. Unknown INVALID_*
// codes are 400 and other unknown codes are 422.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

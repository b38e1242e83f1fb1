package handler

import "github.com/storefront/backend/internal/interfaces/http/dto"

// Envelope types referenced by the route annotations. Handlers write
// dto.Response directly; these only give each payload a concrete shape.

// APIResponse is the success envelope around a typed payload
// @Description Storefront response envelope
type APIResponse[T any] struct {
	Success bool           `json:"success" example:"true"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse carries a stable error code such as INSUFFICIENT_STOCK or
// ORDER_NOT_CANCELLABLE
// @Description Storefront error envelope
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}

package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	tradeapp "github.com/storefront/backend/internal/application/trade"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
)

// Confirmation statuses returned to the storefront client
const (
	ConfirmStatusSucceeded      = "reussi"
	ConfirmStatusRequiresAction = "requiert_action"
)

// ==================== Requests ====================

// CreateSessionRequest starts a payment for one of the user's orders
type CreateSessionRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
}

// ConfirmRequest confirms a payment intent after the client collected the card
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required,max=255"`
}

// RefundRequest asks for a full or partial refund. An empty amount refunds
// what is left.
type RefundRequest struct {
	Amount *decimal.Decimal     `json:"amount"`
	Reason payment.RefundReason `json:"reason" binding:"omitempty,max=100"`
	Note   string               `json:"note" binding:"max=500"`
}

// PaymentListFilter holds payment history query parameters
type PaymentListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending requires_action succeeded failed canceled refunded"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=created_at updated_at amount status succeeded_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f PaymentListFilter) toDomain() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		Status:   f.Status,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
	}
	filter.Normalize()
	return filter
}

// ==================== Responses ====================

// SessionResponse is what the client needs to collect the payment
type SessionResponse struct {
	PaymentID       uuid.UUID       `json:"payment_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	OrderID         uuid.UUID       `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
}

// ConfirmResponse reports the outcome of a synchronous confirmation
type ConfirmResponse struct {
	Status       string                  `json:"status"`
	ClientSecret string                  `json:"client_secret,omitempty"`
	Order        *tradeapp.OrderResponse `json:"order,omitempty"`
}

// LastErrorResponse is the processor's description of the last failure
type LastErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                  uuid.UUID          `json:"id"`
	OrderID             uuid.UUID          `json:"order_id"`
	OrderNumber         string             `json:"order_number"`
	UserID              uuid.UUID          `json:"user_id"`
	PaymentIntentID     string             `json:"payment_intent_id"`
	Amount              decimal.Decimal    `json:"amount"`
	Currency            string             `json:"currency"`
	Method              string             `json:"method"`
	Status              string             `json:"status"`
	Attempts            int                `json:"attempts"`
	LastError           *LastErrorResponse `json:"last_error,omitempty"`
	RefundedAmount      decimal.Decimal    `json:"refunded_amount"`
	RemainingRefundable decimal.Decimal    `json:"remaining_refundable"`
	RefundReason        string             `json:"refund_reason,omitempty"`
	SucceededAt         *time.Time         `json:"succeeded_at,omitempty"`
	FailedAt            *time.Time         `json:"failed_at,omitempty"`
	RefundedAt          *time.Time         `json:"refunded_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// ToSessionResponse converts a payment to the session the client confirms
func ToSessionResponse(p *payment.Payment) SessionResponse {
	return SessionResponse{
		PaymentID:       p.ID,
		PaymentIntentID: p.IntentID,
		ClientSecret:    p.ClientSecret,
		Amount:          p.Amount,
		Currency:        string(p.Currency),
		Status:          string(p.Status),
		OrderID:         p.OrderID,
		OrderNumber:     p.OrderNumber,
	}
}

// ToPaymentResponse converts a domain Payment to PaymentResponse. The client
// secret is never included.
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                  p.ID,
		OrderID:             p.OrderID,
		OrderNumber:         p.OrderNumber,
		UserID:              p.UserID,
		PaymentIntentID:     p.IntentID,
		Amount:              p.Amount,
		Currency:            string(p.Currency),
		Method:              p.Method,
		Status:              string(p.Status),
		Attempts:            p.Attempts,
		RefundedAmount:      p.RefundedAmount,
		RemainingRefundable: p.RemainingRefundable(),
		RefundReason:        p.RefundReason,
		SucceededAt:         p.SucceededAt,
		FailedAt:            p.FailedAt,
		RefundedAt:          p.RefundedAt,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.LastError != nil {
		resp.LastError = &LastErrorResponse{
			Code:    p.LastError.Code,
			Message: p.LastError.Message,
			Type:    p.LastError.Type,
		}
	}
	return resp
}

package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// MaxAttempts caps the number of failed attempts recorded per payment
const MaxAttempts = 3

// Status is the local status of a payment
type Status string

const (
	StatusPending        Status = "pending"
	StatusRequiresAction Status = "requires_action"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	StatusCanceled       Status = "canceled"
	StatusRefunded       Status = "refunded"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRequiresAction, StatusSucceeded, StatusFailed, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsOpen reports whether the payment can still succeed
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusRequiresAction || s == StatusFailed
}

// LastError is the processor's description of the latest failure
type LastError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Payment tracks one processor payment intent for an order
type Payment struct {
	shared.BaseAggregateRoot
	OrderID        uuid.UUID
	OrderNumber    string
	UserID         uuid.UUID
	IntentID       string
	ClientSecret   string
	Amount         decimal.Decimal
	Currency       valueobject.Currency
	Method         string
	Status         Status
	Attempts       int
	LastError      *LastError
	RefundedAmount decimal.Decimal
	RefundReason   string
	SucceededAt    *time.Time
	FailedAt       *time.Time
	RefundedAt     *time.Time
}

// NewPayment records a freshly created intent
func NewPayment(orderID, userID uuid.UUID, orderNumber string, intent *Intent, method string) (*Payment, error) {
	if intent == nil || strings.TrimSpace(intent.ID) == "" {
		return nil, shared.NewDomainError("INVALID_INTENT", "Payment intent id cannot be empty")
	}
	if !intent.Amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		OrderNumber:       orderNumber,
		UserID:            userID,
		IntentID:          intent.ID,
		ClientSecret:      intent.ClientSecret,
		Amount:            intent.Amount.Amount(),
		Currency:          intent.Amount.Currency(),
		Method:            method,
		Status:            StatusPending,
		RefundedAmount:    decimal.Zero,
	}
	if intent.Status == IntentRequiresAction {
		p.Status = StatusRequiresAction
	}
	return p, nil
}

// AmountMoney returns the charged amount as Money
func (p *Payment) AmountMoney() valueobject.Money {
	return valueobject.MustNewMoney(p.Amount, p.Currency)
}

// MarkSucceeded records a successful charge. It returns false when the
// payment had already succeeded, leaving dates untouched.
func (p *Payment) MarkSucceeded(at time.Time) bool {
	if p.Status == StatusSucceeded || p.Status == StatusRefunded {
		return false
	}
	p.Status = StatusSucceeded
	p.SucceededAt = &at
	p.UpdatedAt = at
	p.AddDomainEvent(NewPaymentSucceededEvent(p))
	return true
}

// MarkRequiresAction records that the customer must authenticate
func (p *Payment) MarkRequiresAction(clientSecret string) bool {
	if !p.Status.IsOpen() {
		return false
	}
	if clientSecret != "" {
		p.ClientSecret = clientSecret
	}
	if p.Status == StatusRequiresAction {
		return false
	}
	p.Status = StatusRequiresAction
	p.Touch()
	return true
}

// RecordFailure records a failed attempt. The same failure reported twice
// counts once, and a payment that already succeeded is never downgraded.
func (p *Payment) RecordFailure(lastErr LastError, at time.Time) bool {
	if !p.Status.IsOpen() {
		return false
	}
	if p.Status == StatusFailed && p.LastError != nil && *p.LastError == lastErr {
		return false
	}
	p.Status = StatusFailed
	p.LastError = &lastErr
	p.FailedAt = &at
	p.UpdatedAt = at
	if p.Attempts < MaxAttempts {
		p.Attempts++
	}
	p.AddDomainEvent(NewPaymentFailedEvent(p))
	return true
}

// AttemptsExhausted reports whether the failure budget is used up
func (p *Payment) AttemptsExhausted() bool {
	return p.Attempts >= MaxAttempts
}

// Cancel marks an unfinished payment as canceled
func (p *Payment) Cancel() bool {
	if !p.Status.IsOpen() {
		return false
	}
	p.Status = StatusCanceled
	p.Touch()
	return true
}

// RemainingRefundable returns what can still be refunded
func (p *Payment) RemainingRefundable() decimal.Decimal {
	remaining := p.Amount.Sub(p.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// CanBeRefunded reports whether a refund may be issued
func (p *Payment) CanBeRefunded() bool {
	return p.Status == StatusSucceeded && p.RemainingRefundable().IsPositive()
}

// IsFullyRefunded reports whether the whole amount was returned
func (p *Payment) IsFullyRefunded() bool {
	return p.RefundedAmount.GreaterThanOrEqual(p.Amount)
}

// ValidateRefund checks a requested refund amount against the remaining balance
func (p *Payment) ValidateRefund(amount decimal.Decimal) error {
	if !p.CanBeRefunded() {
		return ErrRefundNotAllowed
	}
	if !amount.IsPositive() || amount.GreaterThan(p.RemainingRefundable()) {
		return ErrRefundNotAllowed.WithDetail("remaining", p.RemainingRefundable().String())
	}
	return nil
}

// ApplyRefundTotal sets the cumulative refunded amount reported by the
// processor. Lower or equal totals are ignored and the total is capped at
// the payment amount. It returns whether anything changed.
func (p *Payment) ApplyRefundTotal(total decimal.Decimal, reason string, at time.Time) bool {
	if p.Status != StatusSucceeded {
		return false
	}
	if total.GreaterThan(p.Amount) {
		total = p.Amount
	}
	if !total.GreaterThan(p.RefundedAmount) {
		return false
	}
	refunded := total.Sub(p.RefundedAmount)
	p.RefundedAmount = total
	if reason != "" {
		p.RefundReason = reason
	}
	p.RefundedAt = &at
	p.UpdatedAt = at
	if p.IsFullyRefunded() {
		p.Status = StatusRefunded
	}
	p.AddDomainEvent(NewPaymentRefundedEvent(p, refunded))
	return true
}

// ApplyRefund adds one refund to the cumulative refunded amount
func (p *Payment) ApplyRefund(amount decimal.Decimal, reason string, at time.Time) bool {
	return p.ApplyRefundTotal(p.RefundedAmount.Add(amount), reason, at)
}

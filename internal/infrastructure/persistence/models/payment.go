package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	OrderID          uuid.UUID            `gorm:"type:uuid;not null;index"`
	OrderNumber      string               `gorm:"type:varchar(50);not null"`
	UserID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	IntentID         string               `gorm:"type:varchar(255);not null;uniqueIndex"`
	ClientSecret     string               `gorm:"type:varchar(255)"`
	Amount           decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency         valueobject.Currency `gorm:"type:varchar(3);not null"`
	Method           string               `gorm:"type:varchar(30)"`
	Status           payment.Status       `gorm:"type:varchar(20);not null;index"`
	Attempts         int                  `gorm:"not null"`
	LastErrorCode    string               `gorm:"type:varchar(100)"`
	LastErrorMessage string               `gorm:"type:varchar(500)"`
	LastErrorType    string               `gorm:"type:varchar(50)"`
	RefundedAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	RefundReason     string               `gorm:"type:varchar(255)"`
	SucceededAt      *time.Time
	FailedAt         *time.Time
	RefundedAt       *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *payment.Payment {
	p := &payment.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderID:           m.OrderID,
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		IntentID:          m.IntentID,
		ClientSecret:      m.ClientSecret,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Method:            m.Method,
		Status:            m.Status,
		Attempts:          m.Attempts,
		RefundedAmount:    m.RefundedAmount,
		RefundReason:      m.RefundReason,
		SucceededAt:       m.SucceededAt,
		FailedAt:          m.FailedAt,
		RefundedAt:        m.RefundedAt,
	}
	if m.LastErrorCode != "" || m.LastErrorMessage != "" {
		p.LastError = &payment.LastError{
			Code:    m.LastErrorCode,
			Message: m.LastErrorMessage,
			Type:    m.LastErrorType,
		}
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.OrderID = p.OrderID
	m.OrderNumber = p.OrderNumber
	m.UserID = p.UserID
	m.IntentID = p.IntentID
	m.ClientSecret = p.ClientSecret
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Method = p.Method
	m.Status = p.Status
	m.Attempts = p.Attempts
	m.RefundedAmount = p.RefundedAmount
	m.RefundReason = p.RefundReason
	m.SucceededAt = p.SucceededAt
	m.FailedAt = p.FailedAt
	m.RefundedAt = p.RefundedAt
	m.LastErrorCode, m.LastErrorMessage, m.LastErrorType = "", "", ""
	if p.LastError != nil {
		m.LastErrorCode = p.LastError.Code
		m.LastErrorMessage = p.LastError.Message
		m.LastErrorType = p.LastError.Type
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

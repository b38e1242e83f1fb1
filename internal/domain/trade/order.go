package trade

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// OrderLine is a frozen copy of a cart line taken at checkout.
// Later catalog edits never change it.
type OrderLine struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SnapshotLine freezes a cart line against the live product and variant
func SnapshotLine(product *catalog.Product, variant *catalog.Variant, line cart.Line) OrderLine {
	price := variant.EffectivePrice()
	return OrderLine{
		ID:          uuid.New(),
		ProductID:   product.ID,
		VariantID:   variant.ID,
		ProductName: product.Name,
		Image:       product.PrimaryImage(),
		Size:        variant.Size,
		Color:       variant.Color,
		SKU:         variant.SKU,
		UnitPrice:   price,
		Quantity:    line.Quantity,
		Subtotal:    price.Mul(decimal.NewFromInt(int64(line.Quantity))),
	}
}

// Tracking holds carrier information recorded when an order ships
type Tracking struct {
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Order is the aggregate root created at checkout.
// Only status, payment and tracking fields change after creation.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber      string
	UserID           uuid.UUID
	Lines            []OrderLine
	ShippingAddress  valueobject.Address
	BillingAddress   valueobject.Address
	Subtotal         decimal.Decimal
	ShippingFee      decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	Currency         valueobject.Currency
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentMethod    PaymentMethod
	PaymentIntentID  string
	PaidAt           *time.Time
	PromoCode        string
	CustomerNote     string
	Express          bool
	DeliveryDays     int
	Tracking         Tracking
	StatusTimestamps map[OrderStatus]time.Time
	CancelReason     string
}

// NewOrderParams carries everything checkout knows about a new order
type NewOrderParams struct {
	OrderNumber     string
	UserID          uuid.UUID
	Lines           []OrderLine
	ShippingAddress valueobject.Address
	BillingAddress  *valueobject.Address
	ShippingFee     decimal.Decimal
	Discount        decimal.Decimal
	Currency        valueobject.Currency
	PaymentMethod   PaymentMethod
	PromoCode       string
	CustomerNote    string
	Express         bool
	DeliveryDays    int
}

// NewOrder creates a pending order and computes its totals from the lines
func NewOrder(p NewOrderParams) (*Order, error) {
	if len(p.Lines) == 0 {
		return nil, ErrNoLines
	}
	if strings.TrimSpace(p.OrderNumber) == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if err := p.ShippingAddress.Validate(); err != nil {
		return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
	}
	if !p.PaymentMethod.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PAYMENT_METHOD", "Unsupported payment method %q", p.PaymentMethod)
	}
	if !p.Currency.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_CURRENCY", "Unsupported currency %q", p.Currency)
	}
	if p.ShippingFee.IsNegative() || p.Discount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Shipping fee and discount cannot be negative")
	}
	billing := p.ShippingAddress
	if p.BillingAddress != nil && !p.BillingAddress.IsEmpty() {
		billing = *p.BillingAddress
	}

	now := time.Now()
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       p.OrderNumber,
		UserID:            p.UserID,
		Lines:             p.Lines,
		ShippingAddress:   p.ShippingAddress,
		BillingAddress:    billing,
		ShippingFee:       p.ShippingFee,
		Discount:          p.Discount,
		Currency:          p.Currency,
		Status:            OrderStatusPending,
		PaymentStatus:     PaymentStatusPending,
		PaymentMethod:     p.PaymentMethod,
		PromoCode:         p.PromoCode,
		CustomerNote:      p.CustomerNote,
		Express:           p.Express,
		DeliveryDays:      p.DeliveryDays,
		StatusTimestamps:  map[OrderStatus]time.Time{OrderStatusPending: now},
	}
	o.recalculateTotals()
	if o.Total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Discount cannot exceed the order amount")
	}

	o.AddDomainEvent(NewOrderPlacedEvent(o))
	return o, nil
}

// recalculateTotals derives subtotal and total from the lines
func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for i := range o.Lines {
		line := &o.Lines[i]
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(line.Subtotal)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingFee).Sub(o.Discount)
}

// VerifyTotals checks that stored totals still match the lines
func (o *Order) VerifyTotals() error {
	subtotal := decimal.Zero
	for _, line := range o.Lines {
		if !line.Subtotal.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))) {
			return fmt.Errorf("line %s subtotal drifted", line.ID)
		}
		subtotal = subtotal.Add(line.Subtotal)
	}
	if !subtotal.Equal(o.Subtotal) {
		return fmt.Errorf("subtotal %s does not match lines %s", o.Subtotal, subtotal)
	}
	if !o.Total.Equal(o.Subtotal.Add(o.ShippingFee).Sub(o.Discount)) {
		return fmt.Errorf("total %s does not match subtotal + shipping - discount", o.Total)
	}
	return nil
}

// TransitionTo moves the order through the status state machine and stamps
// the time of the new status
func (o *Order) TransitionTo(target OrderStatus) error {
	if !target.IsValid() {
		return shared.NewDomainErrorf("INVALID_STATUS", "Unknown order status %q", target)
	}
	if !o.Status.CanTransitionTo(target) {
		return ErrInvalidTransition(o.Status, target)
	}
	previous := o.Status
	now := time.Now()
	o.Status = target
	if o.StatusTimestamps == nil {
		o.StatusTimestamps = make(map[OrderStatus]time.Time)
	}
	o.StatusTimestamps[target] = now
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderStatusChangedEvent(o, previous))
	return nil
}

// Confirm moves a pending order to confirmed
func (o *Order) Confirm() error {
	return o.TransitionTo(OrderStatusConfirmed)
}

// StartPreparing moves a confirmed order to preparing
func (o *Order) StartPreparing() error {
	return o.TransitionTo(OrderStatusPreparing)
}

// Ship records carrier details and moves the order to shipped
func (o *Order) Ship(tracking Tracking) error {
	if err := o.TransitionTo(OrderStatusShipped); err != nil {
		return err
	}
	shippedAt := o.StatusTimestamps[OrderStatusShipped]
	o.ApplyTracking(tracking)
	o.Tracking.ShippedAt = &shippedAt
	if o.Tracking.EstimatedDelivery == nil && o.DeliveryDays > 0 {
		eta := shippedAt.AddDate(0, 0, o.DeliveryDays)
		o.Tracking.EstimatedDelivery = &eta
	}
	return nil
}

// ApplyTracking merges non-empty tracking fields
func (o *Order) ApplyTracking(t Tracking) {
	if t.Carrier != "" {
		o.Tracking.Carrier = strings.TrimSpace(t.Carrier)
	}
	if t.TrackingNumber != "" {
		o.Tracking.TrackingNumber = strings.TrimSpace(t.TrackingNumber)
	}
	if t.TrackingURL != "" {
		o.Tracking.TrackingURL = strings.TrimSpace(t.TrackingURL)
	}
	if t.EstimatedDelivery != nil {
		o.Tracking.EstimatedDelivery = t.EstimatedDelivery
	}
}

// Deliver moves a shipped order to delivered
func (o *Order) Deliver() error {
	return o.TransitionTo(OrderStatusDelivered)
}

// CanBeCancelled reports whether Cancel would succeed
func (o *Order) CanBeCancelled() bool {
	return o.Status.IsCancellable()
}

// Cancel cancels the order. Restocking is done by the caller in the same
// transaction.
func (o *Order) Cancel(reason string) error {
	if !o.CanBeCancelled() {
		return ErrOrderNotCancellable
	}
	if err := o.TransitionTo(OrderStatusCancelled); err != nil {
		return err
	}
	o.CancelReason = strings.TrimSpace(reason)
	o.AddDomainEvent(NewOrderCancelledEvent(o))
	return nil
}

// IsPayable reports whether a payment may still be started for the order
func (o *Order) IsPayable() bool {
	return o.Status == OrderStatusPending && o.PaymentStatus == PaymentStatusPending
}

// MarkPaid records a successful payment. It returns false when the order
// was already marked paid, so repeated notifications change nothing.
func (o *Order) MarkPaid(intentID string, at time.Time) (bool, error) {
	if o.PaymentStatus == PaymentStatusPaid ||
		o.PaymentStatus == PaymentStatusRefunded ||
		o.PaymentStatus == PaymentStatusPartiallyRefunded {
		return false, nil
	}
	o.PaymentStatus = PaymentStatusPaid
	o.PaymentIntentID = intentID
	o.PaidAt = &at
	o.UpdatedAt = at
	if o.Status == OrderStatusPending {
		if err := o.Confirm(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// MarkPaymentFailed records a failed payment attempt on a still unpaid order
func (o *Order) MarkPaymentFailed() bool {
	if o.PaymentStatus != PaymentStatusPending {
		return false
	}
	o.PaymentStatus = PaymentStatusFailed
	o.UpdatedAt = time.Now()
	return true
}

// ReopenPayment lets a customer retry after a failed attempt
func (o *Order) ReopenPayment() {
	if o.PaymentStatus == PaymentStatusFailed {
		o.PaymentStatus = PaymentStatusPending
		o.UpdatedAt = time.Now()
	}
}

// ApplyRefund updates the payment status after a refund. A full refund also
// moves the order to refunded; it returns false if nothing changed.
func (o *Order) ApplyRefund(fullyRefunded bool) (bool, error) {
	if !fullyRefunded {
		if o.PaymentStatus == PaymentStatusPartiallyRefunded {
			return false, nil
		}
		o.PaymentStatus = PaymentStatusPartiallyRefunded
		o.UpdatedAt = time.Now()
		return true, nil
	}
	if o.PaymentStatus == PaymentStatusRefunded && o.Status == OrderStatusRefunded {
		return false, nil
	}
	o.PaymentStatus = PaymentStatusRefunded
	o.UpdatedAt = time.Now()
	if o.Status != OrderStatusRefunded && o.Status.CanTransitionTo(OrderStatusRefunded) {
		if err := o.TransitionTo(OrderStatusRefunded); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ItemCount returns the number of units ordered
func (o *Order) ItemCount() int {
	n := 0
	for _, line := range o.Lines {
		n += line.Quantity
	}
	return n
}

// StatusEntry is one step of the order history
type StatusEntry struct {
	Status      OrderStatus `json:"status"`
	At          time.Time   `json:"at"`
	Description string      `json:"description"`
}

// StatusHistory returns the stamped statuses sorted by time
func (o *Order) StatusHistory() []StatusEntry {
	entries := make([]StatusEntry, 0, len(o.StatusTimestamps))
	for status, at := range o.StatusTimestamps {
		entries = append(entries, StatusEntry{Status: status, At: at, Description: status.Description()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries
}

// TotalMoney returns the order total as Money
func (o *Order) TotalMoney() valueobject.Money {
	return valueobject.MustNewMoney(o.Total, o.Currency)
}

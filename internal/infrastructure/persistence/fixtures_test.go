package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedProduct stores a product with one variant holding stock units
func seedProduct(t *testing.T, db *gorm.DB, price int64, stock int) *catalog.Product {
	t.Helper()
	productID := uuid.New()
	product := &catalog.Product{
		ID:       productID,
		Name:     "Boubou Brodé",
		Slug:     "boubou-brode-" + productID.String()[:8],
		Images:   []string{"boubou-front.jpg"},
		Active:   true,
		Currency: valueobject.XOF,
		Variants: []catalog.Variant{{
			ID:             uuid.New(),
			ProductID:      productID,
			Size:           "L",
			Color:          "Indigo",
			SKU:            "BOU-L-IND-" + productID.String()[:4],
			UnitPrice:      decimal.NewFromInt(price),
			QuantityOnHand: stock,
			Active:         true,
		}},
	}
	require.NoError(t, NewGormProductRepository(db).Create(context.Background(), product))
	return product
}

func testShippingAddress() valueobject.Address {
	return valueobject.Address{
		FullName:   "Awa Diop",
		Street:     "12 rue Carnot",
		City:       "Dakar",
		PostalCode: "10200",
		Country:    "Sénégal",
		Phone:      "+221770000000",
	}
}

// newTestOrder builds a pending order for product with qty units
func newTestOrder(t *testing.T, number string, userID uuid.UUID, product *catalog.Product, qty int) *trade.Order {
	t.Helper()
	variant := &product.Variants[0]
	line := trade.SnapshotLine(product, variant, cart.Line{Quantity: qty})
	order, err := trade.NewOrder(trade.NewOrderParams{
		OrderNumber:     number,
		UserID:          userID,
		Lines:           []trade.OrderLine{line},
		ShippingAddress: testShippingAddress(),
		ShippingFee:     decimal.NewFromInt(1500),
		Discount:        decimal.Zero,
		Currency:        valueobject.XOF,
		PaymentMethod:   trade.PaymentMethodStripe,
		DeliveryDays:    7,
	})
	require.NoError(t, err)
	return order
}

// newTestPayment builds a pending payment for order
func newTestPayment(t *testing.T, order *trade.Order, intentID string) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(order.ID, order.UserID, order.OrderNumber, &payment.Intent{
		ID:           intentID,
		ClientSecret: intentID + "_secret",
		Amount:       valueobject.MustNewMoney(order.Total, order.Currency),
		Status:       payment.IntentRequiresPaymentMethod,
	}, "card")
	require.NoError(t, err)
	return p
}

// seedlessProduct is a catalog product that is never written, for tests
// that only need order lines
var seedlessProduct = catalog.Product{
	ID:       uuid.MustParse("5b0f6a52-3f5c-4d7e-9a43-0d9c1f7c2a11"),
	Name:     "Kaftan Lin",
	Images:   []string{"kaftan.jpg"},
	Active:   true,
	Currency: valueobject.XOF,
	Variants: []catalog.Variant{{
		ID:             uuid.MustParse("9e1d2c3b-4a5f-4e6d-8c7b-1a2b3c4d5e6f"),
		Size:           "M",
		Color:          "Ecru",
		SKU:            "KAF-M-ECR",
		UnitPrice:      decimal.NewFromInt(8000),
		QuantityOnHand: 5,
		Active:         true,
	}},
}

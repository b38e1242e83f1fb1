package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/application/transaction"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProductRepository(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()
	product := seedProduct(t, db.DB, 5000, 3)

	t.Run("FindByID loads variants", func(t *testing.T) {
		found, err := repo.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, product.Name, found.Name)
		assert.Equal(t, []string{"boubou-front.jpg"}, found.Images)
		require.Len(t, found.Variants, 1)
		assert.Equal(t, 3, found.Variants[0].QuantityOnHand)
		assert.True(t, found.Variants[0].UnitPrice.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("FindByID returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindByIDs skips unknown ids", func(t *testing.T) {
		found, err := repo.FindByIDs(ctx, []uuid.UUID{product.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, found, 1)
		assert.Contains(t, found, product.ID)
	})
}

func TestGormInventoryLedger(t *testing.T) {
	db := newSQLiteDatabase(t)
	ledger := NewGormInventoryLedger(db.DB)
	ctx := context.Background()
	product := seedProduct(t, db.DB, 5000, 2)
	variantID := product.Variants[0].ID

	ok, err := ledger.Decrement(ctx, variantID, 3)
	require.NoError(t, err)
	assert.False(t, ok, "cannot take more than on hand")

	ok, err = ledger.Decrement(ctx, variantID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	available, err := ledger.Available(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	require.NoError(t, ledger.Restock(ctx, variantID, 2))
	available, err = ledger.Available(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 2, available)

	assert.ErrorIs(t, ledger.Restock(ctx, uuid.New(), 1), shared.ErrNotFound)
	_, err = ledger.Available(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInventoryLedger_LastUnitUnderConcurrency(t *testing.T) {
	db := newSQLiteDatabase(t)
	scope := NewGormTransactionScope(db.DB, "")
	product := seedProduct(t, db.DB, 5000, 1)
	variantID := product.Variants[0].ID

	const buyers = 8
	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := scope.Execute(context.Background(), func(repos transaction.Repositories) error {
				ok, err := repos.Inventory().Decrement(context.Background(), variantID, 1)
				if err != nil {
					return err
				}
				if ok {
					won.Add(1)
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load(), "exactly one buyer gets the last unit")
	available, err := NewGormInventoryLedger(db.DB).Available(context.Background(), variantID)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	db := newSQLiteDatabase(t)
	scope := NewGormTransactionScope(db.DB, "NODY")
	product := seedProduct(t, db.DB, 5000, 4)
	variantID := product.Variants[0].ID

	err := scope.Execute(context.Background(), func(repos transaction.Repositories) error {
		ok, err := repos.Inventory().Decrement(context.Background(), variantID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	available, err := NewGormInventoryLedger(db.DB).Available(context.Background(), variantID)
	require.NoError(t, err)
	assert.Equal(t, 4, available, "decrement is undone on rollback")
}

func TestGormCartRepository(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormCartRepository(db.DB)
	ctx := context.Background()
	product := seedProduct(t, db.DB, 5000, 10)
	userID := uuid.New()

	_, err := repo.FindByUser(ctx, userID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	c := cart.New(userID, valueobject.XOF)
	_, err = c.AddLine(product, &product.Variants[0], 2)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))
	assert.Equal(t, 1, c.Version, "insert keeps the initial version")

	loaded, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	assert.Equal(t, 2, loaded.Lines[0].Quantity)
	assert.Equal(t, "Indigo", loaded.Lines[0].Color)
	assert.True(t, loaded.Subtotal().Equal(decimal.NewFromInt(10000)))

	stale, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, loaded.UpdateQuantity(loaded.Lines[0].ID, 5))
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	stale.Clear()
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)

	final, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, final.Lines[0].Quantity)
}

func TestGormOrderRepository(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormOrderRepository(db.DB)
	ctx := context.Background()
	product := seedProduct(t, db.DB, 5000, 10)
	userID := uuid.New()

	order := newTestOrder(t, "NODY-20240601-00001", userID, product, 2)
	require.NoError(t, repo.Create(ctx, order))

	t.Run("FindByID returns lines and addresses", func(t *testing.T) {
		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderNumber, found.OrderNumber)
		require.Len(t, found.Lines, 1)
		assert.Equal(t, "Boubou Brodé", found.Lines[0].ProductName)
		assert.True(t, found.Total.Equal(decimal.NewFromInt(11500)))
		assert.Equal(t, "Dakar", found.ShippingAddress.City)
		assert.Equal(t, found.ShippingAddress, found.BillingAddress)
		assert.Contains(t, found.StatusTimestamps, trade.OrderStatusPending)
	})

	t.Run("FindByIDForUser hides other users' orders", func(t *testing.T) {
		_, err := repo.FindByIDForUser(ctx, uuid.New(), order.ID)
		assert.ErrorIs(t, err, trade.ErrOrderNotFound)

		found, err := repo.FindByIDForUser(ctx, userID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, found.ID)
	})

	t.Run("FindByNumber", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, "NODY-20240601-00001")
		require.NoError(t, err)
		assert.Equal(t, order.ID, found.ID)
	})

	t.Run("SaveWithLock detects stale writes", func(t *testing.T) {
		fresh, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		stale, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)

		changed, err := fresh.MarkPaid("pi_test_1", time.Now())
		require.NoError(t, err)
		require.True(t, changed)
		require.NoError(t, repo.SaveWithLock(ctx, fresh))

		require.NoError(t, stale.Cancel("changed my mind"))
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

		byIntent, err := repo.FindByPaymentIntent(ctx, "pi_test_1")
		require.NoError(t, err)
		assert.Equal(t, trade.OrderStatusConfirmed, byIntent.Status)
		assert.Equal(t, trade.PaymentStatusPaid, byIntent.PaymentStatus)
		assert.NotNil(t, byIntent.PaidAt)
	})

	t.Run("SaveWithLock reports a missing order", func(t *testing.T) {
		ghost := newTestOrder(t, "NODY-20240601-00099", userID, product, 1)
		assert.ErrorIs(t, repo.SaveWithLock(ctx, ghost), trade.ErrOrderNotFound)
	})

	t.Run("FindByUser pages newest first", func(t *testing.T) {
		second := newTestOrder(t, "NODY-20240601-00002", userID, product, 1)
		second.CreatedAt = order.CreatedAt.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, newTestOrder(t, "NODY-20240601-00003", uuid.New(), product, 1)))

		orders, total, err := repo.FindByUser(ctx, userID, shared.Filter{Page: 1, PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, orders, 1)
		assert.Equal(t, "NODY-20240601-00002", orders[0].OrderNumber)

		pending, total, err := repo.FindByUser(ctx, userID, shared.Filter{Status: string(trade.OrderStatusPending)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, pending, 1)

		_, all, err := repo.FindAll(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(3), all)
	})

	t.Run("Statistics counts paid revenue only", func(t *testing.T) {
		stats, err := repo.Statistics(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalOrders)
		assert.Equal(t, int64(1), stats.PaidOrders)
		assert.Equal(t, int64(2), stats.ByStatus[trade.OrderStatusPending])
		assert.Equal(t, int64(1), stats.ByStatus[trade.OrderStatusConfirmed])
		assert.True(t, stats.Revenue.Equal(decimal.NewFromInt(11500)), "got %s", stats.Revenue)
		assert.True(t, stats.AverageBasket.Equal(decimal.NewFromInt(11500)))
		require.Len(t, stats.RevenueByMonth, 1)
		assert.Equal(t, int64(1), stats.RevenueByMonth[0].Orders)
	})
}

func TestGormOrderNumberGenerator(t *testing.T) {
	db := newSQLiteDatabase(t)
	gen := NewGormOrderNumberGenerator(db.DB, "")
	ctx := context.Background()
	day := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	first, err := gen.Next(ctx, day)
	require.NoError(t, err)
	second, err := gen.Next(ctx, day.Add(time.Hour))
	require.NoError(t, err)
	nextDay, err := gen.Next(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "NODY-20240309-00001", first)
	assert.Equal(t, "NODY-20240309-00002", second)
	assert.Equal(t, "NODY-20240310-00001", nextDay)

	t.Run("each prefix counts on its own", func(t *testing.T) {
		other := NewGormOrderNumberGenerator(db.DB, "TEST")
		number, err := other.Next(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, "TEST-20240309-00001", number)

		number, err = gen.Next(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, "NODY-20240309-00003", number)
	})
}

func TestGormPaymentRepository(t *testing.T) {
	db := newSQLiteDatabase(t)
	orders := NewGormOrderRepository(db.DB)
	repo := NewGormPaymentRepository(db.DB)
	ctx := context.Background()
	product := seedProduct(t, db.DB, 5000, 10)

	order := newTestOrder(t, "NODY-20240601-00010", uuid.New(), product, 1)
	require.NoError(t, orders.Create(ctx, order))
	p := newTestPayment(t, order, "pi_repo_1")
	require.NoError(t, repo.Create(ctx, p))

	found, err := repo.FindByIntentID(ctx, "pi_repo_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.True(t, found.Amount.Equal(order.Total))
	assert.Equal(t, payment.StatusPending, found.Status)

	open, err := repo.FindOpenByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, open.ID)

	pending, err := repo.FindStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pi_repo_1", pending[0].IntentID)
	pending, err = repo.FindStale(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stale, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)

	require.True(t, found.RecordFailure(payment.LastError{Code: "card_declined", Message: "Your card was declined.", Type: "card_error"}, time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, found))

	failed, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.Attempts)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "card_declined", failed.LastError.Code)

	require.True(t, stale.MarkSucceeded(time.Now()))
	assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

	pending, err = repo.FindStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed payments wait for the customer")

	require.True(t, failed.MarkSucceeded(time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, failed))
	_, err = repo.FindOpenByOrder(ctx, order.ID)
	assert.ErrorIs(t, err, payment.ErrPaymentNotFound)

	list, total, err := repo.FindByUser(ctx, order.UserID, shared.Filter{Status: string(payment.StatusSucceeded)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].SucceededAt)
	require.NotNil(t, list[0].LastError, "the earlier decline stays on record")
}

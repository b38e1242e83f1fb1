package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInventoryLedger_Decrement_SQL(t *testing.T) {
	t.Run("guards the update with the stock condition", func(t *testing.T) {
		db, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		ledger := NewGormInventoryLedger(db)
		variantID := uuid.New()

		mock.ExpectExec(`UPDATE "product_variants" SET "quantity_on_hand"=quantity_on_hand - \$1.* WHERE id = \$\d+ AND quantity_on_hand >= \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := ledger.Decrement(context.Background(), variantID, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero affected rows means not enough stock", func(t *testing.T) {
		db, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		ledger := NewGormInventoryLedger(db)

		mock.ExpectExec(`UPDATE "product_variants"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := ledger.Decrement(context.Background(), uuid.New(), 5)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive quantities without touching the database", func(t *testing.T) {
		db, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()

		_, err := NewGormInventoryLedger(db).Decrement(context.Background(), uuid.New(), 0)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOrderNumberGenerator_SQL(t *testing.T) {
	db, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	mock.ExpectQuery(`INSERT INTO order_sequences \(prefix, day, value\) VALUES \(\$1, \$2, 1\)\s+ON CONFLICT \(prefix, day\) DO UPDATE SET value = order_sequences.value \+ 1\s+RETURNING value`).
		WithArgs("NODY", "20240309").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(42))

	number, err := NewGormOrderNumberGenerator(db, "NODY").Next(context.Background(), time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "NODY-20240309-00042", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_SaveWithLock_SQL(t *testing.T) {
	db, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()
	repo := NewGormOrderRepository(db)

	order := newTestOrder(t, "NODY-20240601-00001", uuid.New(), &seedlessProduct, 1)
	order.Version = 3

	mock.ExpectExec(`UPDATE "orders" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE id = \$1`).
		WithArgs(order.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.SaveWithLock(context.Background(), order)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 3, order.Version, "version is untouched on conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

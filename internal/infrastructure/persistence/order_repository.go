package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, args ...any) (*trade.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where(query, args...).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, trade.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByIDForUser finds an order that belongs to userID
func (r *GormOrderRepository) FindByIDForUser(ctx context.Context, userID, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(ctx, "id = ? AND user_id = ?", id, userID)
}

// FindByNumber finds an order by its order number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

// FindByPaymentIntent finds the order linked to a processor intent
func (r *GormOrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (*trade.Order, error) {
	if intentID == "" {
		return nil, trade.ErrOrderNotFound
	}
	return r.findOne(ctx, "payment_intent_id = ?", intentID)
}

// FindByUser lists the orders of a user
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]trade.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("user_id = ?", userID), filter)
}

// FindAll lists every order
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]trade.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
}

func (r *GormOrderRepository) list(ctx context.Context, query *gorm.DB, filter shared.Filter) ([]trade.Order, int64, error) {
	filter.Normalize()
	query = applyPeriodFilter(query, filter)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OrderModel
	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Order(orderClause(filter, OrderSortFields)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]trade.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts a new order with its lines
func (r *GormOrderRepository) Create(ctx context.Context, order *trade.Order) error {
	return r.db.WithContext(ctx).Create(models.OrderModelFromDomain(order)).Error
}

// SaveWithLock updates the mutable order fields when the version still matches.
// Lines are frozen at checkout and never rewritten.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *trade.Order) error {
	db := r.db.WithContext(ctx)
	currentVersion := order.Version
	model := models.OrderModelFromDomain(order)
	model.Version = currentVersion + 1
	model.UpdatedAt = time.Now()

	result := db.Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", order.ID, currentVersion).
		Updates(map[string]any{
			"status":             model.Status,
			"payment_status":     model.PaymentStatus,
			"payment_method":     model.PaymentMethod,
			"payment_intent_id":  model.PaymentIntentID,
			"paid_at":            model.PaidAt,
			"carrier":            model.Carrier,
			"tracking_number":    model.TrackingNumber,
			"tracking_url":       model.TrackingURL,
			"shipped_at":         model.ShippedAt,
			"estimated_delivery": model.EstimatedDelivery,
			"status_timestamps":  model.StatusTimestamps,
			"cancel_reason":      model.CancelReason,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return trade.ErrOrderNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	order.Version = model.Version
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// statisticsRow is the projection read by Statistics
type statisticsRow struct {
	Status        trade.OrderStatus
	PaymentStatus trade.PaymentStatus
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// Statistics aggregates counts and paid revenue. Rows are folded in Go so the
// same code runs on postgres and sqlite.
func (r *GormOrderRepository) Statistics(ctx context.Context, from, to *time.Time) (*trade.OrderStatistics, error) {
	query := applyPeriodFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), shared.Filter{From: from, To: to})

	var rows []statisticsRow
	if err := query.Select("status, payment_status, total, created_at").Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &trade.OrderStatistics{
		ByStatus:       make(map[trade.OrderStatus]int64),
		Revenue:        decimal.Zero,
		AverageBasket:  decimal.Zero,
		RevenueByMonth: make([]trade.MonthlyRevenue, 0),
	}
	months := make(map[string]*trade.MonthlyRevenue)
	for _, row := range rows {
		stats.TotalOrders++
		stats.ByStatus[row.Status]++
		if !countsAsRevenue(row.PaymentStatus) {
			continue
		}
		stats.PaidOrders++
		stats.Revenue = stats.Revenue.Add(row.Total)

		key := row.CreatedAt.UTC().Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &trade.MonthlyRevenue{Month: key, Revenue: decimal.Zero}
			months[key] = m
		}
		m.Orders++
		m.Revenue = m.Revenue.Add(row.Total)
	}
	if stats.PaidOrders > 0 {
		stats.AverageBasket = stats.Revenue.Div(decimal.NewFromInt(stats.PaidOrders)).Round(2)
	}
	for _, m := range months {
		stats.RevenueByMonth = append(stats.RevenueByMonth, *m)
	}
	sort.Slice(stats.RevenueByMonth, func(i, j int) bool {
		return stats.RevenueByMonth[i].Month < stats.RevenueByMonth[j].Month
	})
	return stats, nil
}

func countsAsRevenue(status trade.PaymentStatus) bool {
	return status == trade.PaymentStatusPaid || status == trade.PaymentStatusPartiallyRefunded
}

func applyPeriodFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

var _ trade.OrderRepository = (*GormOrderRepository)(nil)

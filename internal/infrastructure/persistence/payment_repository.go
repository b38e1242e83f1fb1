package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements payment.Repository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query *gorm.DB) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIntentID finds a payment by processor intent id
func (r *GormPaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("intent_id = ?", intentID))
}

// FindOpenByOrder finds the newest payment of the order that can still succeed
func (r *GormPaymentRepository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	open := []payment.Status{payment.StatusPending, payment.StatusRequiresAction, payment.StatusFailed}
	return r.findOne(ctx, r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, open).
		Order("created_at DESC"))
}

// FindByUser lists the payments of a user
func (r *GormPaymentRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]payment.Payment, int64, error) {
	filter.Normalize()
	query := applyPeriodFilter(r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("user_id = ?", userID), filter)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentModel
	if err := query.Order(orderClause(filter, PaymentSortFields)).Offset(filter.Offset()).Limit(filter.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	payments := make([]payment.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, total, nil
}

// FindStale lists unsettled payments whose last update is older than before
func (r *GormPaymentRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []payment.Status{payment.StatusPending, payment.StatusRequiresAction}, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	payments := make([]payment.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error
}

// SaveWithLock updates a payment when its version still matches
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	db := r.db.WithContext(ctx)
	currentVersion := p.Version
	model := models.PaymentModelFromDomain(p)
	model.Version = currentVersion + 1
	model.UpdatedAt = time.Now()

	result := db.Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", p.ID, currentVersion).
		Updates(map[string]any{
			"client_secret":      model.ClientSecret,
			"status":             model.Status,
			"attempts":           model.Attempts,
			"last_error_code":    model.LastErrorCode,
			"last_error_message": model.LastErrorMessage,
			"last_error_type":    model.LastErrorType,
			"refunded_amount":    model.RefundedAmount,
			"refund_reason":      model.RefundReason,
			"succeeded_at":       model.SucceededAt,
			"failed_at":          model.FailedAt,
			"refunded_at":        model.RefundedAt,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.PaymentModel{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return payment.ErrPaymentNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	p.Version = model.Version
	p.UpdatedAt = model.UpdatedAt
	return nil
}

var _ payment.Repository = (*GormPaymentRepository)(nil)

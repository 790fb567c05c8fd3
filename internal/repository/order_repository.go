package repository

import (
	"context"
	"errors"
	"time"

	"billing-backend/internal/models"

	"gorm.io/gorm"
)

// OrderRepository = kontrak ke modul order (order dibuat di luar modul billing,
// kita cuma baca + update status/tagihannya).
type OrderRepository interface {
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uint64, status string, gatewayOrderID *string) error
	UpdateDueAmount(ctx context.Context, id uint64, amount int64) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	var order models.Order
	if err := txOrDB(ctx, r.db).WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint64, status string, gatewayOrderID *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	// GatewayOrderID cuma diisi sekali (EMI pertama), jangan ditimpa NULL
	if gatewayOrderID != nil {
		updates["gateway_order_id"] = *gatewayOrderID
	}

	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *orderRepository) UpdateDueAmount(ctx context.Context, id uint64, amount int64) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"due_amount": amount, "updated_at": time.Now()}).Error
}

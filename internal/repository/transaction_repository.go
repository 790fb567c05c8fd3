package repository

import (
	"context"
	"errors"
	"time"

	"billing-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResolveFields = hasil akhir satu attempt dari webhook gateway.
type ResolveFields struct {
	Status               string
	Success              bool
	GatewayTransactionID string
	GatewayOrderID       string
	RawPayload           datatypes.JSON
}

type TransactionRepository interface {
	// FindAuthoritative cari baris otoritatif satu order untuk kind tertentu
	// (dipakai kind update-in-place + deteksi EMI pertama)
	FindAuthoritative(ctx context.Context, kind string, orderID uint64) (*models.Transaction, error)
	// FindByReference cari baris by (kind, id transaksi gateway) — kunci idempotensi kind append
	FindByReference(ctx context.Context, kind, gatewayTransactionID string) (*models.Transaction, error)
	Create(ctx context.Context, trx *models.Transaction) error
	// Resolve update baris ke status final, TAPI cuma kalau masih PENDING.
	// Return false kalau baris sudah resolved (replay webhook) — caller wajib no-op.
	Resolve(ctx context.Context, id uint64, fields ResolveFields) (bool, error)
	ListByUser(ctx context.Context, userID uint64, page, limit int) ([]models.Transaction, int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) FindAuthoritative(ctx context.Context, kind string, orderID uint64) (*models.Transaction, error) {
	var trx models.Transaction
	err := txOrDB(ctx, r.db).WithContext(ctx).
		Where("kind = ? AND order_id = ?", kind, orderID).
		Order("created_at desc").
		First(&trx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trx, nil
}

func (r *transactionRepository) FindByReference(ctx context.Context, kind, gatewayTransactionID string) (*models.Transaction, error) {
	var trx models.Transaction
	err := txOrDB(ctx, r.db).WithContext(ctx).
		Where("kind = ? AND gateway_transaction_id = ?", kind, gatewayTransactionID).
		First(&trx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trx, nil
}

func (r *transactionRepository) Create(ctx context.Context, trx *models.Transaction) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Create(trx).Error
}

func (r *transactionRepository) Resolve(ctx context.Context, id uint64, fields ResolveFields) (bool, error) {
	// Conditional update: WHERE status = PENDING.
	// Kalau webhook dikirim dua kali, update kedua gak kena baris apapun.
	res := txOrDB(ctx, r.db).WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Updates(map[string]interface{}{
			"status":                 fields.Status,
			"success":                fields.Success,
			"gateway_transaction_id": fields.GatewayTransactionID,
			"gateway_order_id":       fields.GatewayOrderID,
			"raw_payload":            fields.RawPayload,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID uint64, page, limit int) ([]models.Transaction, int64, error) {
	var trxs []models.Transaction
	var total int64

	q := txOrDB(ctx, r.db).WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at desc"). // Terbaru duluan
						Offset((page - 1) * limit).
						Limit(limit).
						Find(&trxs).Error
	if err != nil {
		return nil, 0, err
	}

	return trxs, total, nil
}

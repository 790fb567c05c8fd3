package repository

import (
	"context"
	"errors"
	"time"

	"billing-backend/internal/models"

	"gorm.io/gorm"
)

type PlanRepository interface {
	// FindDue ambil semua plan yang siap ditagih:
	// ONGOING, belum lunas, jatuh tempo <= now, dan tidak sedang in-flight
	// (charge_fired_at kosong atau sudah lebih tua dari inflightBefore).
	FindDue(ctx context.Context, now time.Time, inflightBefore time.Time) ([]models.InstallmentPlan, error)
	FindByOrderID(ctx context.Context, orderID uint64) (*models.InstallmentPlan, error)
	// Advance nambah installments_paid satu + set status/jadwal berikutnya.
	// Di-guard "paid < count" di query biar replay gak bisa nambah dua kali.
	Advance(ctx context.Context, planID uint64, status string, nextDueDate *time.Time) error
	// Reschedule dipakai jalur gagal: jadwal maju, counter TIDAK berubah
	Reschedule(ctx context.Context, planID uint64, nextDueDate time.Time) error
	MarkChargeFired(ctx context.Context, planID uint64, at time.Time) error
	ClearChargeFired(ctx context.Context, planID uint64) error
}

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) FindDue(ctx context.Context, now time.Time, inflightBefore time.Time) ([]models.InstallmentPlan, error) {
	var plans []models.InstallmentPlan
	err := txOrDB(ctx, r.db).WithContext(ctx).
		Where("status = ?", models.PlanStatusOngoing).
		Where("installments_paid < installment_count").
		Where("next_due_date IS NOT NULL AND next_due_date <= ?", now).
		Where("charge_fired_at IS NULL OR charge_fired_at < ?", inflightBefore).
		Find(&plans).Error
	return plans, err
}

func (r *planRepository) FindByOrderID(ctx context.Context, orderID uint64) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	err := txOrDB(ctx, r.db).WithContext(ctx).Where("order_id = ?", orderID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) Advance(ctx context.Context, planID uint64, status string, nextDueDate *time.Time) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.InstallmentPlan{}).
		Where("id = ? AND installments_paid < installment_count", planID).
		Updates(map[string]interface{}{
			"installments_paid": gorm.Expr("installments_paid + 1"),
			"status":            status,
			"next_due_date":     nextDueDate,
			"charge_fired_at":   nil,
			"updated_at":        time.Now(),
		}).Error
}

func (r *planRepository) Reschedule(ctx context.Context, planID uint64, nextDueDate time.Time) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.InstallmentPlan{}).
		Where("id = ?", planID).
		Updates(map[string]interface{}{
			"next_due_date":   nextDueDate,
			"charge_fired_at": nil,
			"updated_at":      time.Now(),
		}).Error
}

func (r *planRepository) MarkChargeFired(ctx context.Context, planID uint64, at time.Time) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.InstallmentPlan{}).
		Where("id = ?", planID).
		Update("charge_fired_at", at).Error
}

func (r *planRepository) ClearChargeFired(ctx context.Context, planID uint64) error {
	return txOrDB(ctx, r.db).WithContext(ctx).Model(&models.InstallmentPlan{}).
		Where("id = ?", planID).
		Update("charge_fired_at", nil).Error
}

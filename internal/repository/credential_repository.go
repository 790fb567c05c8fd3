package repository

import (
	"context"
	"errors"

	"billing-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepository interface {
	// Save upsert by gateway_order_id: gateway kadang push token yang sama
	// dua kali, itu bukan error
	Save(ctx context.Context, cred *models.SavedCredential) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.SavedCredential, error)
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Save(ctx context.Context, cred *models.SavedCredential) error {
	return txOrDB(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_order_id"}},
			DoNothing: true, // Token immutable, yang pertama yang berlaku
		}).
		Create(cred).Error
}

func (r *credentialRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.SavedCredential, error) {
	var cred models.SavedCredential
	err := txOrDB(ctx, r.db).WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

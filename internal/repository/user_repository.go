package repository

import (
	"context"
	"errors"

	"billing-backend/internal/models"

	"gorm.io/gorm"
)

// UserRepository cuma buat ambil data billing + token FCM.
// Urusan akun/password ada di service lain.
type UserRepository interface {
	GetByID(ctx context.Context, id uint64) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := txOrDB(ctx, r.db).WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

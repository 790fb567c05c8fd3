package repository

import (
	"context"
	"errors"
	"time"

	"billing-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	// GetByUserID ambil wallet + history mutasi. Kalau belum ada, dibuatkan kosong.
	GetByUserID(ctx context.Context, userID uint64) (*models.Wallet, error)
	// Credit nambah saldo SEKALI per referenceID (id transaksi gateway).
	// Replay dengan referenceID sama = no-op, balikin entry lama.
	Credit(ctx context.Context, userID uint64, amount int64, referenceID string) (*models.WalletLedgerEntry, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uint64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := txOrDB(ctx, r.db).WithContext(ctx).Preload("Entries").Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// Belum punya wallet, buatkan kosong
		wallet = models.Wallet{UserID: userID, Balance: 0}
		if err := txOrDB(ctx, r.db).WithContext(ctx).Create(&wallet).Error; err != nil {
			return nil, err
		}
	}
	return &wallet, nil
}

func (r *walletRepository) Credit(ctx context.Context, userID uint64, amount int64, referenceID string) (*models.WalletLedgerEntry, error) {
	var entry models.WalletLedgerEntry

	err := txOrDB(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Cek dulu: reference ini sudah pernah masuk?
		var existing models.WalletLedgerEntry
		err := tx.Where("reference_id = ?", referenceID).First(&existing).Error
		if err == nil {
			entry = existing // Replay, saldo JANGAN disentuh lagi
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Lock baris wallet biar dua webhook barengan gak balapan hitung saldo
		var wallet models.Wallet
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			wallet = models.Wallet{UserID: userID, Balance: 0}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		entry = models.WalletLedgerEntry{
			WalletID:      wallet.ID,
			Amount:        amount,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance + amount,
			ReferenceID:   referenceID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Updates(map[string]interface{}{"balance": entry.BalanceAfter, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

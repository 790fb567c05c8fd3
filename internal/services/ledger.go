package services

import (
	"context"
	"errors"

	"billing-backend/internal/models"
	"billing-backend/internal/repository"

	"go.uber.org/zap"
)

// LedgerService menjaga aturan pencatatan attempt:
//   - Kind update-in-place (DIRECT/ADVANCE/PAYMENT_LINK): satu baris otoritatif
//     per order, dibuat pas charge dimulai, di-update pas webhook datang.
//   - Kind append (DUE/EMI-lanjutan/WALLET_RECHARGE): baris BARU per attempt,
//     dikunci pakai (kind, id transaksi gateway).
//
// Dua-duanya aman di-replay: webhook yang sama dikirim dua kali gak boleh
// menghasilkan dua baris SUCCESS atau efek samping dobel.
type LedgerService struct {
	transactions repository.TransactionRepository
	log          *zap.SugaredLogger
}

func NewLedgerService(transactions repository.TransactionRepository, log *zap.SugaredLogger) *LedgerService {
	return &LedgerService{transactions: transactions, log: log}
}

// Attempt = data satu percobaan charge yang mau dicatat.
type Attempt struct {
	Kind            string
	OrderID         *uint64
	UserID          uint64
	Amount          int64
	MerchantOrderID string
	Resolution      repository.ResolveFields
}

// RecordPending bikin (atau pakai ulang) baris otoritatif PENDING pas charge
// dimulai dari endpoint interaktif. Kalau masih ada baris PENDING untuk order
// yang sama, baris itu yang dipakai lagi — user retry checkout itu wajar.
func (s *LedgerService) RecordPending(ctx context.Context, attempt Attempt) (*models.Transaction, error) {
	existing, err := s.transactions.FindAuthoritative(ctx, attempt.Kind, *attempt.OrderID)
	if err == nil && existing.Status == models.TxStatusPending {
		return existing, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	trx := &models.Transaction{
		OrderID:         attempt.OrderID,
		UserID:          attempt.UserID,
		Kind:            attempt.Kind,
		Status:          models.TxStatusPending,
		Amount:          attempt.Amount,
		MerchantOrderID: attempt.MerchantOrderID,
	}
	if err := s.transactions.Create(ctx, trx); err != nil {
		return nil, err
	}
	return trx, nil
}

// ResolveAuthoritative menyelesaikan baris otoritatif satu order.
// applied=false artinya baris sudah resolved duluan (replay webhook) dan
// caller WAJIB skip semua efek samping.
func (s *LedgerService) ResolveAuthoritative(ctx context.Context, kind string, orderID uint64, fields repository.ResolveFields) (*models.Transaction, bool, error) {
	trx, err := s.transactions.FindAuthoritative(ctx, kind, orderID)
	if err != nil {
		return nil, false, err
	}

	if trx.Status != models.TxStatusPending {
		s.log.Infow("webhook replay, baris sudah final", "kind", kind, "order_id", orderID, "status", trx.Status)
		return trx, false, nil
	}

	applied, err := s.transactions.Resolve(ctx, trx.ID, fields)
	if err != nil {
		return nil, false, err
	}
	if applied {
		trx.Status = fields.Status
		trx.Success = fields.Success
		trx.GatewayTransactionID = fields.GatewayTransactionID
		trx.GatewayOrderID = fields.GatewayOrderID
	}
	return trx, applied, nil
}

// AppendAttempt mencatat attempt kind append. Attempt ini datang dari webhook,
// jadi barisnya langsung dibuat dengan status final — KECUALI sudah ada baris
// dengan referensi sama (replay), itu jadi no-op.
func (s *LedgerService) AppendAttempt(ctx context.Context, attempt Attempt) (*models.Transaction, bool, error) {
	existing, err := s.transactions.FindByReference(ctx, attempt.Kind, attempt.Resolution.GatewayTransactionID)
	if err == nil {
		// Sudah pernah dicatat. Kalau masih PENDING (harusnya gak mungkin,
		// tapi jaga-jaga) selesaikan; kalau sudah final, replay → no-op.
		if existing.Status != models.TxStatusPending {
			s.log.Infow("webhook replay, attempt sudah dicatat",
				"kind", attempt.Kind, "reference", attempt.Resolution.GatewayTransactionID)
			return existing, false, nil
		}
		applied, err := s.transactions.Resolve(ctx, existing.ID, attempt.Resolution)
		return existing, applied, err
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	trx := &models.Transaction{
		OrderID:              attempt.OrderID,
		UserID:               attempt.UserID,
		Kind:                 attempt.Kind,
		Status:               attempt.Resolution.Status,
		Success:              attempt.Resolution.Success,
		Amount:               attempt.Amount,
		MerchantOrderID:      attempt.MerchantOrderID,
		GatewayOrderID:       attempt.Resolution.GatewayOrderID,
		GatewayTransactionID: attempt.Resolution.GatewayTransactionID,
		RawPayload:           attempt.Resolution.RawPayload,
	}
	if err := s.transactions.Create(ctx, trx); err != nil {
		return nil, false, err
	}
	return trx, true, nil
}

// FindPendingFirstEMI ngecek apakah order ini masih punya cicilan pertama yang
// belum kelar. Dipakai reconciler buat bedain webhook EMI pertama vs lanjutan:
// attempt lanjutan gak pernah bikin baris PENDING (langsung final dari webhook).
func (s *LedgerService) FindPendingFirstEMI(ctx context.Context, orderID uint64) (*models.Transaction, error) {
	trx, err := s.transactions.FindAuthoritative(ctx, models.KindEMI, orderID)
	if err != nil {
		return nil, err
	}
	if trx.Status != models.TxStatusPending {
		return nil, repository.ErrNotFound
	}
	return trx, nil
}

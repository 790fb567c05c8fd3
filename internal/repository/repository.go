package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound dipakai semua repo biar caller gak perlu import gorm
// cuma buat ngecek record kosong.
var ErrNotFound = errors.New("data tidak ditemukan")

// TxManager menjalankan beberapa operasi repo dalam SATU transaksi DB.
// Dipakai reconciler: baris ledger + efek sampingnya (order/plan/wallet)
// harus commit bareng — kalau gagal di tengah, semua di-rollback dan
// webhook retry dari gateway bisa mengulang dari nol.
type TxManager interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxTxKey struct{}

type gormTxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, ctxTxKey{}, tx))
	})
}

// txOrDB: kalau context bawa transaksi dari TxManager, semua repo otomatis
// ikut transaksi itu; kalau nggak, pakai koneksi biasa.
func txOrDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(ctxTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return db
}

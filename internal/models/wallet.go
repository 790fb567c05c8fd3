package models

import "time"

type Wallet struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	UserID    uint64    `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"default:0" json:"balance"` // Minor units
	UpdatedAt time.Time `json:"updated_at"`

	// Relasi ke history mutasi saldo
	Entries []WalletLedgerEntry `gorm:"foreignKey:WalletID" json:"entries,omitempty"`
}

// WalletLedgerEntry = catatan mutasi saldo, immutable.
// Invariant: BalanceAfter = BalanceBefore + Amount untuk SETIAP baris,
// dan satu ReferenceID cuma boleh nambah saldo SEKALI (unique index).
type WalletLedgerEntry struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	WalletID      uint64    `gorm:"index;not null" json:"wallet_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	ReferenceID   string    `gorm:"uniqueIndex;size:64;not null" json:"reference_id"` // ID transaksi gateway
	CreatedAt     time.Time `json:"created_at"`
}

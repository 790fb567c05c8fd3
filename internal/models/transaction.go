package models

import (
	"time"

	"gorm.io/datatypes"
)

// Jenis transaksi. Tag ini juga yang dikirim ke gateway lewat metadata
// dan di-echo balik di webhook (kunci dispatch reconciler).
const (
	KindDirect         = "DIRECT"
	KindAdvance        = "ADVANCE"
	KindDue            = "DUE"
	KindEMI            = "EMI"
	KindPaymentLink    = "PAYMENT_LINK"
	KindWalletRecharge = "WALLET_RECHARGE"
)

const (
	TxStatusPending = "PENDING"
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"
)

// Transaction = satu baris per percobaan charge (ledger).
// DIRECT/ADVANCE/PAYMENT_LINK: satu baris otoritatif per order, di-update in place.
// DUE/EMI-lanjutan/WALLET_RECHARGE: baris BARU tiap attempt, karena order yang sama
// bisa ditagih berkali-kali. Baris ledger tidak pernah dihapus.
type Transaction struct {
	ID                   uint64         `gorm:"primaryKey" json:"id"`
	OrderID              *uint64        `gorm:"index" json:"order_id,omitempty"` // NULL untuk top-up wallet
	UserID               uint64         `gorm:"index" json:"user_id"`
	Kind                 string         `gorm:"size:20;not null;index:ix_tx_kind_ref" json:"kind"`
	Status               string         `gorm:"size:10;not null;default:PENDING" json:"status"`
	Success              bool           `gorm:"default:false" json:"success"`
	Amount               int64          `gorm:"not null" json:"amount"` // Minor units
	MerchantOrderID      string         `gorm:"size:64;index" json:"merchant_order_id"`
	GatewayOrderID       string         `gorm:"size:64;index" json:"gateway_order_id"`
	GatewayTransactionID string         `gorm:"size:64;index:ix_tx_kind_ref" json:"gateway_transaction_id"`
	RawPayload           datatypes.JSON `gorm:"type:json" json:"-"` // Body webhook mentah, buat audit/replay
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsAppendKind: jenis yang bikin baris baru per attempt (bukan update in place).
func IsAppendKind(kind string) bool {
	switch kind {
	case KindDue, KindEMI, KindWalletRecharge:
		return true
	}
	return false
}

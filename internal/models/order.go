package models

import "time"

// Status order yang dipakai modul pembayaran.
// Order dibuat oleh modul lain, kita cuma update statusnya pas transaksi kelar.
const (
	OrderStatusPending = "PENDING"
	OrderStatusPaid    = "PAID"
)

type Order struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	UserID         uint64    `gorm:"not null;index" json:"user_id"`
	TotalAmount    int64     `gorm:"not null" json:"total_amount"` // Minor units (sen), bukan float! Biar gak kena masalah pembulatan
	Status         string    `gorm:"size:30;not null;default:PENDING" json:"status"`
	GatewayOrderID *string   `gorm:"size:64;index" json:"gateway_order_id,omitempty"` // Diisi pas EMI pertama sukses, dipakai scheduler buat cari token kartu
	DueAmount      *int64    `json:"due_amount,omitempty"`                            // Sisa tagihan (tipe DUE). Pointer karena bisa NULL
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

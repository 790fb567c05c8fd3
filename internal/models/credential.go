package models

import (
	"time"

	"gorm.io/datatypes"
)

// SavedCredential = token kartu yang disimpan gateway setelah charge pertama
// sukses (force save). Dipakai scheduler buat nagih cicilan tanpa user hadir.
// Immutable setelah dibuat, dicari pakai GatewayOrderID.
type SavedCredential struct {
	ID             uint64         `gorm:"primaryKey" json:"id"`
	GatewayOrderID string         `gorm:"uniqueIndex;size:64;not null" json:"gateway_order_id"`
	Token          string         `gorm:"size:255;not null" json:"-"` // Jangan pernah dikirim balik ke frontend
	RawPayload     datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}

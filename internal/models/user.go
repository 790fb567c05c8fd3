package models

import (
	"time"

	"gorm.io/gorm"
)

// User merepresentasikan tabel 'users' di database.
// Akun & login diurus service lain; di sini kita cuma butuh data billing
// (nama, email, telepon) buat dikirim ke gateway + token FCM buat notifikasi.
type User struct {
	ID        uint64         `gorm:"primaryKey" json:"id"`
	FullName  string         `gorm:"size:100;not null" json:"full_name"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Phone     string         `gorm:"column:phone_number;size:20;unique" json:"phone"`
	FCMToken  string         `gorm:"size:255" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

package config

import (
	"fmt"
	"log"
	"os"

	"billing-backend/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// ConnectDB membuka koneksi MySQL dan migrasi semua tabel modul billing
func ConnectDB() {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASS"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Gagal konek database: ", err)
	}

	// AutoMigrate biar tabel kebentuk otomatis
	err = db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Transaction{},
		&models.InstallmentPlan{},
		&models.SavedCredential{},
		&models.Wallet{},
		&models.WalletLedgerEntry{},
	)
	if err != nil {
		log.Fatal("Gagal migrasi database: ", err)
	}

	DB = db
	log.Println("Database OK!")
}

package config

import "os"

// GatewayConfig nampung semua setting gateway dari .env.
// Jangan hardcode URL/currency di kode! (pernah kejadian, susah pindah region)
type GatewayConfig struct {
	BaseURL    string // Contoh: https://api.gateway.example
	APIKey     string
	HMACSecret string // Kunci verifikasi webhook, dipakai sebagai raw bytes
	Currency   string // Contoh: IDR / EGP

	// Integration ID beda antara charge interaktif (user hadir)
	// dan charge off-session (scheduler nagih pakai token tersimpan)
	IntegrationID           string
	OffSessionIntegrationID string

	// Midtrans (gateway kedua, checkout interaktif)
	MidtransServerKey string
}

func LoadGatewayConfig() GatewayConfig {
	cfg := GatewayConfig{
		BaseURL:                 os.Getenv("GATEWAY_BASE_URL"),
		APIKey:                  os.Getenv("GATEWAY_API_KEY"),
		HMACSecret:              os.Getenv("GATEWAY_HMAC_SECRET"),
		Currency:                os.Getenv("GATEWAY_CURRENCY"),
		IntegrationID:           os.Getenv("GATEWAY_INTEGRATION_ID"),
		OffSessionIntegrationID: os.Getenv("GATEWAY_OFFSESSION_INTEGRATION_ID"),
		MidtransServerKey:       os.Getenv("MIDTRANS_SERVER_KEY"),
	}

	if cfg.Currency == "" {
		cfg.Currency = "IDR" // Fallback kalau .env lupa diisi
	}

	return cfg
}

package handlers

import (
	"net/http"
	"strconv"

	"billing-backend/internal/config"
	"billing-backend/internal/gateway"
	"billing-backend/internal/models"
	"billing-backend/internal/repository"
	"billing-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WalletHandler struct {
	wallets repository.WalletRepository
	users   repository.UserRepository
	charger gateway.Charger
	cfg     config.GatewayConfig
}

func NewWalletHandler(
	wallets repository.WalletRepository,
	users repository.UserRepository,
	charger gateway.Charger,
	cfg config.GatewayConfig,
) *WalletHandler {
	return &WalletHandler{wallets: wallets, users: users, charger: charger, cfg: cfg}
}

// GetMyWallet menampilkan saldo saat ini & riwayat mutasi.
// Saldo cuma bisa nambah lewat webhook WALLET_RECHARGE yang sukses,
// gak ada endpoint nambah saldo manual.
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	userID, _ := c.Get("userID")

	wallet, err := h.wallets.GetByUserID(c.Request.Context(), userID.(uint64))
	if err != nil {
		utils.APIError(c, http.StatusInternalServerError, "Gagal ambil dompet", err)
		return
	}

	utils.APIResponse(c, http.StatusOK, true, "Dompet Saya", wallet)
}

type TopUpInput struct {
	Amount int64 `json:"amount" binding:"required,gt=0"` // Minor units
}

// TopUp mulai intention isi saldo. Saldonya sendiri BARU nambah pas webhook
// WALLET_RECHARGE sukses datang — endpoint ini cuma minta payment token.
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID, _ := c.Get("userID")

	var input TopUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "User tidak ditemukan", nil)
		return
	}

	// Top-up gak nempel ke order, jadi reference-nya pakai uuid
	merchantOrderID := "TOPUP-" + uuid.NewString()

	// Gak ada baris ledger di sini: WALLET_RECHARGE itu kind append,
	// barisnya dibuat pas webhook-nya datang
	intention, err := h.charger.CreateIntention(c.Request.Context(), gateway.IntentionRequest{
		Amount:          input.Amount,
		Currency:        h.cfg.Currency,
		IntegrationID:   h.cfg.IntegrationID,
		MerchantOrderID: merchantOrderID,
		Billing: gateway.BillingInfo{
			FirstName: user.FullName,
			Email:     user.Email,
			Phone:     user.Phone,
		},
		Metadata: gateway.Metadata{
			PaymentType: models.KindWalletRecharge,
			UserID:      strconv.FormatUint(user.ID, 10),
		},
	})
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Silakan lanjutkan top up", gin.H{
		"payment_token":     intention.PaymentToken,
		"merchant_order_id": merchantOrderID,
		"amount":            input.Amount,
	})
}

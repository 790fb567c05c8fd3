package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"billing-backend/internal/config"
	"billing-backend/internal/gateway"
	"billing-backend/internal/models"
	"billing-backend/internal/repository"
	"billing-backend/internal/services"
	"billing-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// PaymentHandler = endpoint interaktif (user hadir): mulai pembayaran,
// cicilan pertama, checkout midtrans, history transaksi.
// Semua dependency di-inject lewat constructor, gak ada client nyangkut
// di variabel global.
type PaymentHandler struct {
	ledger       *services.LedgerService
	scheduler    *services.Scheduler
	orders       repository.OrderRepository
	users        repository.UserRepository
	plans        repository.PlanRepository
	transactions repository.TransactionRepository
	creds        repository.CredentialRepository
	charger      gateway.Charger
	snap         *gateway.SnapClient
	cfg          config.GatewayConfig
}

func NewPaymentHandler(
	ledger *services.LedgerService,
	scheduler *services.Scheduler,
	orders repository.OrderRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	transactions repository.TransactionRepository,
	creds repository.CredentialRepository,
	charger gateway.Charger,
	snap *gateway.SnapClient,
	cfg config.GatewayConfig,
) *PaymentHandler {
	return &PaymentHandler{
		ledger:       ledger,
		scheduler:    scheduler,
		orders:       orders,
		users:        users,
		plans:        plans,
		transactions: transactions,
		creds:        creds,
		charger:      charger,
		snap:         snap,
		cfg:          cfg,
	}
}

type CreateIntentionInput struct {
	OrderID     uint64 `json:"order_id" binding:"required"`
	PaymentType string `json:"payment_type" binding:"required,oneof=DIRECT ADVANCE DUE"`
	Amount      int64  `json:"amount"` // Cuma dipakai ADVANCE (bayar sebagian)
}

// CreateIntention mulai satu charge biasa (DIRECT/ADVANCE/DUE).
// Balikannya payment token dari gateway buat redirect/checkout di frontend.
func (h *PaymentHandler) CreateIntention(c *gin.Context) {
	userID, _ := c.Get("userID")

	var input CreateIntentionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}

	// 1. Ambil order + user buat data billing
	order, err := h.orders.GetByID(c.Request.Context(), input.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.APIResponse(c, http.StatusNotFound, false, "Order tidak ditemukan", nil)
			return
		}
		utils.APIError(c, http.StatusInternalServerError, "Database error", err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "User tidak ditemukan", nil)
		return
	}

	// 2. Tentukan nominal sesuai jenisnya
	var amount int64
	switch input.PaymentType {
	case models.KindDirect:
		amount = order.TotalAmount
	case models.KindAdvance:
		if input.Amount <= 0 {
			utils.APIResponse(c, http.StatusBadRequest, false, "Nominal uang muka harus diisi", nil)
			return
		}
		amount = input.Amount
	case models.KindDue:
		if order.DueAmount == nil || *order.DueAmount <= 0 {
			utils.APIResponse(c, http.StatusBadRequest, false, "Order ini tidak punya sisa tagihan", nil)
			return
		}
		amount = *order.DueAmount
	}

	merchantOrderID := fmt.Sprintf("INV-%d-%d", order.ID, time.Now().Unix())

	// 3. Catat attempt PENDING dulu. Kind append (DUE) dilewati —
	// barisnya dibuat pas webhook-nya datang, satu baris per attempt
	if !models.IsAppendKind(input.PaymentType) {
		_, err = h.ledger.RecordPending(c.Request.Context(), services.Attempt{
			Kind:            input.PaymentType,
			OrderID:         &order.ID,
			UserID:          user.ID,
			Amount:          amount,
			MerchantOrderID: merchantOrderID,
		})
		if err != nil {
			utils.APIError(c, http.StatusInternalServerError, "Gagal mencatat transaksi", err)
			return
		}
	}

	// 4. Minta intention ke gateway
	intention, err := h.charger.CreateIntention(c.Request.Context(), gateway.IntentionRequest{
		Amount:          amount,
		Currency:        h.cfg.Currency,
		IntegrationID:   h.cfg.IntegrationID,
		MerchantOrderID: merchantOrderID,
		Billing: gateway.BillingInfo{
			FirstName: user.FullName,
			Email:     user.Email,
			Phone:     user.Phone,
		},
		Metadata: gateway.Metadata{
			OrderID:     strconv.FormatUint(order.ID, 10),
			PaymentType: input.PaymentType,
			UserID:      strconv.FormatUint(user.ID, 10),
		},
	})
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Silakan lanjutkan pembayaran", gin.H{
		"payment_token":     intention.PaymentToken,
		"gateway_order_id":  intention.GatewayOrderID,
		"merchant_order_id": merchantOrderID,
		"amount":            amount,
	})
}

type CreateEMIIntentionInput struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

// CreateEMIIntention mulai pembayaran cicilan PERTAMA.
// Token kartu di-force-save di gateway biar scheduler bisa nagih
// cicilan berikutnya tanpa user hadir.
func (h *PaymentHandler) CreateEMIIntention(c *gin.Context) {
	userID, _ := c.Get("userID")

	var input CreateEMIIntentionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}

	plan, err := h.plans.FindByOrderID(c.Request.Context(), input.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.APIResponse(c, http.StatusNotFound, false, "Order ini tidak punya rencana cicilan", nil)
			return
		}
		utils.APIError(c, http.StatusInternalServerError, "Database error", err)
		return
	}
	if plan.Status != models.PlanStatusOngoing || plan.InstallmentsPaid > 0 {
		utils.APIResponse(c, http.StatusBadRequest, false, "Cicilan pertama order ini sudah dibayar", nil)
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), input.OrderID)
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "Order tidak ditemukan", nil)
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "User tidak ditemukan", nil)
		return
	}

	merchantOrderID := fmt.Sprintf("INV-%d-%d", order.ID, time.Now().Unix())

	_, err = h.ledger.RecordPending(c.Request.Context(), services.Attempt{
		Kind:            models.KindEMI,
		OrderID:         &order.ID,
		UserID:          user.ID,
		Amount:          plan.InstallmentAmount,
		MerchantOrderID: merchantOrderID,
	})
	if err != nil {
		utils.APIError(c, http.StatusInternalServerError, "Gagal mencatat transaksi", err)
		return
	}

	intention, err := h.charger.CreateIntention(c.Request.Context(), gateway.IntentionRequest{
		Amount:          plan.InstallmentAmount,
		Currency:        h.cfg.Currency,
		IntegrationID:   h.cfg.IntegrationID,
		SaveCredential:  true, // Kunci fitur cicilan: token kartu disimpan gateway
		MerchantOrderID: merchantOrderID,
		Billing: gateway.BillingInfo{
			FirstName: user.FullName,
			Email:     user.Email,
			Phone:     user.Phone,
		},
		Metadata: gateway.Metadata{
			OrderID:     strconv.FormatUint(order.ID, 10),
			PaymentType: models.KindEMI,
			UserID:      strconv.FormatUint(user.ID, 10),
		},
	})
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Silakan bayar cicilan pertama", gin.H{
		"payment_token":      intention.PaymentToken,
		"gateway_order_id":   intention.GatewayOrderID,
		"merchant_order_id":  merchantOrderID,
		"installment_amount": plan.InstallmentAmount,
		"installment_count":  plan.InstallmentCount,
	})
}

type MidtransCheckoutInput struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

// MidtransCheckout = jalur pembayaran DIRECT lewat Midtrans Snap
// (gateway kedua, khusus interaktif).
func (h *PaymentHandler) MidtransCheckout(c *gin.Context) {
	userID, _ := c.Get("userID")

	var input MidtransCheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), input.OrderID)
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "Order tidak ditemukan", nil)
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		utils.APIResponse(c, http.StatusNotFound, false, "User tidak ditemukan", nil)
		return
	}

	merchantOrderID := fmt.Sprintf("INV-%d-%d", order.ID, time.Now().Unix())

	_, err = h.ledger.RecordPending(c.Request.Context(), services.Attempt{
		Kind:            models.KindDirect,
		OrderID:         &order.ID,
		UserID:          user.ID,
		Amount:          order.TotalAmount,
		MerchantOrderID: merchantOrderID,
	})
	if err != nil {
		utils.APIError(c, http.StatusInternalServerError, "Gagal mencatat transaksi", err)
		return
	}

	checkout, err := h.snap.CreateCheckout(merchantOrderID, order.TotalAmount, gateway.SnapCustomer{
		FullName: user.FullName,
		Email:    user.Email,
		Phone:    user.Phone,
	})
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Order Berhasil! Silakan Bayar.", gin.H{
		"order_id":     order.ID,
		"snap_token":   checkout.Token,       // <--- INI YG DIPAKAI FRONTEND
		"redirect_url": checkout.RedirectURL, // <--- Link pembayaran web
	})
}

type SaveCredentialInput struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	Token          string `json:"token" binding:"required"`
}

// SaveCredential nerima push token kartu dari gateway (event TOKEN).
// Upsert: gateway kadang push dua kali, itu bukan error.
func (h *PaymentHandler) SaveCredential(c *gin.Context) {
	// Body dibaca mentah karena payload aslinya ikut disimpan buat audit
	rawBody, err := c.GetRawData()
	if err != nil {
		utils.APIError(c, http.StatusBadRequest, "Gagal baca body", err)
		return
	}

	var input SaveCredentialInput
	if err := json.Unmarshal(rawBody, &input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}
	if input.GatewayOrderID == "" || input.Token == "" {
		utils.APIResponse(c, http.StatusBadRequest, false, "gateway_order_id dan token wajib diisi", nil)
		return
	}

	cred := &models.SavedCredential{
		GatewayOrderID: input.GatewayOrderID,
		Token:          input.Token,
		RawPayload:     datatypes.JSON(rawBody),
	}
	if err := h.creds.Save(c.Request.Context(), cred); err != nil {
		utils.APIError(c, http.StatusInternalServerError, "Gagal menyimpan token", err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Token tersimpan", nil)
}

// GetMyTransactions = history transaksi user, terbaru duluan, paginated.
func (h *PaymentHandler) GetMyTransactions(c *gin.Context) {
	userID, _ := c.Get("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	trxs, total, err := h.transactions.ListByUser(c.Request.Context(), userID.(uint64), page, limit)
	if err != nil {
		utils.APIError(c, http.StatusInternalServerError, "Gagal ambil history", err)
		return
	}

	utils.APIResponse(c, http.StatusOK, true, "History Transaksi", gin.H{
		"transactions": trxs,
		"page":         page,
		"limit":        limit,
		"total":        total,
	})
}

// TriggerEMICharge = trigger manual penagihan satu plan (buat admin/testing).
// Inputnya sama persis dengan yang dipakai scheduler.
func (h *PaymentHandler) TriggerEMICharge(c *gin.Context) {
	var input services.ChargeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.APIError(c, http.StatusBadRequest, "Input salah", err)
		return
	}

	if err := h.scheduler.ChargeByOrder(c.Request.Context(), input); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.APIResponse(c, http.StatusNotFound, false, "Plan cicilan tidak ditemukan", nil)
			return
		}
		utils.APIError(c, http.StatusInternalServerError, "Penagihan gagal", err)
		return
	}

	utils.APIResponse(c, http.StatusOK, true, "Penagihan ditembak, tunggu webhook", nil)
}

// respondGatewayError menerjemahkan error gateway ke response yang bener:
// salah input kita → 400, gateway nolak → 502 + body mentah buat diagnosa.
func respondGatewayError(c *gin.Context, err error) {
	if errors.Is(err, gateway.ErrValidation) {
		utils.APIError(c, http.StatusBadRequest, "Data pembayaran tidak lengkap", err)
		return
	}

	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		utils.APIError(c, http.StatusBadGateway, "Gateway menolak request", gwErr)
		return
	}

	utils.APIError(c, http.StatusInternalServerError, "Gagal menghubungi gateway", err)
}

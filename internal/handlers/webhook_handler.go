package handlers

import (
	"errors"
	"net/http"

	"billing-backend/internal/services"
	"billing-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// WebhookHandler nerima notifikasi server-to-server dari gateway.
// Aturan status code PENTING di sini: gateway pakai status buat mutusin
// kirim ulang atau nggak.
//   - 200 = sudah diproses ATAU sengaja diabaikan, jangan kirim lagi
//   - 401 = signature palsu, jangan kirim lagi
//   - 500 = gagal di tengah (misal DB error), TOLONG kirim ulang
type WebhookHandler struct {
	reconciler *services.Reconciler
}

func NewWebhookHandler(reconciler *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleGatewayNotification = webhook gateway utama (HMAC-signed).
func (h *WebhookHandler) HandleGatewayNotification(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		utils.APIError(c, http.StatusBadRequest, "Gagal baca body", err)
		return
	}

	if err := h.reconciler.HandleGatewayNotification(c.Request.Context(), rawBody); err != nil {
		if errors.Is(err, services.ErrAuthenticity) {
			utils.APIResponse(c, http.StatusUnauthorized, false, "Signature tidak valid", nil)
			return
		}
		// Non-2xx biar gateway retry — proses kita idempotent, aman dikirim ulang
		utils.APIError(c, http.StatusInternalServerError, "Gagal memproses notifikasi", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleMidtransNotification = webhook Midtrans (gateway kedua).
func (h *WebhookHandler) HandleMidtransNotification(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		utils.APIError(c, http.StatusBadRequest, "Gagal baca body", err)
		return
	}

	if err := h.reconciler.HandleMidtransNotification(c.Request.Context(), rawBody); err != nil {
		if errors.Is(err, services.ErrAuthenticity) {
			utils.APIResponse(c, http.StatusUnauthorized, false, "Signature tidak valid", nil)
			return
		}
		utils.APIError(c, http.StatusInternalServerError, "Gagal memproses notifikasi", err)
		return
	}

	// Response OK ke Midtrans (Wajib biar Midtrans tau kita udah terima)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

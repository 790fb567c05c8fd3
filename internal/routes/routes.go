package routes

import (
	"billing-backend/internal/handlers"
	"billing-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes masang semua route modul billing.
// Handler di-inject dari main, bukan diambil dari global.
func SetupRoutes(
	r *gin.Engine,
	payment *handlers.PaymentHandler,
	webhook *handlers.WebhookHandler,
	wallet *handlers.WalletHandler,
) {
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RateLimitMiddleware())

	// Grouping API dengan Versi (v1)
	api := r.Group("/api/v1")
	{
		// 1. ROUTE PUBLIK: webhook gateway.
		// Sengaja TANPA auth — yang manggil server gateway, bukan user.
		// Keasliannya dicek lewat signature di dalam handler.
		api.POST("/payments/gateway/notification", webhook.HandleGatewayNotification)
		api.POST("/payments/midtrans/notification", webhook.HandleMidtransNotification)

		// Push token kartu dari gateway (event TOKEN), juga server-to-server
		api.POST("/payments/gateway/token", payment.SaveCredential)

		// 2. PROTECTED ROUTES (Harus Login / Punya Token)
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Mulai pembayaran
			protected.POST("/payments/intention", payment.CreateIntention)
			protected.POST("/payments/emi/intention", payment.CreateEMIIntention)
			protected.POST("/payments/midtrans/checkout", payment.MidtransCheckout)

			// Trigger manual penagihan cicilan (input sama dengan scheduler)
			protected.POST("/payments/emi/charge", payment.TriggerEMICharge)

			// History & dompet
			protected.GET("/transactions", payment.GetMyTransactions)
			protected.GET("/wallet", wallet.GetMyWallet)
			protected.POST("/wallet/topup", wallet.TopUp)
		}
	}
}

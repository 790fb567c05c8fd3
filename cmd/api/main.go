package main

import (
	"context"
	"log"
	"os"

	"billing-backend/internal/config"
	"billing-backend/internal/gateway"
	"billing-backend/internal/handlers"
	"billing-backend/internal/repository"
	"billing-backend/internal/routes"
	"billing-backend/internal/services"
	"billing-backend/pkg/logger"
	"billing-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	logger.Initialize(os.Getenv("APP_ENV"))

	// 2. Connect DB + Firebase
	config.ConnectDB()
	utils.InitFCM()

	gwCfg := config.LoadGatewayConfig()

	// 3. Rakit dependency secara eksplisit — gak ada client gateway
	// nyangkut di global, semua lewat constructor
	orderRepo := repository.NewOrderRepository(config.DB)
	userRepo := repository.NewUserRepository(config.DB)
	trxRepo := repository.NewTransactionRepository(config.DB)
	planRepo := repository.NewPlanRepository(config.DB)
	credRepo := repository.NewCredentialRepository(config.DB)
	walletRepo := repository.NewWalletRepository(config.DB)

	charger := gateway.NewClient(gwCfg.BaseURL, gwCfg.APIKey)
	snapClient := gateway.NewSnapClient(gwCfg.MidtransServerKey, os.Getenv("APP_ENV") == "production")

	txManager := repository.NewTxManager(config.DB)

	ledger := services.NewLedgerService(trxRepo, logger.Log)
	reconciler := services.NewReconciler(
		ledger, orderRepo, userRepo, planRepo, walletRepo, txManager,
		[]byte(gwCfg.HMACSecret), gwCfg.MidtransServerKey,
		utils.SendNotification, logger.Log,
	)
	scheduler := services.NewScheduler(
		planRepo, orderRepo, userRepo, credRepo, charger,
		gwCfg.Currency, gwCfg.OffSessionIntegrationID, logger.Log,
	)

	paymentHandler := handlers.NewPaymentHandler(
		ledger, scheduler, orderRepo, userRepo, planRepo, trxRepo, credRepo,
		charger, snapClient, gwCfg,
	)
	webhookHandler := handlers.NewWebhookHandler(reconciler)
	walletHandler := handlers.NewWalletHandler(walletRepo, userRepo, charger, gwCfg)

	// 4. Scheduler cicilan jalan di background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	// 5. Init Router + Routes
	r := gin.Default()
	routes.SetupRoutes(r, paymentHandler, webhookHandler, walletHandler)

	r.GET("/ping", func(c *gin.Context) {
		utils.APIResponse(c, 200, true, "Server OK!", nil)
	})

	// 6. Run Server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Server berjalan di port " + port)
	r.Run(":" + port)
}

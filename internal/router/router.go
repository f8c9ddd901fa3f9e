// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/config"
	"github.com/licenseloom/loom-backend/internal/handlers"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/middleware"
	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)
	ledgerService := ledger.New(db)

	authService := services.NewAuthService(db, cfg)
	poolService := services.NewRewardPoolService(db, notificationService)
	licenseService := services.NewLicenseService(db, cfg, poolService, notificationService)
	derivativeService := services.NewDerivativeService(db, cfg, licenseService, poolService, notificationService)
	marketplaceService := services.NewMarketplaceService(db, cfg, poolService, notificationService)
	paymentService := services.NewPaymentService(db, cfg)
	adminService := services.NewAdminService(db, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	derivativeHandler := handlers.NewDerivativeHandler(derivativeService)
	marketplaceHandler := handlers.NewMarketplaceHandler(marketplaceService)
	poolHandler := handlers.NewPoolHandler(poolService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminHandler := handlers.NewAdminHandler(adminService)
	storageHandler := handlers.NewStorageHandler(storageService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// License asset routes
		assets := v1.Group("/assets")
		{
			assets.GET("", licenseHandler.GetAssets)
			assets.GET("/:id", licenseHandler.GetAsset)

			protected := assets.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", licenseHandler.CreateAsset)
				protected.POST("/rent", middleware.TradeRateLimit(), licenseHandler.Rent)
				protected.GET("/:id/rental-status", licenseHandler.GetRentalStatus)
				protected.POST("/:id/reconcile", licenseHandler.ReconcileExpiry)
				protected.POST("/bind-pool", middleware.AdminRequired(), licenseHandler.BindPool)
			}
		}

		// Derivative template routes
		templates := v1.Group("/templates")
		{
			templates.GET("", derivativeHandler.GetTemplates)
			templates.GET("/:id", derivativeHandler.GetTemplate)

			protected := templates.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", derivativeHandler.EnableTemplate)
				protected.POST("/mint", middleware.TradeRateLimit(), derivativeHandler.MintTemplate)
				protected.POST("/bind-pool", middleware.AdminRequired(), derivativeHandler.BindPool)
			}
		}

		// Marketplace routes
		market := v1.Group("/market")
		{
			market.GET("/listings", marketplaceHandler.GetListings)
			market.GET("/listings/:id", marketplaceHandler.GetListing)

			protected := market.Group("")
			protected.Use(middleware.AuthRequired(), middleware.TradeRateLimit())
			{
				protected.POST("/listings", marketplaceHandler.CreateListing)
				protected.POST("/buy", marketplaceHandler.Buy)
			}
		}

		// Reward pool routes
		pool := v1.Group("/pool")
		{
			pool.GET("", poolHandler.GetState)

			protected := pool.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/stake", middleware.TradeRateLimit(), poolHandler.Stake)
				protected.POST("/harvest", middleware.TradeRateLimit(), poolHandler.Harvest)
				protected.POST("/withdraw", middleware.TradeRateLimit(), poolHandler.Withdraw)
				protected.GET("/positions", poolHandler.GetPositions)
				protected.GET("/pending", poolHandler.GetPendingRewards)
			}
		}

		// Asset ledger routes
		ledgerRoutes := v1.Group("/ledger")
		ledgerRoutes.Use(middleware.AuthRequired())
		{
			ledgerRoutes.GET("/balances/:assetId", ledgerHandler.GetBalance)
			ledgerRoutes.POST("/approvals", ledgerHandler.SetApproval)
			ledgerRoutes.GET("/approvals/:operator", ledgerHandler.GetApproval)
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.POST("/intent", paymentHandler.CreateDepositIntent)
			payments.POST("/confirm", paymentHandler.ConfirmDeposit)
			payments.GET("/balance", paymentHandler.GetBalance)
			payments.GET("/history", paymentHandler.GetPaymentHistory)
		}

		// Metadata upload
		metadata := v1.Group("/metadata")
		metadata.Use(middleware.AuthRequired())
		{
			metadata.POST("/upload", middleware.UploadRateLimit(), storageHandler.UploadMetadata)
		}

		// Notification routes
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.GetNotifications)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/transactions", adminHandler.GetTransactions)
			admin.PUT("/templates/:id/disable", adminHandler.DisableTemplate)
		}
	}

	return r
}

package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shoporia/backend/controllers"
	"github.com/shoporia/backend/middlewares"
	"github.com/shoporia/backend/services"
)

func SetupRouter(db *gorm.DB, paymentSvc *services.PaymentService, paystackSvc *services.PaystackService, currencySvc *services.CurrencyService, monitor *services.PaymentMonitor) *gin.Engine {
	r := gin.Default()

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware())
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(db)
	orderCtrl := controllers.NewOrderController(db)
	paymentCtrl := controllers.NewPaymentController(db, paymentSvc)
	webhookCtrl := controllers.NewWebhookController(paymentSvc, paystackSvc)
	currencyCtrl := controllers.NewCurrencyController(db, currencySvc)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Membuat order (checkout tidak perlu login)
	r.POST("/orders", orderCtrl.CreateOrder)
	r.GET("/orders/:order_id", orderCtrl.GetOrderByID)

	// Lihat kurs yang tersedia
	r.GET("/currencies", currencyCtrl.GetAllCurrencies)

	// Inisialisasi pembayaran dengan middleware chain khusus
	paymentGroup := r.Group("/payments")
	paymentGroup.Use(
		middlewares.PaymentSecurityHeaders(),
		middlewares.PaymentRateLimiter(),
		middlewares.LogPaymentRequest(),
	)
	{
		paymentGroup.POST("", middlewares.ValidatePaymentRequest(), paymentCtrl.InitializePayment)
		paymentGroup.GET("/:reference/verify", paymentCtrl.VerifyPayment)
	}

	// Callback dari payment gateway (signature-verified, bukan JWT)
	r.POST("/payments/webhook", webhookCtrl.HandlePaymentWebhook)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	// PAYMENTS (staff/admin)
	auth.GET("/payments", paymentCtrl.GetAllPayments)
	auth.GET("/payments/:reference", paymentCtrl.GetPaymentByReference)
	auth.GET("/payments/:reference/transactions", paymentCtrl.GetPaymentTransactions)
	auth.POST("/payments/:reference/verify", paymentCtrl.VerifyPayment)
	auth.POST("/payments/:reference/refund", middlewares.RequireRole("admin"), paymentCtrl.RefundPayment)

	// Rekonsiliasi ledger
	auth.GET("/transactions", paymentCtrl.GetTransactionsByType)

	// ORDERS (staff/admin)
	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)

	// CURRENCIES (admin only)
	auth.GET("/currencies", currencyCtrl.GetAllCurrencies)
	auth.POST("/currencies", middlewares.RequireRole("admin"), currencyCtrl.UpsertCurrency)

	// Monitoring
	auth.GET("/metrics", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "OK",
			"data":   monitor.GetMetrics(),
		})
	})

	return r
}

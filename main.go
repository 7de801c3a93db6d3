package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/shoporia/backend/config"
	"github.com/shoporia/backend/middlewares"
	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/router"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

func init() {
	// Load .env file di awal sebelum apapun
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	cfg := config.Load()
	if cfg.PaystackSecretKey == "" {
		utils.ErrorLogger.Println("Warning: PAYSTACK_SECRET_KEY is not set, gateway calls will fail")
	}

	// Initialize DB
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	// Simpan koneksi database ke utils untuk digunakan di controller
	utils.InitDB(db)

	// Set gin mode
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db, cfg)

	// Setup rate limiter (50 requests per second per IP)
	rateLimiter := middlewares.NewRateLimiter(50, 1)

	// Wiring layanan pembayaran
	rateCache := services.NewRateCache(cfg.RateCacheTTL)
	currencySvc := services.NewCurrencyService(db, rateCache, cfg.BaseCurrency)
	paystackSvc := services.NewPaystackService(&services.PaystackConfig{
		SecretKey:   cfg.PaystackSecretKey,
		BaseURL:     cfg.PaystackBaseURL,
		CallbackURL: cfg.CallbackURL,
	})
	notificationSvc := services.NewNotificationService(db)
	paymentSvc := services.NewPaymentService(db, paystackSvc, currencySvc, notificationSvc, cfg)

	// Payment monitor untuk expiry sweep dan re-verify
	paymentMonitor := services.NewPaymentMonitor(paymentSvc)
	paymentMonitor.Start()
	defer paymentMonitor.Stop()

	// Setup router
	r := router.SetupRouter(db, paymentSvc, paystackSvc, currencySvc, paymentMonitor)
	r.Use(rateLimiter.RateLimit())

	// Set trusted proxies
	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	// Run server
	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB, cfg *config.Config) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Payment{},
		&models.PaymentTransaction{},
		&models.Currency{},
		&models.Notification{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	seedCurrencies(db, cfg)
}

// seedCurrencies makes sure the base currency exists so conversion can
// run on a fresh database.
func seedCurrencies(db *gorm.DB, cfg *config.Config) {
	var count int64
	db.Model(&models.Currency{}).Where("code = ?", cfg.BaseCurrency).Count(&count)
	if count > 0 {
		return
	}

	base := models.Currency{
		Code:     cfg.BaseCurrency,
		Symbol:   "$",
		Name:     "Base currency",
		Rate:     1.0,
		IsActive: true,
	}
	if err := db.Create(&base).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to seed base currency: %v", err)
	}
}

package Controllers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoporia/backend/config"
	"github.com/shoporia/backend/controllers"
	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

const webhookTestSecret = "sk_test_webhook_secret"

var webhookTestDBSeq int

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	webhookTestDBSeq++
	dsn := fmt.Sprintf("file:webhook_ctrl_test_%d?mode=memory&cache=shared", webhookTestDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(&models.Order{}, &models.Payment{}, &models.PaymentTransaction{},
		&models.Currency{}, &models.Notification{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func setupWebhookRouter(db *gorm.DB) *gin.Engine {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		PaystackSecretKey:   webhookTestSecret,
		BaseCurrency:        "USD",
		SupportedCurrencies: []string{"USD", "NGN"},
		MinPaymentAmount:    1.0,
		PaymentExpiry:       30 * time.Minute,
		RateCacheTTL:        time.Hour,
	}
	paystackSvc := services.NewPaystackService(&services.PaystackConfig{
		SecretKey: webhookTestSecret,
		BaseURL:   "https://api.paystack.co",
	})
	currencySvc := services.NewCurrencyService(db, services.NewRateCache(cfg.RateCacheTTL), cfg.BaseCurrency)
	paymentSvc := services.NewPaymentService(db, paystackSvc, currencySvc,
		services.NewNotificationService(db), cfg)

	webhookCtrl := controllers.NewWebhookController(paymentSvc, paystackSvc)

	router := gin.Default()
	router.POST("/payments/webhook", webhookCtrl.HandlePaymentWebhook)
	return router
}

func seedProcessingPayment(db *gorm.DB) *models.Payment {
	order := &models.Order{
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		OrderStatus:   models.OrderStatusPendingPayment,
		TotalAmount:   100.0,
	}
	db.Create(order)

	payment := &models.Payment{
		OrderID:           order.ID,
		Reference:         utils.GeneratePaymentReference(),
		ProviderReference: "PSTK-001",
		Amount:            75000.0,
		OriginalAmount:    100.0,
		BaseCurrency:      "USD",
		PaymentCurrency:   "NGN",
		ExchangeRate:      750.0,
		Status:            models.PaymentStatusProcessing,
		ExpiresAt:         time.Now().Add(30 * time.Minute),
	}
	db.Create(payment)
	return payment
}

func webhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/payments/webhook", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-x","status":"success"}}`)
	w := postWebhook(router, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-x","status":"success"}}`)
	w := postWebhook(router, body, webhookSignature("sk_test_wrong_secret", body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// No ledger writes on rejected deliveries.
	var count int64
	db.Model(&models.PaymentTransaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)

	body := []byte(`{"event": "charge.success", "data":`)
	w := postWebhook(router, body, webhookSignature(webhookTestSecret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookUnknownReferenceIsAccepted(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-nonexistent","status":"success","amount":7500000}}`)
	w := postWebhook(router, body, webhookSignature(webhookTestSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookAppliesChargeSuccess(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)
	payment := seedProcessingPayment(db)

	body := []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":%q,"status":"success","gateway_response":"Successful","amount":7500000}}`,
		payment.Reference))
	signature := webhookSignature(webhookTestSecret, body)

	w := postWebhook(router, body, signature)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Payment
	db.First(&reloaded, payment.ID)
	assert.Equal(t, models.PaymentStatusSuccess, reloaded.Status)
	assert.NotNil(t, reloaded.PaidAt)

	// Redelivery returns 200 without a second ledger entry.
	w = postWebhook(router, body, signature)
	assert.Equal(t, http.StatusOK, w.Code)

	var entries []models.PaymentTransaction
	db.Where("payment_id = ? AND type = ?", payment.ID, models.TransactionTypeWebhook).Find(&entries)
	assert.Len(t, entries, 1)
}

func TestWebhookAppliesChargeFailed(t *testing.T) {
	db := setupWebhookTestDB(t)
	router := setupWebhookRouter(db)
	payment := seedProcessingPayment(db)

	body := []byte(fmt.Sprintf(
		`{"event":"charge.failed","data":{"reference":%q,"status":"failed","gateway_response":"Declined","amount":7500000}}`,
		payment.Reference))

	w := postWebhook(router, body, webhookSignature(webhookTestSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Payment
	db.First(&reloaded, payment.ID)
	assert.Equal(t, models.PaymentStatusFailed, reloaded.Status)
	assert.Equal(t, "Declined", reloaded.ErrorMessage)
}

package Controllers_test

import (
	"bytes"
	"encoding/json"
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
	"github.com/shoporia/backend/middlewares"
	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

var paymentCtrlTestDBSeq int

func setupTestDBForPayments(t *testing.T) *gorm.DB {
	paymentCtrlTestDBSeq++
	dsn := fmt.Sprintf("file:payment_ctrl_test_%d?mode=memory&cache=shared", paymentCtrlTestDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(&models.Order{}, &models.Payment{}, &models.PaymentTransaction{},
		&models.Currency{}, &models.Notification{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.Create(&models.Currency{Code: "USD", Rate: 1.0, IsActive: true})
	db.Create(&models.Currency{Code: "NGN", Rate: 750.0, IsActive: true})

	order := models.Order{
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		OrderStatus:   models.OrderStatusPendingPayment,
		TotalAmount:   100.0,
	}
	db.Create(&order)
	return db
}

func fakeGatewayServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/transaction/initialize":
			w.Write([]byte(`{
				"status": true,
				"message": "Authorization URL created",
				"data": {
					"authorization_url": "https://checkout.paystack.com/abc123",
					"access_code": "abc123",
					"reference": "PSTK-001"
				}
			}`))
		default:
			w.Write([]byte(`{
				"status": true,
				"message": "Verification successful",
				"data": {"status": "success", "reference": "PSTK-001", "amount": 7500000, "gateway_response": "Successful", "currency": "NGN"}
			}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setupPaymentRouter(db *gorm.DB, gatewayURL string) *gin.Engine {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		PaystackSecretKey:   "sk_test_ctrl",
		PaystackBaseURL:     gatewayURL,
		CallbackURL:         "https://shop.example/payments/callback",
		BaseCurrency:        "USD",
		SupportedCurrencies: []string{"USD", "NGN"},
		MinPaymentAmount:    1.0,
		PaymentExpiry:       30 * time.Minute,
		RateCacheTTL:        time.Hour,
	}
	paystackSvc := services.NewPaystackService(&services.PaystackConfig{
		SecretKey:   cfg.PaystackSecretKey,
		BaseURL:     gatewayURL,
		CallbackURL: cfg.CallbackURL,
	})
	currencySvc := services.NewCurrencyService(db, services.NewRateCache(cfg.RateCacheTTL), cfg.BaseCurrency)
	paymentSvc := services.NewPaymentService(db, paystackSvc, currencySvc,
		services.NewNotificationService(db), cfg)

	paymentCtrl := controllers.NewPaymentController(db, paymentSvc)

	router := gin.Default()
	router.POST("/payments", middlewares.ValidatePaymentRequest(), paymentCtrl.InitializePayment)
	router.GET("/payments/:reference/verify", paymentCtrl.VerifyPayment)
	router.GET("/payments/:reference", paymentCtrl.GetPaymentByReference)
	router.GET("/payments/:reference/transactions", paymentCtrl.GetPaymentTransactions)
	router.GET("/payments", paymentCtrl.GetAllPayments)
	return router
}

func TestInitializeAndGetPayment(t *testing.T) {
	db := setupTestDBForPayments(t)
	router := setupPaymentRouter(db, fakeGatewayServer(t).URL)

	payload := map[string]interface{}{
		"order_id": 1,
		"email":    "jane@example.com",
		"currency": "NGN",
	}
	payloadBytes, err := json.Marshal(payload)
	assert.NoError(t, err)

	req, err := http.NewRequest("POST", "/payments", bytes.NewBuffer(payloadBytes))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &createResp)
	assert.NoError(t, err)
	assert.Equal(t, "Payment initialized", createResp["message"])
	data := createResp["data"].(map[string]interface{})
	assert.Equal(t, "https://checkout.paystack.com/abc123", data["authorization_url"])

	payment := data["payment"].(map[string]interface{})
	reference, ok := payment["reference"].(string)
	assert.True(t, ok)
	assert.Equal(t, 75000.0, payment["amount"].(float64))
	assert.Equal(t, "processing", payment["status"])

	// Uji GET payment detail
	req, err = http.NewRequest("GET", "/payments/"+reference, nil)
	assert.NoError(t, err)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var getResp map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &getResp)
	assert.NoError(t, err)
	assert.Equal(t, "Payment detail", getResp["message"])
	getData := getResp["data"].(map[string]interface{})
	assert.Equal(t, reference, getData["reference"])
}

func TestInitializePaymentBadRequest(t *testing.T) {
	db := setupTestDBForPayments(t)
	router := setupPaymentRouter(db, fakeGatewayServer(t).URL)

	// Missing currency fails validation in the middleware.
	payload := map[string]interface{}{
		"order_id": 1,
		"email":    "jane@example.com",
	}
	payloadBytes, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", "/payments", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitializePaymentUnsupportedCurrency(t *testing.T) {
	db := setupTestDBForPayments(t)
	router := setupPaymentRouter(db, fakeGatewayServer(t).URL)

	payload := map[string]interface{}{
		"order_id": 1,
		"email":    "jane@example.com",
		"currency": "EUR",
	}
	payloadBytes, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", "/payments", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	db := setupTestDBForPayments(t)
	router := setupPaymentRouter(db, fakeGatewayServer(t).URL)

	payload := map[string]interface{}{
		"order_id": 1,
		"email":    "jane@example.com",
		"currency": "NGN",
	}
	payloadBytes, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", "/payments", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &createResp)
	reference := createResp["data"].(map[string]interface{})["payment"].(map[string]interface{})["reference"].(string)

	req, _ = http.NewRequest("GET", "/payments/"+reference+"/verify", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var verifyResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &verifyResp)
	assert.Equal(t, "success", verifyResp["data"].(map[string]interface{})["status"])

	// Ledger endpoint shows the history.
	req, _ = http.NewRequest("GET", "/payments/"+reference+"/transactions", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var ledgerResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &ledgerResp)
	transactions := ledgerResp["data"].(map[string]interface{})["transactions"].([]interface{})
	assert.GreaterOrEqual(t, len(transactions), 3)
}

func TestGetPaymentNotFound(t *testing.T) {
	db := setupTestDBForPayments(t)
	router := setupPaymentRouter(db, fakeGatewayServer(t).URL)

	req, _ := http.NewRequest("GET", "/payments/PAY-nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

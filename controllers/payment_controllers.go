package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shoporia/backend/middlewares"
	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

type PaymentController struct {
	DB      *gorm.DB
	Service *services.PaymentService
}

func NewPaymentController(db *gorm.DB, service *services.PaymentService) *PaymentController {
	return &PaymentController{DB: db, Service: service}
}

// actorFromUserID renders the authenticated user as a ledger actor.
func actorFromUserID(userID interface{}) string {
	return fmt.Sprintf("user:%v", userID)
}

// respondPaymentError maps the service error taxonomy onto HTTP status
// codes: validation problems are client-attributable, everything that
// happened past our own boundary is a 5xx.
func respondPaymentError(c *gin.Context, err error) {
	var (
		validationErr *services.PaymentValidationError
		currencyErr   *services.CurrencyNotFoundError
		expiredErr    *services.PaymentExpiredError
		processedErr  *services.AlreadyProcessedError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &currencyErr), errors.As(err, &expiredErr):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &processedErr):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.ErrorLogger.Printf("Payment operation failed: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}

// InitializePayment creates a payment for an order and returns the
// gateway authorization URL. The request body is parsed and validated by
// the payment middleware chain.
func (pc *PaymentController) InitializePayment(c *gin.Context) {
	value, exists := c.Get(middlewares.PaymentRequestKey)
	req, ok := value.(*services.InitializePaymentRequest)
	if !exists || !ok {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment request"))
		return
	}

	payment, err := pc.Service.InitializePayment(req)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Payment initialized", gin.H{
		"payment":           payment,
		"authorization_url": payment.AuthorizationURL,
	})
}

// VerifyPayment re-checks a payment against the gateway on client demand.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	reference := c.Param("reference")

	actor := models.ActorSystem
	if userID, exists := c.Get("userID"); exists {
		actor = actorFromUserID(userID)
	}

	payment, err := pc.Service.VerifyPayment(reference, actor)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment verified", gin.H{
		"payment": payment,
		"status":  payment.Status,
	})
}

// RefundPayment issues a (possibly partial) refund for a successful
// payment. Admin only.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	reference := c.Param("reference")

	var body struct {
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	actor := models.ActorSystem
	if userID, exists := c.Get("userID"); exists {
		actor = actorFromUserID(userID)
	}

	payment, err := pc.Service.RefundPayment(reference, body.Amount, body.Reason, actor)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment refunded", gin.H{
		"payment": payment,
	})
}

// GetAllPayments lists payments, optionally filtered by order.
func (pc *PaymentController) GetAllPayments(c *gin.Context) {
	var payments []models.Payment

	query := pc.DB.Preload("Order").Order("created_at DESC")
	if orderID := c.Query("order_id"); orderID != "" {
		query = query.Where("order_id = ?", orderID)
	}
	if err := query.Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All payments", payments)
}

// GetPaymentByReference returns one payment with its order.
func (pc *PaymentController) GetPaymentByReference(c *gin.Context) {
	reference := c.Param("reference")

	var payment models.Payment
	if err := pc.DB.Preload("Order").Where("reference = ?", reference).First(&payment).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("payment not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// GetPaymentTransactions returns the full ledger of one payment, newest
// first. This is the audit/support view.
func (pc *PaymentController) GetPaymentTransactions(c *gin.Context) {
	reference := c.Param("reference")

	var payment models.Payment
	if err := pc.DB.Where("reference = ?", reference).First(&payment).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("payment not found"))
		return
	}

	var transactions []models.PaymentTransaction
	if err := pc.DB.Where("payment_id = ?", payment.ID).Order("created_at DESC").Find(&transactions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment transactions", gin.H{
		"payment_reference": payment.Reference,
		"transactions":      transactions,
	})
}

// GetTransactionsByType is the reconciliation query: ledger entries of one
// type inside a time range.
func (pc *PaymentController) GetTransactionsByType(c *gin.Context) {
	entryType := c.DefaultQuery("type", models.TransactionTypeWebhook)

	query := pc.DB.Where("type = ?", entryType).Order("created_at DESC")
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid 'from' timestamp, expected RFC3339"))
			return
		}
		query = query.Where("created_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid 'to' timestamp, expected RFC3339"))
			return
		}
		query = query.Where("created_at <= ?", t)
	}

	var transactions []models.PaymentTransaction
	if err := query.Find(&transactions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Transactions", transactions)
}

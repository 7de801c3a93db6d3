package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

// SignatureHeader is the provider's webhook signature header. Header
// lookup is case-insensitive.
const SignatureHeader = "X-Paystack-Signature"

type WebhookController struct {
	Service  *services.PaymentService
	Paystack *services.PaystackService
}

func NewWebhookController(service *services.PaymentService, paystack *services.PaystackService) *WebhookController {
	return &WebhookController{Service: service, Paystack: paystack}
}

// HandlePaymentWebhook receives provider callbacks. The raw body is kept
// unparsed until the signature check passes; parsing first would allow an
// attacker-controlled body to reach the JSON decoder and re-serialization
// would break the HMAC anyway.
//
// Responses: 200 for processed events and idempotent no-ops, 401 for
// missing/invalid signatures, 400 for malformed JSON, 500 when applying
// the event failed and the provider should redeliver.
func (wc *WebhookController) HandlePaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("failed to read request body"))
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !wc.Paystack.VerifyWebhookSignature(rawBody, signature) {
		utils.InfoLogger.Printf("Webhook rejected: invalid or missing signature")
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid signature"))
		return
	}

	var event services.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("malformed webhook body"))
		return
	}

	if err := wc.Service.HandleWebhook(&event, rawBody); err != nil {
		utils.ErrorLogger.Printf("Webhook %s for reference %s failed: %v", event.Event, event.Data.Reference, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to process webhook"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Webhook processed", nil)
}

package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shoporia/backend/utils"
)

// PaystackConfig holds the gateway credentials and endpoints.
type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
}

// PaystackService is a thin HTTP wrapper around the Paystack API. It knows
// nothing about payment records; the payment service owns all bookkeeping.
type PaystackService struct {
	config     *PaystackConfig
	httpClient *http.Client
}

func NewPaystackService(config *PaystackConfig) *PaystackService {
	return &PaystackService{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig checks that the gateway is usable before serving traffic.
func (ps *PaystackService) ValidateConfig() error {
	if ps.config.SecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY is not set")
	}
	if ps.config.BaseURL == "" {
		return fmt.Errorf("PAYSTACK_BASE_URL is not set")
	}
	if ps.config.CallbackURL == "" {
		return fmt.Errorf("PAYMENT_CALLBACK_URL is not set")
	}
	return nil
}

// paystackEnvelope is the common response wrapper of every Paystack
// endpoint.
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PaystackInitData is the payload returned by transaction initialization.
type PaystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`

	Raw string `json:"-"`
}

// PaystackTransactionData is the payload returned by transaction
// verification. Amount is in the smallest currency unit.
type PaystackTransactionData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paid_at"`

	Raw string `json:"-"`
}

// PaystackRefundData is the payload returned by refund creation.
type PaystackRefundData struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`

	Raw string `json:"-"`
}

// InitializeTransaction starts a charge with the gateway. Amount must
// already be converted to the payment currency's smallest unit.
func (ps *PaystackService) InitializeTransaction(email string, amountSubunits int64, currency, reference, callbackURL string, metadata map[string]interface{}) (*PaystackInitData, error) {
	payload := map[string]interface{}{
		"email":        email,
		"amount":       amountSubunits,
		"currency":     currency,
		"reference":    reference,
		"callback_url": callbackURL,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}

	body, err := ps.doRequest(http.MethodPost, "/transaction/initialize", payload, "initialize")
	if err != nil {
		return nil, err
	}

	var data PaystackInitData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &PaymentGatewayError{
			Operation:   "initialize",
			RawResponse: string(body),
			Message:     fmt.Sprintf("error unmarshaling response: %v", err),
		}
	}
	data.Raw = string(body)
	return &data, nil
}

// VerifyTransaction fetches the current state of a charge by our internal
// reference.
func (ps *PaystackService) VerifyTransaction(reference string) (*PaystackTransactionData, error) {
	body, err := ps.doRequest(http.MethodGet, "/transaction/verify/"+reference, nil, "verify")
	if err != nil {
		return nil, err
	}

	var data PaystackTransactionData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &PaymentGatewayError{
			Operation:   "verify",
			RawResponse: string(body),
			Message:     fmt.Sprintf("error unmarshaling response: %v", err),
		}
	}
	data.Raw = string(body)
	return &data, nil
}

// RefundTransaction asks the gateway to return funds for a charge. Amount
// is in the smallest currency unit; zero means a full refund.
func (ps *PaystackService) RefundTransaction(providerReference string, amountSubunits int64, reason string) (*PaystackRefundData, error) {
	payload := map[string]interface{}{
		"transaction": providerReference,
	}
	if amountSubunits > 0 {
		payload["amount"] = amountSubunits
	}
	if reason != "" {
		payload["merchant_note"] = reason
	}

	body, err := ps.doRequest(http.MethodPost, "/refund", payload, "refund")
	if err != nil {
		return nil, err
	}

	var data PaystackRefundData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &PaymentGatewayError{
			Operation:   "refund",
			RawResponse: string(body),
			Message:     fmt.Sprintf("error unmarshaling response: %v", err),
		}
	}
	data.Raw = string(body)
	return &data, nil
}

// doRequest performs one call against the gateway and unwraps the response
// envelope. Any transport failure, non-2xx status or "status": false
// becomes a PaymentGatewayError carrying the raw body.
func (ps *PaystackService) doRequest(method, path string, payload interface{}, operation string) (json.RawMessage, error) {
	url := ps.config.BaseURL + path

	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, &PaymentGatewayError{Operation: operation, Message: fmt.Sprintf("error marshaling request: %v", err)}
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, &PaymentGatewayError{Operation: operation, Message: fmt.Sprintf("error creating request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ps.config.SecretKey)

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, &PaymentGatewayError{Operation: operation, Message: fmt.Sprintf("error making request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PaymentGatewayError{Operation: operation, StatusCode: resp.StatusCode, Message: fmt.Sprintf("error reading response: %v", err)}
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &PaymentGatewayError{
			Operation:   operation,
			StatusCode:  resp.StatusCode,
			RawResponse: string(body),
			Message:     fmt.Sprintf("error unmarshaling response: %v", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		message := envelope.Message
		if message == "" {
			message = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		utils.ErrorLogger.Printf("Paystack %s error (status %d): %s", operation, resp.StatusCode, string(body))
		return nil, &PaymentGatewayError{
			Operation:   operation,
			StatusCode:  resp.StatusCode,
			RawResponse: string(body),
			Message:     message,
		}
	}

	return envelope.Data, nil
}

// VerifyWebhookSignature authenticates an inbound webhook. The HMAC-SHA512
// is computed over the raw, unparsed body; re-serialized JSON is not
// byte-stable and would break the signature. Fails closed on any missing
// input.
func (ps *PaystackService) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if ps.config.SecretKey == "" || len(rawBody) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(ps.config.SecretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// MapTransactionStatus maps a provider status string to an internal
// payment status.
func (ps *PaystackService) MapTransactionStatus(status string) string {
	switch strings.ToLower(status) {
	case "success":
		return "success"
	case "failed", "abandoned", "reversed":
		return "failed"
	case "pending", "ongoing", "processing", "queued", "send_otp", "pay_offline":
		return "pending"
	default:
		return "unknown"
	}
}

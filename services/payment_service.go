package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shoporia/backend/config"
	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/utils"
	"gorm.io/gorm"
)

// errTransitionNotApplied signals that a conditional status update matched
// zero rows: a concurrent caller already applied the transition.
var errTransitionNotApplied = errors.New("transition not applied")

// PaymentService owns the payment lifecycle. All ledger writes and status
// transitions go through it; a status never changes without a ledger entry
// committing in the same transaction.
type PaymentService struct {
	db       *gorm.DB
	gateway  *PaystackService
	currency *CurrencyService
	notifier *NotificationService
	cfg      *config.Config
}

func NewPaymentService(db *gorm.DB, gateway *PaystackService, currency *CurrencyService, notifier *NotificationService, cfg *config.Config) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		currency: currency,
		notifier: notifier,
		cfg:      cfg,
	}
}

// InitializePaymentRequest is the validated input for creating a payment.
type InitializePaymentRequest struct {
	OrderID  uint   `json:"order_id" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Currency string `json:"currency" binding:"required,len=3"`
}

// WebhookEvent is the parsed body of a provider webhook.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response"`
	Amount          int64  `json:"amount"` // smallest currency unit
}

// InitializePayment creates a payment for an order and starts a charge
// with the gateway. The exchange rate is frozen at creation time.
func (s *PaymentService) InitializePayment(req *InitializePaymentRequest) (*models.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !s.cfg.IsCurrencySupported(currency) {
		return nil, &PaymentValidationError{Reason: fmt.Sprintf("currency %s is not supported", currency)}
	}

	var order models.Order
	if err := s.db.First(&order, req.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PaymentValidationError{Reason: "order not found"}
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(req.Email), order.CustomerEmail) {
		return nil, &PaymentValidationError{Reason: "email does not match the order owner"}
	}
	if order.PaymentStatus {
		return nil, &PaymentValidationError{Reason: "order is already paid"}
	}
	if order.TotalAmount < s.cfg.MinPaymentAmount {
		return nil, &PaymentValidationError{Reason: fmt.Sprintf("order total %.2f is below the minimum payment amount of %.2f %s",
			order.TotalAmount, s.cfg.MinPaymentAmount, s.cfg.BaseCurrency)}
	}

	rate, err := s.currency.PairRate(s.cfg.BaseCurrency, currency)
	if err != nil {
		return nil, err
	}
	amount := RoundAmount(order.TotalAmount * rate)

	now := time.Now()
	payment := &models.Payment{
		OrderID:         order.ID,
		Reference:       utils.GeneratePaymentReference(),
		Amount:          amount,
		OriginalAmount:  order.TotalAmount,
		BaseCurrency:    s.cfg.BaseCurrency,
		PaymentCurrency: currency,
		ExchangeRate:    rate,
		Status:          models.PaymentStatusPending,
		ExpiresAt:       now.Add(s.cfg.PaymentExpiry),
	}

	// The duplicate-pending check and the insert share one transaction so
	// concurrent client retries cannot both create a payable payment.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var inFlight int64
		if err := tx.Model(&models.Payment{}).
			Where("order_id = ? AND status IN ?", order.ID,
				[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
			Count(&inFlight).Error; err != nil {
			return fmt.Errorf("failed to check existing payments: %w", err)
		}
		if inFlight > 0 {
			return &PaymentValidationError{Reason: "order already has a payment in flight"}
		}
		return tx.Create(payment).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Payment %s created for order #%d: %.2f %s (%.2f %s at rate %.6f)",
		payment.Reference, order.ID, amount, currency, order.TotalAmount, s.cfg.BaseCurrency, rate)

	init, err := s.gateway.InitializeTransaction(order.CustomerEmail, toSubunits(amount), currency,
		payment.Reference, s.cfg.CallbackURL, map[string]interface{}{"order_id": order.ID})
	if err != nil {
		s.recordInitializeFailure(payment, err)
		return payment, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PaymentTransaction{
			PaymentID:         payment.ID,
			Type:              models.TransactionTypeInitialize,
			Status:            models.TransactionStatusSuccess,
			Amount:            &payment.Amount,
			ProviderReference: init.Reference,
			RawResponse:       init.Raw,
			Message:           "payment initialized with gateway",
			Actor:             models.ActorSystem,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":             models.PaymentStatusProcessing,
				"provider_reference": init.Reference,
				"authorization_url":  init.AuthorizationURL,
				"updated_at":         time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update payment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errTransitionNotApplied
		}
		return nil
	})
	if errors.Is(err, errTransitionNotApplied) {
		return nil, &AlreadyProcessedError{Reference: payment.Reference, Status: payment.Status}
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.First(payment, payment.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}
	utils.InfoLogger.Printf("Payment %s moved to processing, provider reference %s", payment.Reference, payment.ProviderReference)
	return payment, nil
}

// HandleWebhook applies one provider webhook event exactly once. Unknown
// references are ignored: there is nothing to attach a ledger entry to and
// a retry cannot fix the mismatch.
func (s *PaymentService) HandleWebhook(event *WebhookEvent, rawBody []byte) error {
	var payment models.Payment
	if err := s.db.Where("reference = ?", event.Data.Reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.InfoLogger.Printf("Webhook %s for unknown reference %s ignored", event.Event, event.Data.Reference)
			return nil
		}
		return fmt.Errorf("failed to load payment: %w", err)
	}

	status := s.gateway.MapTransactionStatus(event.Data.Status)
	if status == "unknown" {
		switch event.Event {
		case "charge.success":
			status = models.PaymentStatusSuccess
		case "charge.failed":
			status = models.PaymentStatusFailed
		}
	}

	amount := fromSubunits(event.Data.Amount)

	switch status {
	case models.PaymentStatusSuccess:
		return s.applySuccess(&payment, models.TransactionTypeWebhook, event.Data.Status,
			string(rawBody), event.Data.GatewayResponse, models.ActorSystem, &amount)
	case models.PaymentStatusFailed:
		return s.applyFailure(&payment, models.TransactionTypeWebhook, event.Data.Status,
			string(rawBody), event.Data.GatewayResponse, models.ActorSystem, &amount)
	default:
		utils.InfoLogger.Printf("Webhook %s for payment %s reported status %q, no transition",
			event.Event, payment.Reference, event.Data.Status)
		return nil
	}
}

// VerifyPayment re-checks a payment against the gateway, independent of
// webhooks, and applies the observed outcome.
func (s *PaymentService) VerifyPayment(reference, actor string) (*models.Payment, error) {
	payment, err := s.GetPaymentByReference(reference)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case models.PaymentStatusSuccess:
		utils.InfoLogger.Printf("Payment %s already succeeded, verify is a no-op", reference)
		return payment, nil
	case models.PaymentStatusRefunded, models.PaymentStatusCancelled:
		return nil, &AlreadyProcessedError{Reference: reference, Status: payment.Status}
	}

	if payment.IsExpired() {
		return nil, &PaymentExpiredError{Reference: reference, ExpiresAt: payment.ExpiresAt}
	}

	if err := s.verifyAgainstGateway(payment, models.TransactionTypeVerify, actor); err != nil {
		return nil, err
	}

	if err := s.db.First(payment, payment.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}
	return payment, nil
}

// verifyAgainstGateway performs one gateway verify call, logs it to the
// ledger under entryType (verify for explicit calls, retry for the
// monitor), and applies any resulting transition.
func (s *PaymentService) verifyAgainstGateway(payment *models.Payment, entryType, actor string) error {
	tr, err := s.gateway.VerifyTransaction(payment.Reference)
	if err != nil {
		s.recordGatewayFailure(payment, entryType, err, actor)
		return err
	}

	s.appendEntry(&models.PaymentTransaction{
		PaymentID:         payment.ID,
		Type:              entryType,
		Status:            models.TransactionStatusSuccess,
		ProviderStatus:    tr.Status,
		ProviderReference: tr.Reference,
		RawResponse:       tr.Raw,
		Message:           tr.GatewayResponse,
		Actor:             actor,
	})

	amount := fromSubunits(tr.Amount)
	switch s.gateway.MapTransactionStatus(tr.Status) {
	case models.PaymentStatusSuccess:
		return s.applySuccess(payment, models.TransactionTypeSuccess, tr.Status, tr.Raw, tr.GatewayResponse, actor, &amount)
	case models.PaymentStatusFailed:
		return s.applyFailure(payment, models.TransactionTypeFailure, tr.Status, tr.Raw, tr.GatewayResponse, actor, &amount)
	default:
		utils.InfoLogger.Printf("Payment %s still %s at gateway", payment.Reference, tr.Status)
		return nil
	}
}

// RefundPayment returns funds for a successful payment. Only the
// success -> refunded transition exists; every other state is rejected at
// validation time, before the gateway is touched.
func (s *PaymentService) RefundPayment(reference string, amount *float64, reason, actor string) (*models.Payment, error) {
	payment, err := s.GetPaymentByReference(reference)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusSuccess {
		return nil, &PaymentValidationError{Reason: fmt.Sprintf("refund requires a successful payment, current status is %s", payment.Status)}
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return nil, &PaymentValidationError{Reason: "refund amount must be greater than zero"}
	}
	if refundAmount > payment.Amount {
		return nil, &PaymentValidationError{Reason: fmt.Sprintf("refund amount %.2f exceeds the original payment amount %.2f",
			refundAmount, payment.Amount)}
	}

	refund, err := s.gateway.RefundTransaction(payment.ProviderReference, toSubunits(refundAmount), reason)
	if err != nil {
		s.recordGatewayFailure(payment, models.TransactionTypeRefund, err, actor)
		return nil, &PaymentRefundError{
			Reference: reference,
			Amount:    refundAmount,
			Currency:  payment.PaymentCurrency,
			Reason:    err.Error(),
		}
	}

	message := reason
	if message == "" {
		message = "refund issued"
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PaymentTransaction{
			PaymentID:         payment.ID,
			Type:              models.TransactionTypeRefund,
			Status:            models.TransactionStatusSuccess,
			Amount:            &refundAmount,
			ProviderStatus:    refund.Status,
			ProviderReference: payment.ProviderReference,
			RawResponse:       refund.Raw,
			Message:           message,
			Actor:             actor,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusSuccess).
			Updates(map[string]interface{}{
				"status":     models.PaymentStatusRefunded,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update payment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errTransitionNotApplied
		}
		return nil
	})
	if errors.Is(err, errTransitionNotApplied) {
		return nil, &AlreadyProcessedError{Reference: reference, Status: models.PaymentStatusRefunded}
	}
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Payment %s refunded: %.2f %s", reference, refundAmount, payment.PaymentCurrency)
	if err := s.db.First(payment, payment.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}
	s.notifier.NotifyRefundIssued(payment, refundAmount)
	return payment, nil
}

// ExpireStalePayments cancels in-flight payments whose window has closed,
// appending an expire ledger entry for each. Returns how many were
// cancelled.
func (s *PaymentService) ExpireStalePayments() int {
	var stale []models.Payment
	inFlight := []string{models.PaymentStatusPending, models.PaymentStatusProcessing}
	if err := s.db.Where("status IN ? AND expires_at < ?", inFlight, time.Now()).Find(&stale).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to query stale payments: %v", err)
		return 0
	}

	cancelled := 0
	for i := range stale {
		payment := &stale[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			entry := &models.PaymentTransaction{
				PaymentID: payment.ID,
				Type:      models.TransactionTypeExpire,
				Status:    models.TransactionStatusSuccess,
				Message:   fmt.Sprintf("payment window elapsed at %s", payment.ExpiresAt.Format(time.RFC3339)),
				Actor:     models.ActorSystem,
			}
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to append ledger entry: %w", err)
			}
			res := tx.Model(&models.Payment{}).
				Where("id = ? AND status IN ?", payment.ID, inFlight).
				Updates(map[string]interface{}{
					"status":     models.PaymentStatusCancelled,
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update payment status: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return errTransitionNotApplied
			}
			return nil
		})
		if err != nil {
			if !errors.Is(err, errTransitionNotApplied) {
				utils.ErrorLogger.Printf("Failed to expire payment %s: %v", payment.Reference, err)
			}
			continue
		}
		utils.InfoLogger.Printf("Payment %s expired and cancelled", payment.Reference)
		cancelled++
	}
	return cancelled
}

// ReverifyExpiringPayments re-checks processing payments that are close to
// expiry against the gateway, in case a webhook was lost. Each re-check is
// logged as a retry ledger entry.
func (s *PaymentService) ReverifyExpiringPayments(window time.Duration) {
	now := time.Now()
	var payments []models.Payment
	err := s.db.Where("status = ? AND expires_at BETWEEN ? AND ?",
		models.PaymentStatusProcessing, now, now.Add(window)).Find(&payments).Error
	if err != nil {
		utils.ErrorLogger.Printf("Failed to query expiring payments: %v", err)
		return
	}

	for i := range payments {
		payment := &payments[i]
		if err := s.verifyAgainstGateway(payment, models.TransactionTypeRetry, models.ActorSystem); err != nil {
			utils.ErrorLogger.Printf("Re-verification of payment %s failed: %v", payment.Reference, err)
		}
	}
}

// GetPaymentByReference loads a payment by its internal reference.
func (s *PaymentService) GetPaymentByReference(reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PaymentValidationError{Reason: "payment not found"}
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &payment, nil
}

// applySuccess moves a processing payment to success. The ledger entry and
// the conditional status update commit atomically; two concurrent
// deliveries cannot both apply the transition because the second one
// matches zero rows and rolls back its entry.
func (s *PaymentService) applySuccess(payment *models.Payment, entryType, providerStatus, raw, message, actor string, amount *float64) error {
	switch payment.Status {
	case models.PaymentStatusSuccess, models.PaymentStatusRefunded:
		utils.InfoLogger.Printf("Payment %s already processed (status %s), success event is a no-op", payment.Reference, payment.Status)
		return nil
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		utils.ErrorLogger.Printf("Success event for payment %s in terminal status %s, manual reconciliation needed", payment.Reference, payment.Status)
		return &PaymentProcessError{Reference: payment.Reference,
			Reason: fmt.Sprintf("success event conflicts with terminal status %s", payment.Status)}
	case models.PaymentStatusPending:
		// Initialization bookkeeping has not landed yet; let the provider
		// redeliver once it has.
		return &PaymentProcessError{Reference: payment.Reference, Reason: "payment is not yet processing"}
	}

	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PaymentTransaction{
			PaymentID:         payment.ID,
			Type:              entryType,
			Status:            models.TransactionStatusSuccess,
			Amount:            amount,
			ProviderStatus:    providerStatus,
			ProviderReference: payment.ProviderReference,
			RawResponse:       raw,
			Message:           message,
			Actor:             actor,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusProcessing).
			Updates(map[string]interface{}{
				"status":     models.PaymentStatusSuccess,
				"paid_at":    now,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update payment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errTransitionNotApplied
		}
		return tx.Model(&models.Order{}).
			Where("id = ?", payment.OrderID).
			Updates(map[string]interface{}{
				"payment_status": true,
				"order_status":   models.OrderStatusProcessing,
				"updated_at":     now,
			}).Error
	})
	if errors.Is(err, errTransitionNotApplied) {
		utils.InfoLogger.Printf("Payment %s success transition already applied by a concurrent delivery", payment.Reference)
		return nil
	}
	if err != nil {
		return &PaymentProcessError{Reference: payment.Reference, Reason: err.Error()}
	}

	payment.Status = models.PaymentStatusSuccess
	payment.PaidAt = &now
	utils.InfoLogger.Printf("Payment %s succeeded, order #%d marked processing", payment.Reference, payment.OrderID)

	// Notification failure is logged inside the dispatcher and never rolls
	// back the transition.
	s.notifier.NotifyOrderConfirmed(payment)
	return nil
}

// applyFailure moves a processing payment to failed. Repeat failure events
// are no-ops.
func (s *PaymentService) applyFailure(payment *models.Payment, entryType, providerStatus, raw, message, actor string, amount *float64) error {
	switch payment.Status {
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		utils.InfoLogger.Printf("Payment %s already in status %s, failure event is a no-op", payment.Reference, payment.Status)
		return nil
	case models.PaymentStatusSuccess, models.PaymentStatusRefunded:
		utils.InfoLogger.Printf("Ignoring failure event for payment %s already in status %s", payment.Reference, payment.Status)
		return nil
	case models.PaymentStatusPending:
		return &PaymentProcessError{Reference: payment.Reference, Reason: "payment is not yet processing"}
	}

	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PaymentTransaction{
			PaymentID:         payment.ID,
			Type:              entryType,
			Status:            models.TransactionStatusFailed,
			Amount:            amount,
			ProviderStatus:    providerStatus,
			ProviderReference: payment.ProviderReference,
			RawResponse:       raw,
			Message:           message,
			Actor:             actor,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusProcessing).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusFailed,
				"error_message": message,
				"updated_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update payment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errTransitionNotApplied
		}
		return nil
	})
	if errors.Is(err, errTransitionNotApplied) {
		utils.InfoLogger.Printf("Payment %s failure transition already applied by a concurrent delivery", payment.Reference)
		return nil
	}
	if err != nil {
		return &PaymentProcessError{Reference: payment.Reference, Reason: err.Error()}
	}

	payment.Status = models.PaymentStatusFailed
	utils.InfoLogger.Printf("Payment %s failed: %s", payment.Reference, message)
	return nil
}

// recordInitializeFailure writes the failed ledger entry and flips the
// payment to failed in one transaction.
func (s *PaymentService) recordInitializeFailure(payment *models.Payment, gatewayErr error) {
	raw := rawResponseOf(gatewayErr)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PaymentTransaction{
			PaymentID:   payment.ID,
			Type:        models.TransactionTypeInitialize,
			Status:      models.TransactionStatusFailed,
			Amount:      &payment.Amount,
			RawResponse: raw,
			Message:     gatewayErr.Error(),
			Actor:       models.ActorSystem,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusFailed,
				"error_message": gatewayErr.Error(),
				"updated_at":    time.Now(),
			}).Error
	})
	if err != nil {
		utils.ErrorLogger.Printf("Failed to record initialize failure for payment %s: %v", payment.Reference, err)
		return
	}
	payment.Status = models.PaymentStatusFailed
	utils.ErrorLogger.Printf("Payment %s failed at initialization: %v", payment.Reference, gatewayErr)
}

// recordGatewayFailure appends a failed ledger entry for a gateway call
// that did not change the payment state.
func (s *PaymentService) recordGatewayFailure(payment *models.Payment, entryType string, gatewayErr error, actor string) {
	s.appendEntry(&models.PaymentTransaction{
		PaymentID:   payment.ID,
		Type:        entryType,
		Status:      models.TransactionStatusFailed,
		RawResponse: rawResponseOf(gatewayErr),
		Message:     gatewayErr.Error(),
		Actor:       actor,
	})
}

func (s *PaymentService) appendEntry(entry *models.PaymentTransaction) {
	if entry.Actor == "" {
		entry.Actor = models.ActorSystem
	}
	if err := s.db.Create(entry).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to append %s ledger entry for payment %d: %v", entry.Type, entry.PaymentID, err)
	}
}

func rawResponseOf(err error) string {
	var gatewayErr *PaymentGatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.RawResponse
	}
	return ""
}

// toSubunits converts a major-unit amount to the smallest currency unit
// the gateway expects.
func toSubunits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromSubunits(amount int64) float64 {
	return float64(amount) / 100
}

package services

import (
	"fmt"
	"time"
)

// PaymentValidationError is bad input caught before any external system is
// touched. Always client-attributable.
type PaymentValidationError struct {
	Reason string
}

func (e *PaymentValidationError) Error() string {
	return e.Reason
}

// CurrencyNotFoundError reports an unknown or inactive currency code.
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("currency %q not found or inactive", e.Code)
}

// PaymentGatewayError means the provider returned an error or was
// unreachable. RawResponse keeps the provider's body for diagnostics.
type PaymentGatewayError struct {
	Operation   string
	StatusCode  int
	RawResponse string
	Message     string
}

func (e *PaymentGatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %s", e.Operation, e.Message)
}

// PaymentProcessError means applying a webhook or reconciling state failed
// in a way the provider should retry.
type PaymentProcessError struct {
	Reference string
	Reason    string
}

func (e *PaymentProcessError) Error() string {
	return fmt.Sprintf("payment %s: %s", e.Reference, e.Reason)
}

// PaymentRefundError carries enough context for the caller to decide on
// retry versus surfacing the failure.
type PaymentRefundError struct {
	Reference string
	Amount    float64
	Currency  string
	Reason    string
}

func (e *PaymentRefundError) Error() string {
	return fmt.Sprintf("refund of %.2f %s on payment %s failed: %s", e.Amount, e.Currency, e.Reference, e.Reason)
}

// AlreadyProcessedError is an attempted operation on a payment that is
// already in a terminal state.
type AlreadyProcessedError struct {
	Reference string
	Status    string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("payment %s already processed (status %s)", e.Reference, e.Status)
}

// PaymentExpiredError is an attempted operation on a payment whose window
// has closed.
type PaymentExpiredError struct {
	Reference string
	ExpiresAt time.Time
}

func (e *PaymentExpiredError) Error() string {
	return fmt.Sprintf("payment %s expired at %s", e.Reference, e.ExpiresAt.Format(time.RFC3339))
}

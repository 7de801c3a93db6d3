package models

import (
	"time"
)

// Ledger entry types, one per payment lifecycle event.
const (
	TransactionTypeInitialize = "initialize"
	TransactionTypeVerify     = "verify"
	TransactionTypeSuccess    = "success"
	TransactionTypeFailure    = "failure"
	TransactionTypeRefund     = "refund"
	TransactionTypeWebhook    = "webhook"
	TransactionTypeRetry      = "retry"
	TransactionTypeExpire     = "expire"
)

// Ledger entry outcomes.
const (
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// ActorSystem marks ledger entries written by the service itself rather
// than an admin user.
const ActorSystem = "system"

// PaymentTransaction is one immutable row in the payment ledger. Rows are
// only ever appended; the full status history of a payment must be
// reconstructable from its transactions alone.
type PaymentTransaction struct {
	ID                uint     `gorm:"primaryKey" json:"id"`
	PaymentID         uint     `gorm:"not null;index" json:"payment_id"`
	Payment           *Payment `gorm:"foreignKey:PaymentID" json:"-"`
	Type              string   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status            string   `gorm:"type:varchar(20);not null" json:"status"`
	Amount            *float64 `gorm:"type:decimal(14,2)" json:"amount,omitempty"`
	ProviderStatus    string   `gorm:"type:varchar(64)" json:"provider_status,omitempty"`
	ProviderReference string   `gorm:"type:varchar(64)" json:"provider_reference,omitempty"`
	RawResponse       string   `gorm:"type:text" json:"raw_response,omitempty"`
	Message           string   `gorm:"type:text" json:"message,omitempty"`
	Actor             string   `gorm:"type:varchar(64);not null;default:'system'" json:"actor"`
	CreatedAt         time.Time `gorm:"not null;index" json:"created_at"`
}

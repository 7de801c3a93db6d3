package models

import (
	"time"
)

// Payment status values. A payment is terminal in success, failed,
// cancelled and refunded; pending and processing are in-flight.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusSuccess    = "success"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusRefunded   = "refunded"
)

// Payment is a single attempt to collect money for an order through the
// payment gateway. Amount and ExchangeRate are frozen at creation time;
// OriginalAmount keeps the order total in the base currency so the
// conversion is auditable later even if rates change.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderID           uint       `gorm:"not null;index" json:"order_id"`
	Order             Order      `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Reference         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	ProviderReference string     `gorm:"type:varchar(64);index" json:"provider_reference"`
	Amount            float64    `gorm:"type:decimal(14,2);not null" json:"amount"`
	OriginalAmount    float64    `gorm:"type:decimal(14,2);not null" json:"original_amount"`
	BaseCurrency      string     `gorm:"type:varchar(3);not null" json:"base_currency"`
	PaymentCurrency   string     `gorm:"type:varchar(3);not null" json:"payment_currency"`
	ExchangeRate      float64    `gorm:"type:decimal(14,6);not null" json:"exchange_rate"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AuthorizationURL  string     `gorm:"type:varchar(512)" json:"authorization_url,omitempty"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	ExpiresAt         time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`

	Transactions []PaymentTransaction `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
}

// IsExpired reports whether the payment window has closed. Expired
// payments are never transitioned in-band; callers check at read time.
func (p *Payment) IsExpired() bool {
	return !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt)
}

// IsTerminal reports whether the payment can no longer change state
// except through an explicit refund.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

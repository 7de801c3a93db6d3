package models

import (
	"time"
)

// Order status values used by the payment flow.
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusProcessing     = "processing"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

// Order is the payment core's view of an order. TotalAmount is always in
// the configured base currency.
type Order struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CustomerName  string    `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail string    `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	OrderStatus   string    `gorm:"type:varchar(20);not null;default:'pending_payment'" json:"order_status"`
	PaymentStatus bool      `gorm:"not null;default:false" json:"payment_status"`
	TotalAmount   float64   `gorm:"type:decimal(12,2);not null;default:0.00" json:"total_amount"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`

	Payments []Payment `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
}

package services

import (
	"fmt"

	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/utils"
	"gorm.io/gorm"
)

// NotificationService fans payment outcomes out to the support dashboard.
// Dispatch is best-effort: a failed notification never rolls back the
// payment transition that triggered it.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// NotifyOrderConfirmed records a confirmation notification for a payment
// that just transitioned to success.
func (ns *NotificationService) NotifyOrderConfirmed(payment *models.Payment) {
	notification := models.Notification{
		Title:   "Order payment confirmed",
		Message: fmt.Sprintf("Payment %s for order #%d confirmed (%.2f %s)", payment.Reference, payment.OrderID, payment.Amount, payment.PaymentCurrency),
		Type:    "payment",
		Status:  "unread",
	}
	if err := ns.db.Create(&notification).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to create confirmation notification for payment %s: %v", payment.Reference, err)
	}
}

// NotifyRefundIssued records a notification for a completed refund.
func (ns *NotificationService) NotifyRefundIssued(payment *models.Payment, amount float64) {
	notification := models.Notification{
		Title:   "Refund issued",
		Message: fmt.Sprintf("Refund of %.2f %s issued for payment %s (order #%d)", amount, payment.PaymentCurrency, payment.Reference, payment.OrderID),
		Type:    "payment",
		Status:  "unread",
	}
	if err := ns.db.Create(&notification).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to create refund notification for payment %s: %v", payment.Reference, err)
	}
}

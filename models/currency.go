package models

import (
	"time"
)

// Currency is an exchange-rate record. Rate is relative to the configured
// base currency; the base currency itself always has rate 1.0.
type Currency struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(3);uniqueIndex;not null" json:"code"`
	Symbol    string    `gorm:"type:varchar(8)" json:"symbol"`
	Name      string    `gorm:"type:varchar(64)" json:"name"`
	Rate      float64   `gorm:"type:decimal(14,6);not null" json:"rate"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

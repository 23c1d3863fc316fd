package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the billing platform's invoice as seen by the payment core:
// amount and customer are read, the paid fields are written on completion.
type Invoice struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrganizationID uint            `gorm:"index;not null" json:"organization_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Status         string          `json:"status"` // draft, sent, paid, partially_paid
	AmountPaid     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"amount_paid"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

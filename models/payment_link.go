package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentLink is a shareable reference to an amount. MaxUses of 1 makes it
// single use.
type PaymentLink struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Token          string          `gorm:"uniqueIndex;not null" json:"token"`
	OrganizationID uint            `gorm:"index;not null" json:"organization_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	InvoiceID      *uint           `gorm:"index" json:"invoice_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	MaxUses        int             `gorm:"not null;default:1" json:"max_uses"`
	UseCount       int             `gorm:"not null;default:0" json:"use_count"`
	ExpiresAt      time.Time       `gorm:"index;not null" json:"expires_at"`
	IsActive       bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Usable reports whether the link can still be redeemed at now.
func (l *PaymentLink) Usable(now time.Time) bool {
	return l.IsActive && l.UseCount < l.MaxUses && now.Before(l.ExpiresAt)
}

package models

import (
	"time"

	"gorm.io/gorm"
)

type MethodType string

const (
	MethodCard       MethodType = "CARD"
	MethodUPI        MethodType = "UPI"
	MethodWallet     MethodType = "WALLET"
	MethodNetBanking MethodType = "NETBANKING"
)

// PaymentMethod is a payment option enabled for an organization. A zero
// GatewayID routes each payment to the cheapest eligible gateway.
type PaymentMethod struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OrganizationID  uint           `gorm:"index;not null" json:"organization_id"`
	GatewayID       uint           `gorm:"index" json:"gateway_id"`
	Type            MethodType     `gorm:"not null" json:"type"`
	Name            string         `json:"name"`
	IsEnabled       bool           `gorm:"not null;default:true" json:"is_enabled"`
	CustomerPaysFee bool           `gorm:"not null;default:false" json:"customer_pays_fee"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAutoRouted reports whether the method has no fixed gateway.
func (m *PaymentMethod) IsAutoRouted() bool {
	return m.GatewayID == 0
}

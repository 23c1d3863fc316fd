package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GatewayType identifies the provider behind a gateway row.
type GatewayType string

const (
	GatewayStripe   GatewayType = "STRIPE"
	GatewayPayPal   GatewayType = "PAYPAL"
	GatewayRazorpay GatewayType = "RAZORPAY"
	GatewayPayU     GatewayType = "PAYU"
	GatewayPhonePe  GatewayType = "PHONEPE"
	GatewayGPay     GatewayType = "GPAY"
	GatewayPaytm    GatewayType = "PAYTM"
	GatewayBHIM     GatewayType = "BHIM"
)

// IsUPI reports whether the gateway settles through UPI.
func (t GatewayType) IsUPI() bool {
	switch t {
	case GatewayPhonePe, GatewayGPay, GatewayPaytm, GatewayBHIM:
		return true
	}
	return false
}

type GatewayStatus string

const (
	GatewayActive   GatewayStatus = "ACTIVE"
	GatewayInactive GatewayStatus = "INACTIVE"
	GatewayTesting  GatewayStatus = "TESTING"
	GatewayError    GatewayStatus = "ERROR"
)

// MethodFee overrides the base fee for one payment method type.
type MethodFee struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
}

// PaymentGateway is a configured provider account for one organization.
// The core only reads these rows; UpdatedAt doubles as the config version.
type PaymentGateway struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrganizationID uint            `gorm:"index;not null" json:"organization_id"`
	Name           string          `gorm:"not null" json:"name"`
	Type           GatewayType     `gorm:"not null" json:"type"`
	Status         GatewayStatus   `gorm:"not null;default:ACTIVE" json:"status"`
	IsEnabled      bool            `gorm:"not null;default:true" json:"is_enabled"`
	FeePercentage  decimal.Decimal `gorm:"type:decimal(6,3);not null;default:0" json:"fee_percentage"`
	FeeFixed       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"fee_fixed"`
	MethodFees     datatypes.JSON  `json:"method_fees,omitempty"`
	Priority       int             `gorm:"not null;default:0" json:"priority"`
	Configuration  datatypes.JSON  `json:"configuration,omitempty"`
	Credentials    datatypes.JSON  `json:"-"`
	IsSandbox      bool            `gorm:"not null;default:false" json:"is_sandbox"`
	IsHealthy      bool            `gorm:"not null;default:true" json:"is_healthy"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ConfigVersion changes whenever the row is edited.
func (g *PaymentGateway) ConfigVersion() int64 {
	return g.UpdatedAt.UnixNano()
}

// IsSelectable reports whether the gateway may serve traffic at all.
func (g *PaymentGateway) IsSelectable() bool {
	return g.IsEnabled && (g.Status == GatewayActive || g.Status == GatewayTesting)
}

// MethodFeeOverrides decodes MethodFees; malformed JSON yields no overrides.
func (g *PaymentGateway) MethodFeeOverrides() map[MethodType]MethodFee {
	overrides := map[MethodType]MethodFee{}
	if len(g.MethodFees) == 0 {
		return overrides
	}
	_ = json.Unmarshal(g.MethodFees, &overrides)
	return overrides
}

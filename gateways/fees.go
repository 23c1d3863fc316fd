package gateways

import (
	"github.com/Govind-619/PayRoute/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Fees is a percentage-plus-fixed schedule.
type Fees struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
}

// Total is amount*percentage/100 + fixed, rounded to two places.
func (f Fees) Total(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.Percentage).Div(hundred).Add(f.Fixed).Round(2)
}

// CalculateFee applies the fee formula directly.
func CalculateFee(amount, percentage, fixed decimal.Decimal) decimal.Decimal {
	return Fees{Percentage: percentage, Fixed: fixed}.Total(amount)
}

// scheduleFor resolves the gateway's base schedule, overridden per method.
func scheduleFor(cfg Config, method models.MethodType) Fees {
	if override, ok := cfg.MethodFees[method]; ok {
		return Fees{Percentage: override.Percentage, Fixed: override.Fixed}
	}
	return Fees{Percentage: cfg.FeePercentage, Fixed: cfg.FeeFixed}
}

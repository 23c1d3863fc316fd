package gateways

import (
	"strconv"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

// base carries the parts every adapter shares.
type base struct {
	cfg        Config
	name       string
	methods    []models.MethodType
	currencies []string
}

func (b *base) SupportedPaymentMethods() []models.MethodType {
	return b.methods
}

func (b *base) SupportedCurrencies() []string {
	return b.currencies
}

func (b *base) TransactionFees(amount decimal.Decimal, currency string, method models.MethodType) Fees {
	return scheduleFor(b.cfg, method)
}

// requireCredentials fails Initialize with the first missing key.
func (b *base) requireCredentials(keys ...string) error {
	for _, k := range keys {
		if b.cfg.Credential(k) == "" {
			utils.LogError("%s gateway %d missing credential %s", b.name, b.cfg.GatewayID, k)
			return utils.ConfigurationError(b.name+" credential "+k+" is required", nil)
		}
	}
	return nil
}

// currencyOverride lets a gateway row narrow or widen the default currency list.
func (b *base) currencyOverride() {
	raw, ok := b.cfg.Configuration["currencies"].([]interface{})
	if !ok || len(raw) == 0 {
		return
	}
	list := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			list = append(list, utils.NormalizeCurrency(s))
		}
	}
	b.currencies = list
}

// minorUnits converts a decimal amount to the currency's smallest unit.
// Zero-decimal currencies are passed through unscaled.
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[utils.NormalizeCurrency(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

func fromMinorUnits(v int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[utils.NormalizeCurrency(currency)] {
		return decimal.NewFromInt(v)
	}
	return decimal.New(v, -2)
}

var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(s string) uint {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

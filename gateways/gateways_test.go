package gateways

import (
	"testing"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		percentage string
		fixed      string
		want       string
	}{
		{"percentage and fixed", "100", "2.9", "0.30", "3.20"},
		{"percentage only", "250", "2", "0", "5"},
		{"fixed only", "999.99", "0", "3", "3"},
		{"rounds to cents", "10.05", "2.5", "0", "0.25"},
		{"zero amount", "0", "2.9", "0.30", "0.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFee(
				decimal.RequireFromString(tt.amount),
				decimal.RequireFromString(tt.percentage),
				decimal.RequireFromString(tt.fixed),
			)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFeesTotalIsMonotonicInAmount(t *testing.T) {
	fees := Fees{Percentage: decimal.RequireFromString("1.75"), Fixed: decimal.RequireFromString("0.50")}
	prev := fees.Total(decimal.Zero)
	for i := 1; i <= 500; i++ {
		cur := fees.Total(decimal.NewFromInt(int64(i * 7)))
		assert.True(t, cur.GreaterThanOrEqual(prev), "fee dropped at step %d", i)
		prev = cur
	}
}

func TestScheduleForUsesMethodOverride(t *testing.T) {
	cfg := Config{
		FeePercentage: decimal.RequireFromString("2"),
		FeeFixed:      decimal.RequireFromString("1"),
		MethodFees: map[models.MethodType]models.MethodFee{
			models.MethodUPI: {Percentage: decimal.Zero, Fixed: decimal.RequireFromString("0.10")},
		},
	}

	card := scheduleFor(cfg, models.MethodCard)
	assert.True(t, decimal.RequireFromString("2").Equal(card.Percentage))
	assert.True(t, decimal.RequireFromString("1").Equal(card.Fixed))

	upiFees := scheduleFor(cfg, models.MethodUPI)
	assert.True(t, upiFees.Percentage.IsZero())
	assert.True(t, decimal.RequireFromString("0.10").Equal(upiFees.Fixed))
}

func TestSupports(t *testing.T) {
	stripe := NewStripeAdapter()
	assert.True(t, Supports(stripe, "usd", models.MethodCard))
	assert.False(t, Supports(stripe, "USD", models.MethodUPI))
	assert.False(t, Supports(stripe, "XYZ", models.MethodCard))

	payu := NewPayUAdapter()
	assert.True(t, Supports(payu, "INR", models.MethodNetBanking))
	assert.False(t, Supports(payu, "USD", models.MethodCard))
}

func TestCurrencyOverride(t *testing.T) {
	adapter := NewStripeAdapter()
	require.NoError(t, adapter.Initialize(Config{
		GatewayID:     1,
		Credentials:   map[string]string{"secret_key": "sk_test"},
		Configuration: map[string]interface{}{"currencies": []interface{}{"usd"}},
	}))
	assert.Equal(t, []string{"USD"}, adapter.SupportedCurrencies())
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1050), minorUnits(decimal.RequireFromString("10.50"), "USD"))
	assert.Equal(t, int64(500), minorUnits(decimal.NewFromInt(500), "JPY"))
	assert.True(t, decimal.RequireFromString("10.5").Equal(fromMinorUnits(1050, "inr")))
	assert.True(t, decimal.NewFromInt(500).Equal(fromMinorUnits(500, "JPY")))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(nil, 0)
	assert.Len(t, r.Types(), 8)

	adapter, err := r.New(models.GatewayRazorpay)
	require.NoError(t, err)
	assert.IsType(t, &RazorpayAdapter{}, adapter)

	_, err = r.New(models.GatewayType("MONEYGRAM"))
	assert.True(t, utils.IsConfigurationError(err))

	upiAdapter, err := r.New(models.GatewayPhonePe)
	require.NoError(t, err)
	err = upiAdapter.Initialize(Config{GatewayID: 9, Type: models.GatewayPhonePe})
	assert.True(t, utils.IsConfigurationError(err))
}

func TestInitializeRequiresCredentials(t *testing.T) {
	for name, adapter := range map[string]Adapter{
		"stripe":   NewStripeAdapter(),
		"paypal":   NewPayPalAdapter(),
		"razorpay": NewRazorpayAdapter(),
		"payu":     NewPayUAdapter(),
	} {
		t.Run(name, func(t *testing.T) {
			err := adapter.Initialize(Config{GatewayID: 3})
			require.Error(t, err)
			assert.True(t, utils.IsConfigurationError(err))
		})
	}
}

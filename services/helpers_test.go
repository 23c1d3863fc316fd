package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// mockAdapter records provider calls. Fees follow the gateway row it was
// initialized from.
type mockAdapter struct {
	mock.Mock

	mu         sync.Mutex
	cfg        gateways.Config
	currencies []string
	methods    []models.MethodType
}

func newMockAdapter() *mockAdapter {
	m := &mockAdapter{
		currencies: []string{"USD", "EUR", "INR"},
		methods:    []models.MethodType{models.MethodCard, models.MethodUPI, models.MethodWallet},
	}
	m.On("Initialize", mock.Anything).Return(nil)
	return m
}

func (m *mockAdapter) Initialize(cfg gateways.Config) error {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return m.Called(cfg).Error(0)
}

func (m *mockAdapter) InitiatePayment(ctx context.Context, req gateways.PaymentRequest) (*gateways.PaymentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gateways.PaymentResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) VerifyPayment(ctx context.Context, req gateways.VerifyRequest) (*gateways.VerifyResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gateways.VerifyResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) ProcessRefund(ctx context.Context, req gateways.RefundRequest) (*gateways.RefundResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gateways.RefundResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) ProcessWebhook(ctx context.Context, req gateways.WebhookRequest) (*gateways.WebhookEvent, error) {
	args := m.Called(ctx, req)
	evt, _ := args.Get(0).(*gateways.WebhookEvent)
	return evt, args.Error(1)
}

func (m *mockAdapter) CheckHealth(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockAdapter) SupportedPaymentMethods() []models.MethodType {
	return m.methods
}

func (m *mockAdapter) SupportedCurrencies() []string {
	return m.currencies
}

func (m *mockAdapter) TransactionFees(amount decimal.Decimal, currency string, method models.MethodType) gateways.Fees {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.cfg.MethodFees[method]; ok {
		return gateways.Fees{Percentage: o.Percentage, Fixed: o.Fixed}
	}
	return gateways.Fees{Percentage: m.cfg.FeePercentage, Fixed: m.cfg.FeeFixed}
}

type testEnv struct {
	db       *gorm.DB
	bus      *events.Recorder
	registry *gateways.Registry
	factory  *GatewayFactory
	txns     *TransactionService
	webhooks *WebhookService
	invoices InvoiceService
	links    *PaymentLinkService
	adapters map[models.GatewayType]*mockAdapter
}

var mockedTypes = []models.GatewayType{
	models.GatewayStripe,
	models.GatewayPayU,
	models.GatewayRazorpay,
	models.GatewayPayPal,
	models.GatewayGPay,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	bus := events.NewRecorder()
	registry := gateways.NewRegistry()

	env := &testEnv{db: db, bus: bus, registry: registry, adapters: map[models.GatewayType]*mockAdapter{}}
	for _, gt := range mockedTypes {
		m := newMockAdapter()
		env.adapters[gt] = m
		registry.Register(gt, func() gateways.Adapter { return m })
	}

	env.factory = NewGatewayFactory(repository.NewGatewayRepository(db), registry, NewAdapterCache(), time.Minute)
	env.txns = NewTransactionService(
		repository.NewTransactionRepository(db),
		repository.NewMethodRepository(db),
		env.factory,
		bus,
		TransactionConfig{CallbackBaseURL: "https://pay.example.com/", GatewayTimeout: time.Second},
	)
	env.webhooks = NewWebhookService(env.factory, env.txns, repository.NewWebhookEventRepository(db), bus)
	env.invoices = NewInvoiceService(repository.NewInvoiceRepository(db))
	env.links = NewPaymentLinkService(repository.NewLinkRepository(db), env.invoices, env.txns)
	return env
}

func (e *testEnv) gateway(t *testing.T, gt models.GatewayType, pct, fixed string, priority int) *models.PaymentGateway {
	t.Helper()
	gw := &models.PaymentGateway{
		OrganizationID: 1,
		Name:           strings.ToLower(string(gt)),
		Type:           gt,
		Status:         models.GatewayActive,
		IsEnabled:      true,
		FeePercentage:  decimal.RequireFromString(pct),
		FeeFixed:       decimal.RequireFromString(fixed),
		Priority:       priority,
	}
	require.NoError(t, e.db.Create(gw).Error)
	return gw
}

func (e *testEnv) method(t *testing.T, gatewayID uint, mt models.MethodType, customerPaysFee bool) *models.PaymentMethod {
	t.Helper()
	m := &models.PaymentMethod{
		OrganizationID:  1,
		GatewayID:       gatewayID,
		Type:            mt,
		Name:            string(mt),
		IsEnabled:       true,
		CustomerPaysFee: customerPaysFee,
	}
	require.NoError(t, e.db.Create(m).Error)
	return m
}

func (e *testEnv) payment(t *testing.T, gw *models.PaymentGateway, status models.TransactionStatus, amount string) *models.PaymentTransaction {
	t.Helper()
	txn := &models.PaymentTransaction{
		Reference:            "PAY-" + uuid.NewString(),
		OrganizationID:       1,
		GatewayID:            gw.ID,
		Type:                 models.TxnTypePayment,
		Status:               status,
		Amount:               decimal.RequireFromString(amount),
		Currency:             "USD",
		GatewayTransactionID: "gw_txn_1",
		GatewayResponse:      datatypes.JSON(`{}`),
	}
	require.NoError(t, e.db.Create(txn).Error)
	return txn
}

func (e *testEnv) reload(t *testing.T, id uint) *models.PaymentTransaction {
	t.Helper()
	var txn models.PaymentTransaction
	require.NoError(t, e.db.First(&txn, id).Error)
	return &txn
}

func (e *testEnv) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.PaymentTransaction{}).Count(&n).Error)
	return n
}

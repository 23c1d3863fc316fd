package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRepository_CompareAndSetStatus(t *testing.T) {
	repo := NewTransactionRepository(testutil.NewDB(t))
	ctx := context.Background()

	txn := &models.PaymentTransaction{
		Reference:      "PAY-cas",
		OrganizationID: 1,
		Type:           models.TxnTypePayment,
		Status:         models.TxnInitiated,
		Amount:         decimal.NewFromInt(100),
		Currency:       "USD",
	}
	require.NoError(t, repo.Create(ctx, txn))

	ok, err := repo.CompareAndSetStatus(ctx, txn.ID, models.PendingStatuses, models.TxnCompleted, map[string]interface{}{"failure_reason": ""})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSetStatus(ctx, txn.ID, models.PendingStatuses, models.TxnFailed, nil)
	require.NoError(t, err)
	assert.False(t, ok, "a settled row must not move again")

	got, err := repo.FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnCompleted, got.Status)

	_, err = repo.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, 9999, map[string]interface{}{"payment_link": "x"}), ErrNotFound)
}

func TestTransactionRepository_Lookups(t *testing.T) {
	repo := NewTransactionRepository(testutil.NewDB(t))
	ctx := context.Background()

	parent := &models.PaymentTransaction{
		Reference:            "PAY-1",
		OrganizationID:       1,
		GatewayID:            3,
		GatewayTransactionID: "order_1",
		Type:                 models.TxnTypePayment,
		Status:               models.TxnCompleted,
		Amount:               decimal.NewFromInt(100),
		Currency:             "INR",
	}
	require.NoError(t, repo.Create(ctx, parent))

	got, err := repo.FindByGatewayTransactionID(ctx, 3, "order_1")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, got.ID)

	_, err = repo.FindByGatewayTransactionID(ctx, 4, "order_1")
	assert.ErrorIs(t, err, ErrNotFound)

	byRef, err := repo.FindByReference(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, byRef.ID)

	for i, status := range []models.TransactionStatus{models.TxnFailed, models.TxnProcessing, models.TxnCompleted} {
		require.NoError(t, repo.Create(ctx, &models.PaymentTransaction{
			Reference:           "REF-" + string(rune('a'+i)),
			OrganizationID:      1,
			GatewayID:           3,
			Type:                models.TxnTypeRefund,
			Status:              status,
			ParentTransactionID: &parent.ID,
			Amount:              decimal.NewFromInt(10),
			Currency:            "INR",
		}))
	}

	refunds, err := repo.ListRefunds(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 3)

	pending, err := repo.FindPendingRefund(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "REF-b", pending.Reference)
}

func TestGatewayRepository_ListActiveByOrg(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGatewayRepository(db)
	ctx := context.Background()

	rows := []*models.PaymentGateway{
		{OrganizationID: 1, Name: "late", Type: models.GatewayStripe, Status: models.GatewayActive, IsEnabled: true, Priority: 5},
		{OrganizationID: 1, Name: "first", Type: models.GatewayPayU, Status: models.GatewayActive, IsEnabled: true, Priority: 1},
		{OrganizationID: 1, Name: "testing", Type: models.GatewayPayPal, Status: models.GatewayTesting, IsEnabled: true, Priority: 0},
		{OrganizationID: 1, Name: "disabled", Type: models.GatewayRazorpay, Status: models.GatewayActive, IsEnabled: true, Priority: 0},
		{OrganizationID: 2, Name: "other org", Type: models.GatewayStripe, Status: models.GatewayActive, IsEnabled: true, Priority: 0},
	}
	for _, gw := range rows {
		require.NoError(t, db.Create(gw).Error)
	}
	// A false bool is a zero value and would be replaced by the column default on insert.
	require.NoError(t, db.Model(rows[3]).Update("is_enabled", false).Error)

	gws, err := repo.ListActiveByOrg(ctx, 1)
	require.NoError(t, err)
	require.Len(t, gws, 2)
	assert.Equal(t, "first", gws[0].Name)
	assert.Equal(t, "late", gws[1].Name)

	before, err := repo.FindByID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.NoError(t, repo.SetHealthy(ctx, rows[0].ID, false))
	after, err := repo.FindByID(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.False(t, after.IsHealthy)
	assert.Equal(t, before.ConfigVersion(), after.ConfigVersion())
}

func TestLinkRepository_ConsumeUse(t *testing.T) {
	repo := NewLinkRepository(testutil.NewDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	link := &models.PaymentLink{
		Token:          "tok-1",
		OrganizationID: 1,
		Amount:         decimal.NewFromInt(50),
		Currency:       "INR",
		MaxUses:        2,
		ExpiresAt:      now.Add(time.Hour),
		IsActive:       true,
	}
	require.NoError(t, repo.Create(ctx, link))

	for i := 0; i < 2; i++ {
		ok, err := repo.ConsumeUse(ctx, link.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.ConsumeUse(ctx, link.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "use limit reached")

	require.NoError(t, repo.ReleaseUse(ctx, link.ID))
	ok, err = repo.ConsumeUse(ctx, link.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired link")

	got, err := repo.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UseCount)
}

func TestInvoiceRepository_RecordPayment(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	inv := &models.Invoice{OrganizationID: 1, Amount: decimal.NewFromInt(100), Currency: "INR", Status: "sent"}
	require.NoError(t, db.Create(inv).Error)

	paidAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordPayment(ctx, inv.ID, decimal.NewFromInt(40), paidAt))
	got, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "partially_paid", got.Status)

	require.NoError(t, repo.RecordPayment(ctx, inv.ID, decimal.NewFromInt(60), paidAt))
	got, err = repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(got.AmountPaid))

	assert.ErrorIs(t, repo.RecordPayment(ctx, 999, decimal.NewFromInt(1), paidAt), ErrNotFound)
}

func TestWebhookEventRepository_DedupeKey(t *testing.T) {
	repo := NewWebhookEventRepository(testutil.NewDB(t))
	ctx := context.Background()

	evt := &models.WebhookEvent{Provider: models.GatewayStripe, ProviderEventID: "evt_1", Status: models.WebhookProcessed}
	require.NoError(t, repo.Create(ctx, evt))

	dup := &models.WebhookEvent{Provider: models.GatewayStripe, ProviderEventID: "evt_1", Status: models.WebhookProcessed}
	assert.Error(t, repo.Create(ctx, dup))

	other := &models.WebhookEvent{Provider: models.GatewayPayPal, ProviderEventID: "evt_1", Status: models.WebhookProcessed}
	assert.NoError(t, repo.Create(ctx, other))

	got, err := repo.FindByProviderEvent(ctx, models.GatewayStripe, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, evt.ID, got.ID)
}

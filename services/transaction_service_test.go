package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestInitiatePayment_StoresGatewayResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gw := env.gateway(t, models.GatewayGPay, "2", "0", 1)
	method := env.method(t, gw.ID, models.MethodUPI, false)

	var sent gateways.PaymentRequest
	env.adapters[models.GatewayGPay].
		On("InitiatePayment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(gateways.PaymentRequest) }).
		Return(&gateways.PaymentResponse{
			Success:       true,
			TransactionID: "gw_txn_1",
			PaymentURL:    "upi://pay?pa=acme@okicici",
			QRCode:        "iVBORw0KGgo=",
			Raw:           map[string]interface{}{"provider": "GPAY"},
		}, nil).Once()

	res, err := env.txns.InitiatePayment(ctx, InitiatePaymentInput{
		OrganizationID:  1,
		PaymentMethodID: method.ID,
		Amount:          decimal.NewFromInt(1000),
		Currency:        "inr",
		Metadata:        map[string]string{"order": "A-1"},
	})
	require.NoError(t, err)

	txn := res.Transaction
	assert.Equal(t, models.TxnInitiated, txn.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(txn.Fee), "fee is %s", txn.Fee)
	assert.Equal(t, "INR", txn.Currency)
	assert.Equal(t, "gw_txn_1", txn.GatewayTransactionID)
	assert.Equal(t, "upi://pay?pa=acme@okicici", txn.PaymentLink)
	assert.Equal(t, "iVBORw0KGgo=", res.QRCode)
	assert.Contains(t, string(txn.GatewayResponse), `"initiate"`)

	assert.Equal(t, txn.ID, sent.TransactionID)
	assert.True(t, decimal.NewFromInt(1000).Equal(sent.Amount))
	assert.Equal(t, fmt.Sprint(txn.ID), sent.Metadata["transaction_id"])
	assert.Equal(t, "A-1", sent.Metadata["order"])
	assert.Equal(t, fmt.Sprintf("https://pay.example.com/v1/upi/callback/gpay?gateway_id=%d", gw.ID), sent.CallbackURL)
	assert.Equal(t, "https://pay.example.com/v1/returns/"+txn.Reference, sent.ReturnURL)
	assert.NotContains(t, sent.ReturnURL, fmt.Sprintf("/%d", txn.ID))

	assert.Equal(t, 1, env.bus.Count(events.PaymentInitiated))
}

func TestInitiatePayment_CustomerPaysFee(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	method := env.method(t, gw.ID, models.MethodCard, true)

	var sent gateways.PaymentRequest
	env.adapters[models.GatewayStripe].
		On("InitiatePayment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(gateways.PaymentRequest) }).
		Return(&gateways.PaymentResponse{Success: true, TransactionID: "pi_1"}, nil).Once()

	res, err := env.txns.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrganizationID:  1,
		PaymentMethodID: method.ID,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.20").Equal(res.Transaction.Fee))
	assert.True(t, decimal.RequireFromString("103.20").Equal(sent.Amount), "charged %s", sent.Amount)
	assert.True(t, decimal.NewFromInt(100).Equal(res.Transaction.Amount))
	assert.Equal(t, fmt.Sprintf("https://pay.example.com/v1/webhooks/stripe/%d", gw.ID), sent.CallbackURL)
}

func TestInitiatePayment_GatewayFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	method := env.method(t, gw.ID, models.MethodCard, false)

	env.adapters[models.GatewayStripe].
		On("InitiatePayment", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer")).Once()

	_, err := env.txns.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrganizationID:  1,
		PaymentMethodID: method.ID,
		Amount:          decimal.NewFromInt(50),
		Currency:        "USD",
	})
	require.Error(t, err)
	assert.True(t, utils.IsGatewayError(err))

	var stored models.PaymentTransaction
	require.NoError(t, env.db.Last(&stored).Error)
	assert.Equal(t, models.TxnFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "connection reset")
	assert.Equal(t, 1, env.bus.Count(events.PaymentFailed))
	assert.Equal(t, 0, env.bus.Count(events.PaymentInitiated))
}

func TestInitiatePayment_StoreFailureLogsProviderID(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	method := env.method(t, gw.ID, models.MethodCard, false)

	core, logs := observer.New(zapcore.ErrorLevel)
	previous := utils.ErrorLogger
	utils.ErrorLogger = zap.New(core).Sugar()
	t.Cleanup(func() { utils.ErrorLogger = previous })

	env.adapters[models.GatewayStripe].
		On("InitiatePayment", mock.Anything, mock.Anything).
		Return(&gateways.PaymentResponse{Success: true, TransactionID: "pi_orphan"}, nil).Once()
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(db *gorm.DB) {
		_ = db.AddError(errors.New("disk I/O error"))
	}))

	_, err := env.txns.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrganizationID:  1,
		PaymentMethodID: method.ID,
		Amount:          decimal.NewFromInt(50),
		Currency:        "USD",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pi_orphan")

	entries := logs.FilterMessageSnippet("pi_orphan").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, fmt.Sprintf("gateway %d", gw.ID))
	assert.Equal(t, 0, env.bus.Count(events.PaymentInitiated))
}

func TestInitiatePayment_RejectsBeforePersisting(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	card := env.method(t, gw.ID, models.MethodCard, false)
	netbanking := env.method(t, gw.ID, models.MethodNetBanking, false)
	disabled := env.method(t, gw.ID, models.MethodCard, false)
	require.NoError(t, env.db.Model(disabled).Update("is_enabled", false).Error)

	tests := []struct {
		name   string
		input  InitiatePaymentInput
		expect func(error) bool
	}{
		{"zero amount", InitiatePaymentInput{OrganizationID: 1, PaymentMethodID: card.ID, Amount: decimal.Zero, Currency: "USD"}, utils.IsValidationError},
		{"bad currency", InitiatePaymentInput{OrganizationID: 1, PaymentMethodID: card.ID, Amount: decimal.NewFromInt(1), Currency: "US"}, utils.IsValidationError},
		{"unsupported currency", InitiatePaymentInput{OrganizationID: 1, PaymentMethodID: card.ID, Amount: decimal.NewFromInt(1), Currency: "JPY"}, utils.IsValidationError},
		{"unsupported method", InitiatePaymentInput{OrganizationID: 1, PaymentMethodID: netbanking.ID, Amount: decimal.NewFromInt(1), Currency: "USD"}, utils.IsValidationError},
		{"disabled method", InitiatePaymentInput{OrganizationID: 1, PaymentMethodID: disabled.ID, Amount: decimal.NewFromInt(1), Currency: "USD"}, utils.IsNotFoundError},
		{"other organization", InitiatePaymentInput{OrganizationID: 2, PaymentMethodID: card.ID, Amount: decimal.NewFromInt(1), Currency: "USD"}, utils.IsNotFoundError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.txns.InitiatePayment(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, tt.expect(err), "unexpected error %v", err)
		})
	}

	assert.Equal(t, int64(0), env.countTransactions(t))
	env.adapters[models.GatewayStripe].AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestInitiatePayment_AutoRoutedMethodUsesCheapestGateway(t *testing.T) {
	env := newTestEnv(t)
	env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	payu := env.gateway(t, models.GatewayPayU, "2", "0", 2)
	method := env.method(t, 0, models.MethodCard, false)

	env.adapters[models.GatewayPayU].
		On("InitiatePayment", mock.Anything, mock.Anything).
		Return(&gateways.PaymentResponse{Success: true, TransactionID: "payu_1"}, nil).Once()

	res, err := env.txns.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrganizationID:  1,
		PaymentMethodID: method.ID,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, payu.ID, res.Transaction.GatewayID)
	env.adapters[models.GatewayStripe].AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestVerifyPayment_CompletesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	txn := env.payment(t, gw, models.TxnInitiated, "100")

	stripe := env.adapters[models.GatewayStripe]
	stripe.On("VerifyPayment", mock.Anything, mock.Anything).
		Return(&gateways.VerifyResponse{Success: true, Status: gateways.StatusCompleted, Raw: map[string]interface{}{"status": "succeeded"}}, nil).Once()

	first, err := env.txns.VerifyPayment(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)
	assert.Contains(t, string(first.GatewayResponse), `"verify"`)

	second, err := env.txns.VerifyPayment(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())

	stripe.AssertNumberOfCalls(t, "VerifyPayment", 1)
	assert.Equal(t, 1, env.bus.Count(events.PaymentCompleted))
}

func TestVerifyPayment_ConcurrentCallsEmitOnce(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	txn := env.payment(t, gw, models.TxnProcessing, "100")

	env.adapters[models.GatewayStripe].On("VerifyPayment", mock.Anything, mock.Anything).
		Return(&gateways.VerifyResponse{Success: true, Status: gateways.StatusCompleted}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.txns.VerifyPayment(context.Background(), txn.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, models.TxnCompleted, env.reload(t, txn.ID).Status)
	assert.Equal(t, 1, env.bus.Count(events.PaymentCompleted))
	env.adapters[models.GatewayStripe].AssertNumberOfCalls(t, "VerifyPayment", 1)
}

func TestVerifyPayment_Outcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayPayU, "2", "0", 1)
	payu := env.adapters[models.GatewayPayU]

	pending := env.payment(t, gw, models.TxnInitiated, "10")
	payu.On("VerifyPayment", mock.Anything, mock.MatchedBy(func(req gateways.VerifyRequest) bool { return req.TransactionID == pending.ID })).
		Return(&gateways.VerifyResponse{Status: gateways.StatusPending}, nil).Once()
	got, err := env.txns.VerifyPayment(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, got.Status)

	declined := env.payment(t, gw, models.TxnProcessing, "10")
	payu.On("VerifyPayment", mock.Anything, mock.MatchedBy(func(req gateways.VerifyRequest) bool { return req.TransactionID == declined.ID })).
		Return(&gateways.VerifyResponse{Status: gateways.StatusFailed, Error: "card declined"}, nil).Once()
	got, err = env.txns.VerifyPayment(ctx, declined.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)
	assert.Equal(t, "card declined", got.FailureReason)

	broken := env.payment(t, gw, models.TxnProcessing, "10")
	payu.On("VerifyPayment", mock.Anything, mock.MatchedBy(func(req gateways.VerifyRequest) bool { return req.TransactionID == broken.ID })).
		Return(nil, context.DeadlineExceeded).Once()
	_, err = env.txns.VerifyPayment(ctx, broken.ID)
	assert.True(t, utils.IsGatewayError(err))
	assert.Equal(t, models.TxnFailed, env.reload(t, broken.ID).Status)

	assert.Equal(t, 0, env.bus.Count(events.PaymentCompleted))
	assert.Equal(t, 2, env.bus.Count(events.PaymentFailed))

	_, err = env.txns.VerifyPayment(ctx, 12345)
	assert.True(t, utils.IsNotFoundError(err))
}

func TestProcessRefund_PartialThenRemainder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	parent := env.payment(t, gw, models.TxnCompleted, "1000")
	stripe := env.adapters[models.GatewayStripe]

	stripe.On("ProcessRefund", mock.Anything, mock.MatchedBy(func(req gateways.RefundRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(400)) && req.GatewayTransactionID == "gw_txn_1"
	})).Return(&gateways.RefundResponse{Success: true, RefundID: "re_1", Status: gateways.StatusCompleted}, nil).Once()

	amount := decimal.NewFromInt(400)
	res, err := env.txns.ProcessRefund(ctx, parent.ID, &amount, "requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, models.TxnTypeRefund, res.Refund.Type)
	assert.Equal(t, models.TxnCompleted, res.Refund.Status)
	assert.True(t, amount.Equal(res.Refund.Amount))
	assert.Equal(t, "re_1", res.Refund.GatewayTransactionID)
	require.NotNil(t, res.Refund.ParentTransactionID)
	assert.Equal(t, parent.ID, *res.Refund.ParentTransactionID)
	assert.Equal(t, models.TxnPartiallyRefunded, res.Parent.Status)

	tooMuch := decimal.NewFromInt(700)
	_, err = env.txns.ProcessRefund(ctx, parent.ID, &tooMuch, "")
	assert.True(t, utils.IsValidationError(err))
	refunds, err := env.txns.ListRefunds(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1, "a rejected refund leaves no row")

	stripe.On("ProcessRefund", mock.Anything, mock.MatchedBy(func(req gateways.RefundRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(600))
	})).Return(&gateways.RefundResponse{Success: true, RefundID: "re_2", Status: gateways.StatusCompleted}, nil).Once()

	res, err = env.txns.ProcessRefund(ctx, parent.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnRefunded, res.Parent.Status)
	assert.Equal(t, 2, env.bus.Count(events.RefundCompleted))

	_, err = env.txns.ProcessRefund(ctx, parent.ID, nil, "")
	assert.True(t, utils.IsValidationError(err))
}

func TestProcessRefund_RejectsUnsettledPayment(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)

	for _, status := range []models.TransactionStatus{models.TxnInitiated, models.TxnProcessing, models.TxnFailed, models.TxnRefunded, models.TxnCancelled} {
		txn := env.payment(t, gw, status, "100")
		_, err := env.txns.ProcessRefund(context.Background(), txn.ID, nil, "")
		assert.True(t, utils.IsValidationError(err), "status %s", status)
	}
	assert.Equal(t, int64(5), env.countTransactions(t))
	env.adapters[models.GatewayStripe].AssertNotCalled(t, "ProcessRefund", mock.Anything, mock.Anything)
}

// refundlessAdapter is a mock whose provider has no refund API.
type refundlessAdapter struct{ *mockAdapter }

func (refundlessAdapter) SupportsRefund() bool { return false }

func TestProcessRefund_RejectsGatewayWithoutRefunds(t *testing.T) {
	env := newTestEnv(t)
	m := newMockAdapter()
	env.registry.Register(models.GatewayBHIM, func() gateways.Adapter { return refundlessAdapter{m} })
	gw := env.gateway(t, models.GatewayBHIM, "0", "0", 1)
	txn := env.payment(t, gw, models.TxnCompleted, "100")

	_, err := env.txns.ProcessRefund(context.Background(), txn.ID, nil, "customer request")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))

	assert.Equal(t, int64(1), env.countTransactions(t), "no refund row is written")
	assert.Equal(t, models.TxnCompleted, env.reload(t, txn.ID).Status)
	m.AssertNotCalled(t, "ProcessRefund", mock.Anything, mock.Anything)
}

func TestProcessRefund_GatewayFailureLeavesParent(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayRazorpay, "2", "0", 1)
	parent := env.payment(t, gw, models.TxnCompleted, "250")

	env.adapters[models.GatewayRazorpay].On("ProcessRefund", mock.Anything, mock.Anything).
		Return(nil, utils.GatewayError("razorpay refund failed", errors.New("BAD_REQUEST_ERROR"))).Once()

	_, err := env.txns.ProcessRefund(context.Background(), parent.ID, nil, "")
	assert.True(t, utils.IsGatewayError(err))

	assert.Equal(t, models.TxnCompleted, env.reload(t, parent.ID).Status)
	refunds, err := env.txns.ListRefunds(context.Background(), parent.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, models.TxnFailed, refunds[0].Status)
	assert.Equal(t, 1, env.bus.Count(events.RefundFailed))
}

func TestProcessRefund_PendingRefundConfirmedByWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayPayPal, "3.49", "0.49", 1)
	parent := env.payment(t, gw, models.TxnCompleted, "80")

	env.adapters[models.GatewayPayPal].On("ProcessRefund", mock.Anything, mock.Anything).
		Return(&gateways.RefundResponse{Success: true, RefundID: "RF-1", Status: gateways.StatusPending}, nil).Once()

	res, err := env.txns.ProcessRefund(ctx, parent.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, res.Refund.Status)
	assert.Equal(t, models.TxnCompleted, res.Parent.Status)

	// The in-flight refund already counts against the payment.
	one := decimal.NewFromInt(1)
	_, err = env.txns.ProcessRefund(ctx, parent.ID, &one, "")
	assert.True(t, utils.IsValidationError(err))

	evt := &gateways.WebhookEvent{ID: "WH-1", Type: gateways.EventRefundCompleted, TransactionID: parent.ID, GatewayTransactionID: "gw_txn_1"}
	updated, applied, err := env.txns.ApplyGatewayEvent(ctx, gw, evt)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.TxnRefunded, updated.Status)
	assert.Equal(t, models.TxnCompleted, env.reload(t, res.Refund.ID).Status)

	_, applied, err = env.txns.ApplyGatewayEvent(ctx, gw, evt)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, env.bus.Count(events.RefundCompleted))
}

func TestApplyGatewayEvent_Correlation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayRazorpay, "2", "0", 1)
	other := env.gateway(t, models.GatewayPayU, "2", "0", 2)
	txn := env.payment(t, gw, models.TxnInitiated, "100")

	// No echoed id: the provider's own id finds the payment.
	updated, applied, err := env.txns.ApplyGatewayEvent(ctx, gw, &gateways.WebhookEvent{ID: "e1", Type: gateways.EventPaymentFailed, GatewayTransactionID: "gw_txn_1", FailureReason: "expired card"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.TxnFailed, updated.Status)
	assert.Equal(t, "expired card", updated.FailureReason)

	// A late success for a failed payment is a no-op.
	_, applied, err = env.txns.ApplyGatewayEvent(ctx, gw, &gateways.WebhookEvent{ID: "e2", Type: gateways.EventPaymentSuccess, TransactionID: txn.ID})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.TxnFailed, env.reload(t, txn.ID).Status)

	_, _, err = env.txns.ApplyGatewayEvent(ctx, other, &gateways.WebhookEvent{ID: "e3", Type: gateways.EventPaymentSuccess, TransactionID: txn.ID})
	assert.True(t, utils.IsNotFoundError(err), "events are scoped to their gateway")

	_, _, err = env.txns.ApplyGatewayEvent(ctx, gw, &gateways.WebhookEvent{ID: "e4", Type: gateways.EventPaymentSuccess, TransactionID: txn.ID, GatewayTransactionID: "order_other"})
	assert.True(t, utils.IsValidationError(err))

	_, _, err = env.txns.ApplyGatewayEvent(ctx, gw, &gateways.WebhookEvent{ID: "e5", Type: gateways.EventPaymentSuccess})
	assert.True(t, utils.IsNotFoundError(err))
}

func TestCancelTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	txn := env.payment(t, gw, models.TxnInitiated, "100")

	cancelled, err := env.txns.CancelTransaction(ctx, txn.ID, "customer abandoned checkout")
	require.NoError(t, err)
	assert.Equal(t, models.TxnCancelled, cancelled.Status)
	assert.Equal(t, 1, env.bus.Count(events.PaymentCancelled))

	_, err = env.txns.CancelTransaction(ctx, txn.ID, "")
	assert.True(t, utils.IsConflictError(err))

	_, err = env.txns.ExpireTransaction(ctx, txn.ID)
	assert.True(t, utils.IsConflictError(err))
}

func TestUpiExpiryExpiresLinkedPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayGPay, "0", "0", 1)
	txn := env.payment(t, gw, models.TxnInitiated, "149")
	done := env.payment(t, gw, models.TxnCompleted, "149")

	env.bus.Publish(ctx, events.UpiTransactionExpired, map[string]interface{}{"upi_transaction_id": uint(1), "payment_transaction_id": txn.ID})
	env.bus.Publish(ctx, events.UpiTransactionExpired, map[string]interface{}{"upi_transaction_id": uint(2), "payment_transaction_id": done.ID})

	assert.Equal(t, models.TxnExpired, env.reload(t, txn.ID).Status)
	assert.Equal(t, models.TxnCompleted, env.reload(t, done.ID).Status)
	assert.Equal(t, 1, env.bus.Count(events.PaymentExpired))
}

func TestInvoiceMarkedPaidOnCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	SubscribeInvoiceUpdates(env.bus, env.invoices)

	inv := &models.Invoice{OrganizationID: 1, Amount: decimal.NewFromInt(100), Currency: "USD", Status: "sent"}
	require.NoError(t, env.db.Create(inv).Error)

	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	txn := env.payment(t, gw, models.TxnProcessing, "100")
	require.NoError(t, env.db.Model(txn).Update("invoice_id", inv.ID).Error)

	env.adapters[models.GatewayStripe].On("VerifyPayment", mock.Anything, mock.Anything).
		Return(&gateways.VerifyResponse{Success: true, Status: gateways.StatusCompleted}, nil).Once()
	_, err := env.txns.VerifyPayment(ctx, txn.ID)
	require.NoError(t, err)

	got, err := env.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	require.NotNil(t, got.PaidAt)
	assert.WithinDuration(t, time.Now(), *got.PaidAt, time.Minute)
}

func TestRefreshPaymentStatus_GatewayErrorLeavesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	txn := env.payment(t, gw, models.TxnInitiated, "100")

	env.adapters[models.GatewayStripe].On("VerifyPayment", mock.Anything, mock.Anything).
		Return(nil, utils.GatewayError("stripe returned status 404", nil)).Once()

	got, err := env.txns.RefreshPaymentStatus(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TxnInitiated, got.Status)

	stored := env.reload(t, txn.ID)
	assert.Equal(t, models.TxnInitiated, stored.Status)
	assert.Empty(t, stored.FailureReason)
	assert.Equal(t, 0, env.bus.Count(events.PaymentFailed))

	_, err = env.txns.RefreshPaymentStatus(ctx, "PAY-unknown")
	assert.True(t, utils.IsNotFoundError(err))
}

// raceVerifyAndEvent runs a verify on verifier and a webhook event on
// receiver against the same transaction, released together.
func raceVerifyAndEvent(t *testing.T, verifier, receiver *TransactionService, gw *models.PaymentGateway, txn *models.PaymentTransaction, evt gateways.WebhookEvent) {
	t.Helper()
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, err := verifier.VerifyPayment(context.Background(), txn.ID)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, _, err := receiver.ApplyGatewayEvent(context.Background(), gw, &evt)
		assert.NoError(t, err)
	}()
	close(start)
	wg.Wait()
}

// terminalEvents returns the completed and failed events published for id.
func terminalEvents(bus *events.Recorder, id uint) (completed, failed int) {
	for _, e := range bus.Named(events.PaymentCompleted) {
		if e.Payload["transaction_id"] == id {
			completed++
		}
	}
	for _, e := range bus.Named(events.PaymentFailed) {
		if e.Payload["transaction_id"] == id {
			failed++
		}
	}
	return completed, failed
}

// secondInstance is another service over the same database, as a second
// replica would be. It shares no in-process locks with env.txns.
func (e *testEnv) secondInstance() *TransactionService {
	return NewTransactionService(
		repository.NewTransactionRepository(e.db),
		repository.NewMethodRepository(e.db),
		e.factory,
		e.bus,
		TransactionConfig{CallbackBaseURL: "https://pay.example.com", GatewayTimeout: time.Second},
	)
}

func TestVerifyRacingSuccessWebhook_CompletesOnce(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	env.adapters[models.GatewayStripe].On("VerifyPayment", mock.Anything, mock.Anything).
		Return(&gateways.VerifyResponse{Success: true, Status: gateways.StatusCompleted}, nil)

	replicas := map[string]*TransactionService{"same instance": env.txns, "two instances": env.secondInstance()}
	for name, receiver := range replicas {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				txn := env.payment(t, gw, models.TxnProcessing, "100")
				raceVerifyAndEvent(t, env.txns, receiver, gw, txn, gateways.WebhookEvent{
					ID:            fmt.Sprintf("evt_%s_%d", name, i),
					Type:          gateways.EventPaymentSuccess,
					TransactionID: txn.ID,
				})

				assert.Equal(t, models.TxnCompleted, env.reload(t, txn.ID).Status)
				completed, failed := terminalEvents(env.bus, txn.ID)
				assert.Equal(t, 1, completed, "exactly one payment.completed for transaction %d", txn.ID)
				assert.Zero(t, failed)
			}
		})
	}
}

func TestVerifyRacingFailureWebhook_FirstWriterWins(t *testing.T) {
	env := newTestEnv(t)
	gw := env.gateway(t, models.GatewayStripe, "2.9", "0.30", 1)
	env.adapters[models.GatewayStripe].On("VerifyPayment", mock.Anything, mock.Anything).
		Return(&gateways.VerifyResponse{Success: true, Status: gateways.StatusCompleted}, nil)

	replicas := map[string]*TransactionService{"same instance": env.txns, "two instances": env.secondInstance()}
	for name, receiver := range replicas {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				txn := env.payment(t, gw, models.TxnProcessing, "100")
				raceVerifyAndEvent(t, env.txns, receiver, gw, txn, gateways.WebhookEvent{
					ID:            fmt.Sprintf("evt_%s_%d", name, i),
					Type:          gateways.EventPaymentFailed,
					TransactionID: txn.ID,
					FailureReason: "card declined",
				})

				stored := env.reload(t, txn.ID)
				completed, failed := terminalEvents(env.bus, txn.ID)
				require.Equal(t, 1, completed+failed, "one terminal event for transaction %d", txn.ID)
				switch stored.Status {
				case models.TxnCompleted:
					assert.Equal(t, 1, completed)
					assert.NotNil(t, stored.CompletedAt)
					assert.Empty(t, stored.FailureReason)
				case models.TxnFailed:
					assert.Equal(t, 1, failed)
					assert.Nil(t, stored.CompletedAt)
					assert.Equal(t, "card declined", stored.FailureReason)
				default:
					t.Fatalf("transaction %d ended %s", txn.ID, stored.Status)
				}
			}
		})
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(7)
	acquired := make(chan struct{})
	go func() {
		release := k.Lock(7)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the first held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	assert.Eventually(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return len(k.locks) == 0
	}, time.Second, 5*time.Millisecond)
}

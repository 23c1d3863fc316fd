package gateways

import (
	"context"
	"fmt"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
)

// razorpayAPI is the slice of the Razorpay SDK the adapter uses.
type razorpayAPI interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	FetchOrder(orderID string) (map[string]interface{}, error)
	OrderPayments(orderID string) (map[string]interface{}, error)
	Refund(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error)
}

type razorpaySDK struct {
	client *razorpay.Client
}

func (r razorpaySDK) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return r.client.Order.Create(data, nil)
}

func (r razorpaySDK) FetchOrder(orderID string) (map[string]interface{}, error) {
	return r.client.Order.Fetch(orderID, nil, nil)
}

func (r razorpaySDK) OrderPayments(orderID string) (map[string]interface{}, error) {
	return r.client.Order.Payments(orderID, nil, nil)
}

func (r razorpaySDK) Refund(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	return r.client.Payment.Refund(paymentID, amount, data, nil)
}

// RazorpayAdapter drives Razorpay orders through the official SDK.
type RazorpayAdapter struct {
	base
	api           razorpayAPI
	keyID         string
	webhookSecret string
}

func NewRazorpayAdapter() Adapter {
	return &RazorpayAdapter{
		base: base{
			name:       "razorpay",
			methods:    []models.MethodType{models.MethodCard, models.MethodUPI, models.MethodWallet, models.MethodNetBanking},
			currencies: []string{"INR"},
		},
	}
}

func (r *RazorpayAdapter) Initialize(cfg Config) error {
	r.cfg = cfg
	if err := r.requireCredentials("key_id", "key_secret"); err != nil {
		return err
	}
	r.keyID = cfg.Credential("key_id")
	r.webhookSecret = cfg.Credential("webhook_secret")
	r.currencyOverride()
	if r.api == nil {
		r.api = razorpaySDK{client: razorpay.NewClient(r.keyID, cfg.Credential("key_secret"))}
	}
	utils.LogInfo("Razorpay gateway %d initialized (sandbox=%v)", cfg.GatewayID, cfg.IsSandbox)
	return nil
}

// call runs a blocking SDK request, giving up when ctx ends. The SDK has no
// context support, so an abandoned call finishes in the background.
func (r *RazorpayAdapter) call(ctx context.Context, op string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		utils.LogError("Razorpay %s abandoned: %v", op, ctx.Err())
		return nil, utils.GatewayError("razorpay "+op+" timed out", ctx.Err())
	case res := <-done:
		if res.err != nil {
			utils.LogError("Razorpay %s failed: %v", op, res.err)
			return res.body, utils.GatewayError("razorpay "+op+" failed", res.err)
		}
		return res.body, nil
	}
}

func (r *RazorpayAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	utils.LogInfo("Razorpay InitiatePayment called for transaction %d", req.TransactionID)

	notes := map[string]interface{}{
		"transaction_id": formatID(req.TransactionID),
		"reference":      req.Reference,
	}
	for k, v := range req.Metadata {
		if _, taken := notes[k]; !taken {
			notes[k] = v
		}
	}
	orderData := map[string]interface{}{
		"amount":          minorUnits(req.Amount, req.Currency),
		"currency":        req.Currency,
		"receipt":         req.Reference,
		"payment_capture": 1,
		"notes":           notes,
	}
	order, err := r.call(ctx, "order create", func() (map[string]interface{}, error) {
		return r.api.CreateOrder(orderData)
	})
	if err != nil {
		return nil, err
	}

	orderID := fmt.Sprintf("%v", order["id"])
	utils.LogInfo("Razorpay order %s created for transaction %d", orderID, req.TransactionID)
	return &PaymentResponse{
		Success:       true,
		TransactionID: orderID,
		Token:         r.keyID,
		Raw:           order,
	}, nil
}

func collectionItems(body map[string]interface{}) []map[string]interface{} {
	raw, _ := body["items"].([]interface{})
	items := make([]map[string]interface{}, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items
}

// paymentOutcome folds an order's payment attempts into one status. Any
// captured attempt wins; the order fails only when every attempt failed.
func paymentOutcome(payments []map[string]interface{}) (VerifyStatus, string, string) {
	failed := 0
	var reason string
	for _, p := range payments {
		switch str(p, "status") {
		case "captured":
			return StatusCompleted, str(p, "id"), ""
		case "failed":
			failed++
			reason = str(p, "error_description")
		}
	}
	if len(payments) > 0 && failed == len(payments) {
		return StatusFailed, "", reason
	}
	return StatusPending, "", ""
}

func (r *RazorpayAdapter) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if req.GatewayTransactionID == "" {
		return nil, utils.ValidationFailedError("razorpay verification needs the order id", nil)
	}

	body, err := r.call(ctx, "order payments", func() (map[string]interface{}, error) {
		return r.api.OrderPayments(req.GatewayTransactionID)
	})
	if err != nil {
		return nil, err
	}

	status, paymentID, reason := paymentOutcome(collectionItems(body))
	if status == StatusPending {
		order, err := r.call(ctx, "order fetch", func() (map[string]interface{}, error) {
			return r.api.FetchOrder(req.GatewayTransactionID)
		})
		if err != nil {
			return nil, err
		}
		if str(order, "status") == "paid" {
			status = StatusCompleted
		}
	}

	raw := map[string]interface{}{"payments": body}
	if paymentID != "" {
		raw["payment_id"] = paymentID
	}
	return &VerifyResponse{
		Success:              status == StatusCompleted,
		Status:               status,
		GatewayTransactionID: req.GatewayTransactionID,
		Raw:                  raw,
		Error:                reason,
	}, nil
}

func (r *RazorpayAdapter) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	utils.LogInfo("Razorpay ProcessRefund called for transaction %d", req.TransactionID)

	body, err := r.call(ctx, "order payments", func() (map[string]interface{}, error) {
		return r.api.OrderPayments(req.GatewayTransactionID)
	})
	if err != nil {
		return nil, err
	}
	status, paymentID, _ := paymentOutcome(collectionItems(body))
	if status != StatusCompleted || paymentID == "" {
		return nil, utils.ValidationFailedError("razorpay order has no captured payment to refund", nil)
	}

	amount := int(minorUnits(req.Amount, req.Currency))
	data := map[string]interface{}{
		"receipt": req.Reference,
		"notes": map[string]interface{}{
			"transaction_id": formatID(req.TransactionID),
			"reason":         req.Reason,
		},
	}
	refund, err := r.call(ctx, "refund", func() (map[string]interface{}, error) {
		return r.api.Refund(paymentID, amount, data)
	})
	if err != nil {
		return nil, err
	}

	resp := &RefundResponse{RefundID: str(refund, "id"), Raw: refund}
	switch str(refund, "status") {
	case "processed":
		resp.Success, resp.Status = true, StatusCompleted
	case "failed":
		resp.Status = StatusFailed
		resp.Error = "razorpay refund failed"
	default:
		resp.Success, resp.Status = true, StatusPending
	}
	return resp, nil
}

func notesTransactionID(entity map[string]interface{}) uint {
	notes, ok := entity["notes"].(map[string]interface{})
	if !ok {
		return 0
	}
	if v, ok := notes["transaction_id"]; ok {
		return parseID(fmt.Sprintf("%v", v))
	}
	return 0
}

func amountOf(entity map[string]interface{}) int64 {
	if v, ok := entity["amount"].(float64); ok {
		return int64(v)
	}
	return 0
}

func (r *RazorpayAdapter) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error) {
	if r.webhookSecret == "" {
		return nil, utils.ConfigurationError("razorpay webhook secret is not configured", nil)
	}
	signature := req.Headers.Get("X-Razorpay-Signature")
	if signature == "" || !rzputils.VerifyWebhookSignature(string(req.Body), signature, r.webhookSecret) {
		utils.LogError("Razorpay webhook rejected for gateway %d", r.cfg.GatewayID)
		return nil, utils.SignatureError(utils.ErrInvalidSignature, nil)
	}

	body := toMap(req.Body)
	eventName := str(body, "event")
	payment := nested(body, "payload", "payment", "entity")
	refund := nested(body, "payload", "refund", "entity")
	order := nested(body, "payload", "order", "entity")

	evt := &WebhookEvent{
		ID:           req.Headers.Get("X-Razorpay-Event-Id"),
		Type:         EventUnknown,
		ProviderType: eventName,
		Raw:          body,
	}

	switch eventName {
	case "payment.captured", "order.paid":
		evt.Type = EventPaymentSuccess
	case "payment.failed":
		evt.Type = EventPaymentFailed
		evt.FailureReason = str(payment, "error_description")
	case "refund.processed":
		evt.Type = EventRefundCompleted
	}

	evt.GatewayTransactionID = str(payment, "order_id")
	if evt.GatewayTransactionID == "" {
		evt.GatewayTransactionID = str(order, "id")
	}
	evt.TransactionID = notesTransactionID(payment)
	if evt.TransactionID == 0 {
		evt.TransactionID = notesTransactionID(order)
	}
	if evt.TransactionID == 0 {
		evt.TransactionID = notesTransactionID(refund)
	}

	currency := str(payment, "currency")
	if evt.Type == EventRefundCompleted {
		evt.Amount = fromMinorUnits(amountOf(refund), currency)
	} else {
		evt.Amount = fromMinorUnits(amountOf(payment), currency)
	}

	if evt.ID == "" {
		evt.ID = eventName + ":" + str(payment, "id") + str(refund, "id")
	}
	return evt, nil
}

// CheckHealth fetches a non-existent order; any answer other than a transport
// failure means the API and credentials are reachable.
func (r *RazorpayAdapter) CheckHealth(ctx context.Context) bool {
	_, err := r.call(ctx, "health", func() (map[string]interface{}, error) {
		body, err := r.api.FetchOrder("order_healthcheck")
		if err != nil && isRazorpayAPIError(err) {
			return body, nil
		}
		return body, err
	})
	return err == nil
}

func isRazorpayAPIError(err error) bool {
	return strings.Contains(err.Error(), "does not exist")
}

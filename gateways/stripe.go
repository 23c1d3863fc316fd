package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeAdapter drives Stripe PaymentIntents through stripe-go. Each gateway
// row gets its own client so keys never leak between organizations.
type StripeAdapter struct {
	base
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewStripeAdapter() Adapter {
	return &StripeAdapter{
		base: base{
			name:       "stripe",
			methods:    []models.MethodType{models.MethodCard, models.MethodWallet},
			currencies: []string{"USD", "EUR", "GBP", "INR", "AUD", "CAD", "SGD", "JPY"},
		},
		now: time.Now,
	}
}

func (s *StripeAdapter) Initialize(cfg Config) error {
	s.cfg = cfg
	if err := s.requireCredentials("secret_key"); err != nil {
		return err
	}
	s.webhookSecret = cfg.Credential("webhook_secret")
	s.tolerance = cfg.WebhookTolerance
	if s.tolerance <= 0 {
		s.tolerance = utils.DefaultWebhookTolerance
	}
	s.currencyOverride()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        cfg.httpClient(),
		URL:               stripe.String(cfg.BaseURL(stripe.APIURL, stripe.APIURL)),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{},
	})
	s.api = &client.API{}
	s.api.Init(cfg.Credential("secret_key"), &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	utils.LogInfo("Stripe gateway %d initialized (sandbox=%v)", cfg.GatewayID, cfg.IsSandbox)
	return nil
}

// stripeLogger routes stripe-go's own logging into the application logs.
type stripeLogger struct{}

func (stripeLogger) Debugf(format string, v ...interface{}) { utils.LogDebug("stripe: "+format, v...) }
func (stripeLogger) Infof(format string, v ...interface{})  { utils.LogDebug("stripe: "+format, v...) }
func (stripeLogger) Warnf(format string, v ...interface{})  { utils.LogInfo("stripe: "+format, v...) }
func (stripeLogger) Errorf(format string, v ...interface{}) { utils.LogError("stripe: "+format, v...) }

// stripeError turns a stripe-go failure into a GatewayError carrying the
// provider's HTTP status when there was one.
func stripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		utils.LogError("stripe returned %d: %s", serr.HTTPStatusCode, serr.Msg)
		return utils.GatewayError(fmt.Sprintf("stripe returned status %d", serr.HTTPStatusCode), err)
	}
	utils.LogError("stripe call failed: %v", err)
	return utils.GatewayError("stripe is unreachable", err)
}

func rawResponse(r *stripe.APIResponse) map[string]interface{} {
	if r == nil {
		return nil
	}
	return toMap(r.RawJSON)
}

func (s *StripeAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	utils.LogInfo("Stripe InitiatePayment called for transaction %d", req.TransactionID)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount, req.Currency)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("transaction_id", formatID(req.TransactionID))
	params.AddMetadata("reference", req.Reference)

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError(err)
	}

	resp := &PaymentResponse{
		Success:       true,
		TransactionID: intent.ID,
		Token:         intent.ClientSecret,
		Raw:           rawResponse(intent.LastResponse),
	}
	if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
		resp.PaymentURL = intent.NextAction.RedirectToURL.URL
	}
	utils.LogInfo("Stripe payment intent %s created for transaction %d", intent.ID, req.TransactionID)
	return resp, nil
}

func stripeIntentStatus(intent *stripe.PaymentIntent) VerifyStatus {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return StatusFailed
		}
	}
	return StatusPending
}

func (s *StripeAdapter) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if req.GatewayTransactionID == "" {
		return nil, utils.ValidationFailedError("stripe verification needs the payment intent id", nil)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := s.api.PaymentIntents.Get(req.GatewayTransactionID, params)
	if err != nil {
		return nil, stripeError(err)
	}

	status := stripeIntentStatus(intent)
	resp := &VerifyResponse{
		Success:              status == StatusCompleted,
		Status:               status,
		GatewayTransactionID: intent.ID,
		Raw:                  rawResponse(intent.LastResponse),
	}
	if status == StatusFailed && intent.LastPaymentError != nil {
		resp.Error = intent.LastPaymentError.Msg
	}
	return resp, nil
}

func (s *StripeAdapter) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	utils.LogInfo("Stripe ProcessRefund called for transaction %d", req.TransactionID)

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayTransactionID),
		Amount:        stripe.Int64(minorUnits(req.Amount, req.Currency)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("refund_reference", req.Reference)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	refund, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, stripeError(err)
	}

	resp := &RefundResponse{RefundID: refund.ID, Raw: rawResponse(refund.LastResponse)}
	switch refund.Status {
	case stripe.RefundStatusSucceeded:
		resp.Success, resp.Status = true, StatusCompleted
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		resp.Success, resp.Status = true, StatusPending
	default:
		resp.Status = StatusFailed
		resp.Error = string(refund.FailureReason)
	}
	return resp, nil
}

// constructEvent verifies the Stripe-Signature header. stripe-go rejects
// stale timestamps; timestamps too far in the future are rejected here.
func (s *StripeAdapter) constructEvent(header string, body []byte) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, utils.ConfigurationError("stripe webhook secret is not configured", nil)
	}

	evt, err := webhook.ConstructEventWithOptions(body, header, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrTooOld):
			return evt, utils.SignatureError("stripe signature timestamp outside tolerance", err)
		case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrInvalidHeader), errors.Is(err, webhook.ErrNoValidSignature):
			return evt, utils.SignatureError(utils.ErrInvalidSignature, err)
		}
		return evt, utils.BadRequestError("stripe webhook body is not valid JSON", err)
	}

	if signedAt(header).After(s.now().Add(s.tolerance)) {
		return evt, utils.SignatureError("stripe signature timestamp outside tolerance", nil)
	}
	return evt, nil
}

// signedAt reads the t= element of a verified signature header.
func signedAt(header string) time.Time {
	for _, part := range strings.Split(header, ",") {
		if ts, ok := strings.CutPrefix(strings.TrimSpace(part), "t="); ok {
			if sec, err := strconv.ParseInt(ts, 10, 64); err == nil {
				return time.Unix(sec, 0)
			}
		}
	}
	return time.Time{}
}

func (s *StripeAdapter) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error) {
	payload, err := s.constructEvent(req.Headers.Get("Stripe-Signature"), req.Body)
	if err != nil {
		utils.LogError("Stripe webhook rejected for gateway %d: %v", s.cfg.GatewayID, err)
		return nil, err
	}

	evt := &WebhookEvent{
		ID:           payload.ID,
		Type:         EventUnknown,
		ProviderType: string(payload.Type),
		Amount:       decimal.Zero,
		Raw:          toMap(req.Body),
	}
	if payload.Data == nil {
		return evt, nil
	}

	switch payload.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(payload.Data.Raw, &intent); err != nil {
			return nil, utils.BadRequestError("stripe payment intent is not valid JSON", err)
		}
		evt.GatewayTransactionID = intent.ID
		evt.TransactionID = parseID(intent.Metadata["transaction_id"])
		if payload.Type == "payment_intent.succeeded" {
			evt.Type = EventPaymentSuccess
			evt.Amount = fromMinorUnits(intent.AmountReceived, string(intent.Currency))
		} else {
			evt.Type = EventPaymentFailed
			evt.Amount = fromMinorUnits(intent.Amount, string(intent.Currency))
			if intent.LastPaymentError != nil {
				evt.FailureReason = intent.LastPaymentError.Msg
			}
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(payload.Data.Raw, &charge); err != nil {
			return nil, utils.BadRequestError("stripe charge is not valid JSON", err)
		}
		evt.Type = EventRefundCompleted
		evt.TransactionID = parseID(charge.Metadata["transaction_id"])
		if charge.PaymentIntent != nil {
			evt.GatewayTransactionID = charge.PaymentIntent.ID
		}
		evt.Amount = fromMinorUnits(charge.AmountRefunded, string(charge.Currency))
	default:
		var obj struct {
			Metadata map[string]string `json:"metadata"`
		}
		_ = json.Unmarshal(payload.Data.Raw, &obj)
		evt.TransactionID = parseID(obj.Metadata["transaction_id"])
	}
	return evt, nil
}

func (s *StripeAdapter) CheckHealth(ctx context.Context) bool {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	_, err := s.api.Balance.Get(params)
	if err != nil {
		utils.LogError("Stripe health check failed for gateway %d: %v", s.cfg.GatewayID, err)
	}
	return err == nil
}

package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	paypalSandboxAPI = "https://api-m.sandbox.paypal.com"
	paypalLiveAPI    = "https://api-m.paypal.com"
)

// PayPalAdapter drives PayPal Orders v2. Every request carries an OAuth2
// client-credentials token managed by x/oauth2.
type PayPalAdapter struct {
	base
	client    *restClient
	oauth     *clientcredentials.Config
	webhookID string
}

func NewPayPalAdapter() Adapter {
	return &PayPalAdapter{
		base: base{
			name:       "paypal",
			methods:    []models.MethodType{models.MethodWallet, models.MethodCard},
			currencies: []string{"USD", "EUR", "GBP", "AUD", "CAD", "JPY", "SGD"},
		},
	}
}

func (p *PayPalAdapter) Initialize(cfg Config) error {
	p.cfg = cfg
	if err := p.requireCredentials("client_id", "client_secret"); err != nil {
		return err
	}
	p.webhookID = cfg.Credential("webhook_id")
	p.currencyOverride()

	baseURL := cfg.BaseURL(paypalSandboxAPI, paypalLiveAPI)
	p.oauth = &clientcredentials.Config{
		ClientID:     cfg.Credential("client_id"),
		ClientSecret: cfg.Credential("client_secret"),
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.httpClient())
	p.client = &restClient{
		http:    p.oauth.Client(tokenCtx),
		baseURL: baseURL,
		name:    p.name,
	}
	utils.LogInfo("PayPal gateway %d initialized (sandbox=%v)", cfg.GatewayID, cfg.IsSandbox)
	return nil
}

func jsonHeaders(requestID string) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if requestID != "" {
		h["PayPal-Request-Id"] = requestID
	}
	return h
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (o paypalOrder) link(rels ...string) string {
	for _, rel := range rels {
		for _, l := range o.Links {
			if l.Rel == rel {
				return l.Href
			}
		}
	}
	return ""
}

func (o paypalOrder) capture() (id, status string) {
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			return c.ID, c.Status
		}
	}
	return "", ""
}

func majorString(amount decimal.Decimal, currency string) string {
	if zeroDecimalCurrencies[utils.NormalizeCurrency(currency)] {
		return amount.StringFixed(0)
	}
	return amount.StringFixed(2)
}

func (p *PayPalAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	utils.LogInfo("PayPal InitiatePayment called for transaction %d", req.TransactionID)

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.Reference,
			"custom_id":    formatID(req.TransactionID),
			"invoice_id":   req.Reference,
			"description":  req.Description,
			"amount":       paypalAmount{CurrencyCode: req.Currency, Value: majorString(req.Amount, req.Currency)},
		}},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.ReturnURL,
		},
	}
	payload, _ := json.Marshal(body)

	var order paypalOrder
	data, err := p.client.do(ctx, restCall{
		method:  http.MethodPost,
		path:    "/v2/checkout/orders",
		body:    bytes.NewReader(payload),
		headers: jsonHeaders(req.Reference),
	}, &order)
	if err != nil {
		return nil, err
	}

	approve := order.link("approve", "payer-action")
	if approve == "" {
		return &PaymentResponse{Success: false, TransactionID: order.ID, Raw: toMap(data), Error: "paypal returned no approval link"}, nil
	}
	utils.LogInfo("PayPal order %s created for transaction %d", order.ID, req.TransactionID)
	return &PaymentResponse{
		Success:       true,
		TransactionID: order.ID,
		PaymentURL:    approve,
		Raw:           toMap(data),
	}, nil
}

func (p *PayPalAdapter) getOrder(ctx context.Context, orderID string) (paypalOrder, []byte, error) {
	var order paypalOrder
	data, err := p.client.do(ctx, restCall{
		method:  http.MethodGet,
		path:    "/v2/checkout/orders/" + url.PathEscape(orderID),
		headers: jsonHeaders(""),
	}, &order)
	return order, data, err
}

func paypalStatus(status string) VerifyStatus {
	switch status {
	case "COMPLETED":
		return StatusCompleted
	case "DECLINED", "FAILED", "VOIDED":
		return StatusFailed
	}
	return StatusPending
}

// VerifyPayment captures an approved order and reports the capture outcome.
func (p *PayPalAdapter) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if req.GatewayTransactionID == "" {
		return nil, utils.ValidationFailedError("paypal verification needs the order id", nil)
	}

	order, data, err := p.getOrder(ctx, req.GatewayTransactionID)
	if err != nil {
		return nil, err
	}

	if order.Status == "APPROVED" {
		utils.LogInfo("Capturing approved PayPal order %s", order.ID)
		data, err = p.client.do(ctx, restCall{
			method:  http.MethodPost,
			path:    "/v2/checkout/orders/" + url.PathEscape(order.ID) + "/capture",
			body:    strings.NewReader("{}"),
			headers: jsonHeaders(req.Reference + "-capture"),
		}, &order)
		if err != nil {
			return nil, err
		}
	}

	status := paypalStatus(order.Status)
	if _, captureStatus := order.capture(); captureStatus != "" {
		status = paypalStatus(captureStatus)
	}
	resp := &VerifyResponse{
		Success:              status == StatusCompleted,
		Status:               status,
		GatewayTransactionID: order.ID,
		Raw:                  toMap(data),
	}
	if status == StatusFailed {
		resp.Error = "paypal order " + strings.ToLower(order.Status)
	}
	return resp, nil
}

func (p *PayPalAdapter) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	utils.LogInfo("PayPal ProcessRefund called for transaction %d", req.TransactionID)

	order, _, err := p.getOrder(ctx, req.GatewayTransactionID)
	if err != nil {
		return nil, err
	}
	captureID, _ := order.capture()
	if captureID == "" {
		return nil, utils.ValidationFailedError("paypal order has no capture to refund", nil)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"amount":        paypalAmount{CurrencyCode: req.Currency, Value: majorString(req.Amount, req.Currency)},
		"invoice_id":    req.Reference,
		"note_to_payer": req.Reason,
	})
	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	data, err := p.client.do(ctx, restCall{
		method:  http.MethodPost,
		path:    "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund",
		body:    bytes.NewReader(payload),
		headers: jsonHeaders(req.Reference),
	}, &refund)
	if err != nil {
		return nil, err
	}

	resp := &RefundResponse{RefundID: refund.ID, Status: paypalStatus(refund.Status), Raw: toMap(data)}
	resp.Success = resp.Status != StatusFailed
	if !resp.Success {
		resp.Error = "paypal refund " + strings.ToLower(refund.Status)
	}
	return resp, nil
}

var paypalSignatureHeaders = []string{
	"PAYPAL-AUTH-ALGO",
	"PAYPAL-CERT-URL",
	"PAYPAL-TRANSMISSION-ID",
	"PAYPAL-TRANSMISSION-SIG",
	"PAYPAL-TRANSMISSION-TIME",
}

// verifySignature asks PayPal to validate the transmission headers against
// the configured webhook id.
func (p *PayPalAdapter) verifySignature(ctx context.Context, req WebhookRequest) error {
	if p.webhookID == "" {
		return utils.ConfigurationError("paypal webhook id is not configured", nil)
	}
	for _, h := range paypalSignatureHeaders {
		if req.Headers.Get(h) == "" {
			return utils.SignatureError(utils.ErrInvalidSignature, nil)
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"auth_algo":         req.Headers.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          req.Headers.Get("PAYPAL-CERT-URL"),
		"transmission_id":   req.Headers.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  req.Headers.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": req.Headers.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(req.Body),
	})
	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if _, err := p.client.do(ctx, restCall{
		method:  http.MethodPost,
		path:    "/v1/notifications/verify-webhook-signature",
		body:    bytes.NewReader(payload),
		headers: jsonHeaders(""),
	}, &result); err != nil {
		return err
	}
	if result.VerificationStatus != "SUCCESS" {
		return utils.SignatureError(utils.ErrInvalidSignature, nil)
	}
	return nil
}

func (p *PayPalAdapter) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error) {
	var payload struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string       `json:"id"`
			Status            string       `json:"status"`
			CustomID          string       `json:"custom_id"`
			Amount            paypalAmount `json:"amount"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, utils.BadRequestError("paypal webhook body is not valid JSON", err)
	}
	if err := p.verifySignature(ctx, req); err != nil {
		utils.LogError("PayPal webhook rejected for gateway %d: %v", p.cfg.GatewayID, err)
		return nil, err
	}

	amount, _ := decimal.NewFromString(payload.Resource.Amount.Value)
	evt := &WebhookEvent{
		ID:                   payload.ID,
		Type:                 EventUnknown,
		ProviderType:         payload.EventType,
		TransactionID:        parseID(payload.Resource.CustomID),
		GatewayTransactionID: payload.Resource.SupplementaryData.RelatedIDs.OrderID,
		Amount:               amount,
		Raw:                  toMap(req.Body),
	}
	switch payload.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		evt.Type = EventPaymentSuccess
	case "PAYMENT.CAPTURE.DENIED":
		evt.Type = EventPaymentFailed
		evt.FailureReason = "capture denied"
	case "PAYMENT.CAPTURE.REFUNDED":
		evt.Type = EventRefundCompleted
	}
	return evt, nil
}

func (p *PayPalAdapter) CheckHealth(ctx context.Context) bool {
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, p.cfg.httpClient())
	_, err := p.oauth.Token(tokenCtx)
	return err == nil
}

// Package gateways adapts each external payment provider to one interface the
// transaction orchestrator drives.
package gateways

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/shopspring/decimal"
)

// Config is what a gateway row hands its adapter at Initialize.
type Config struct {
	GatewayID        uint
	Type             models.GatewayType
	Configuration    map[string]interface{}
	Credentials      map[string]string
	IsSandbox        bool
	FeePercentage    decimal.Decimal
	FeeFixed         decimal.Decimal
	MethodFees       map[models.MethodType]models.MethodFee
	WebhookTolerance time.Duration
	HTTPClient       *http.Client
}

// Credential returns a trimmed credential value.
func (c Config) Credential(key string) string {
	return strings.TrimSpace(c.Credentials[key])
}

// Setting returns a string configuration value.
func (c Config) Setting(key string) string {
	if v, ok := c.Configuration[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// BaseURL picks the provider endpoint, honouring a base_url override.
func (c Config) BaseURL(sandbox, live string) string {
	if override := c.Setting("base_url"); override != "" {
		return strings.TrimRight(override, "/")
	}
	if c.IsSandbox {
		return sandbox
	}
	return live
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	VPA   string `json:"vpa,omitempty"`
}

// PaymentRequest asks a provider to start collecting Amount. TransactionID is
// the internal id the provider must echo back in callbacks.
type PaymentRequest struct {
	TransactionID uint
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Method        models.MethodType
	Description   string
	Customer      Customer
	CallbackURL   string
	ReturnURL     string
	Metadata      map[string]string
}

type PaymentResponse struct {
	Success       bool                   `json:"success"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	PaymentURL    string                 `json:"payment_url,omitempty"`
	Token         string                 `json:"token,omitempty"`
	QRCode        string                 `json:"qr_code,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// VerifyStatus is the normalized provider outcome.
type VerifyStatus string

const (
	StatusCompleted VerifyStatus = "completed"
	StatusFailed    VerifyStatus = "failed"
	StatusPending   VerifyStatus = "pending"
)

type VerifyRequest struct {
	TransactionID        uint
	Reference            string
	GatewayTransactionID string
	Amount               decimal.Decimal
	Currency             string
}

type VerifyResponse struct {
	Success              bool                   `json:"success"`
	Status               VerifyStatus           `json:"status"`
	GatewayTransactionID string                 `json:"gateway_transaction_id,omitempty"`
	Raw                  map[string]interface{} `json:"raw,omitempty"`
	Error                string                 `json:"error,omitempty"`
}

// RefundRequest refunds Amount of the payment the provider knows as
// GatewayTransactionID. Reference identifies the refund row.
type RefundRequest struct {
	TransactionID        uint
	Reference            string
	GatewayTransactionID string
	Amount               decimal.Decimal
	Currency             string
	Reason               string
}

type RefundResponse struct {
	Success  bool                   `json:"success"`
	RefundID string                 `json:"refund_id,omitempty"`
	Status   VerifyStatus           `json:"status"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type WebhookRequest struct {
	Headers http.Header
	Body    []byte
}

type EventType string

const (
	EventPaymentSuccess  EventType = "PAYMENT_SUCCESS"
	EventPaymentFailed   EventType = "PAYMENT_FAILED"
	EventRefundCompleted EventType = "REFUND_COMPLETED"
	EventUnknown         EventType = "UNKNOWN"
)

// WebhookEvent is a provider notification after signature verification.
// TransactionID is the internal id recovered from provider metadata, zero
// when the provider did not echo it.
type WebhookEvent struct {
	ID                   string                 `json:"id"`
	Type                 EventType              `json:"type"`
	ProviderType         string                 `json:"provider_type"`
	TransactionID        uint                   `json:"transaction_id,omitempty"`
	GatewayTransactionID string                 `json:"gateway_transaction_id,omitempty"`
	Amount               decimal.Decimal        `json:"amount"`
	FailureReason        string                 `json:"failure_reason,omitempty"`
	Raw                  map[string]interface{} `json:"raw,omitempty"`
}

// Adapter is one payment provider.
type Adapter interface {
	Initialize(cfg Config) error
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error)
	CheckHealth(ctx context.Context) bool
	SupportedPaymentMethods() []models.MethodType
	SupportedCurrencies() []string
	TransactionFees(amount decimal.Decimal, currency string, method models.MethodType) Fees
}

// Supports reports whether a can take payments in currency through method.
func Supports(a Adapter, currency string, method models.MethodType) bool {
	currencyOK := false
	for _, c := range a.SupportedCurrencies() {
		if strings.EqualFold(c, currency) {
			currencyOK = true
			break
		}
	}
	if !currencyOK {
		return false
	}
	for _, m := range a.SupportedPaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// RefundCapability is implemented by adapters whose provider may not take
// refunds at all.
type RefundCapability interface {
	SupportsRefund() bool
}

// SupportsRefund reports whether refunds can be sent through a. Adapters
// that do not implement RefundCapability can refund.
func SupportsRefund(a Adapter) bool {
	if rc, ok := a.(RefundCapability); ok {
		return rc.SupportsRefund()
	}
	return true
}

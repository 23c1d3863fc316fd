package upi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

// Credentials configure one UPI provider account.
type Credentials struct {
	MerchantID    string
	SaltKey       string
	SaltIndex     string
	MerchantKey   string
	WebsiteName   string
	PayeeVPA      string
	PayeeName     string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
}

func (c Credentials) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type CollectRequest struct {
	MerchantTxnID string
	Amount        decimal.Decimal
	PayerVPA      string
	PayerPhone    string
	Note          string
	CallbackURL   string
	RedirectURL   string
}

type CollectResult struct {
	ProviderReference string
	RedirectURL       string
	IntentURI         string
	PayeeVPA          string
	Request           map[string]interface{}
	Response          map[string]interface{}
}

type StatusResult struct {
	Code   string
	Status models.UpiStatus
	RRN    string
	Raw    map[string]interface{}
}

type RefundRequest struct {
	MerchantTxnID       string
	RefundMerchantTxnID string
	Amount              decimal.Decimal
}

type RefundResult struct {
	Code     string
	Status   models.UpiStatus
	RefundID string
	Raw      map[string]interface{}
}

// Callback is a verified provider notification.
type Callback struct {
	EventID       string
	MerchantTxnID string
	Code          string
	Status        models.UpiStatus
	RRN           string
	Amount        decimal.Decimal
	Raw           map[string]interface{}
}

// Provider is one UPI PSP integration.
type Provider interface {
	Name() models.GatewayType
	Collect(ctx context.Context, req CollectRequest) (*CollectResult, error)
	Status(ctx context.Context, merchantTxnID string) (*StatusResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	ParseCallback(headers http.Header, body []byte) (*Callback, error)
	// SupportsStatusQuery is false for intent-only providers that learn
	// outcomes from callbacks alone.
	SupportsStatusQuery() bool
	SupportsRefund() bool
}

// NewProvider builds the provider for t.
func NewProvider(t models.GatewayType, creds Credentials) (Provider, error) {
	switch t {
	case models.GatewayPhonePe:
		return newPhonePe(creds)
	case models.GatewayPaytm:
		return newPaytm(creds)
	case models.GatewayGPay, models.GatewayBHIM:
		return newIntentProvider(t, creds)
	}
	return nil, utils.ConfigurationError("unsupported UPI provider "+string(t), nil)
}

// BaseURL is the default API root for a provider's sandbox or live account.
func BaseURL(t models.GatewayType, sandbox bool) string {
	switch t {
	case models.GatewayPhonePe:
		if sandbox {
			return phonePeSandbox
		}
		return phonePeLive
	case models.GatewayPaytm:
		if sandbox {
			return paytmSandbox
		}
		return paytmLive
	}
	return ""
}

// NormalizeCode maps provider status codes onto UPI statuses. Anything not
// known as success or failure stays PENDING.
func NormalizeCode(code string) models.UpiStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PAYMENT_SUCCESS", "TXN_SUCCESS", "SUCCESS", "COMPLETED", "S":
		return models.UpiCompleted
	case "PAYMENT_ERROR", "PAYMENT_DECLINED", "TXN_FAILURE", "FAILURE", "FAILED", "F", "TIMED_OUT":
		return models.UpiFailed
	}
	return models.UpiPending
}

func required(provider string, values map[string]string) error {
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			return utils.ConfigurationError(provider+" credential "+k+" is required", nil)
		}
	}
	return nil
}

// paise converts rupees to paise.
func paise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

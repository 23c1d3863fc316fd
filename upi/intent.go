package upi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

// SignatureHeader carries the HMAC on GPay and BHIM callbacks.
const SignatureHeader = "X-UPI-Signature"

// intentProvider covers GPay and BHIM: payment starts from a upi://pay link
// and the outcome arrives only as an HMAC-signed callback.
type intentProvider struct {
	name  models.GatewayType
	creds Credentials
}

func newIntentProvider(name models.GatewayType, creds Credentials) (Provider, error) {
	if err := required(strings.ToLower(string(name)), map[string]string{
		"payee_vpa":      creds.PayeeVPA,
		"webhook_secret": creds.WebhookSecret,
	}); err != nil {
		return nil, err
	}
	if err := ValidateVPA(creds.PayeeVPA); err != nil {
		return nil, utils.ConfigurationError("payee VPA is invalid", err)
	}
	return &intentProvider{name: name, creds: creds}, nil
}

func (p *intentProvider) Name() models.GatewayType { return p.name }

func (p *intentProvider) SupportsStatusQuery() bool { return false }
func (p *intentProvider) SupportsRefund() bool      { return false }

func (p *intentProvider) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	uri := BuildPaymentURI(PaymentURI{
		VPA:       p.creds.PayeeVPA,
		Name:      p.creds.PayeeName,
		Amount:    req.Amount,
		Reference: req.MerchantTxnID,
		Note:      req.Note,
	})
	return &CollectResult{
		ProviderReference: req.MerchantTxnID,
		IntentURI:         uri,
		PayeeVPA:          p.creds.PayeeVPA,
		Request:           map[string]interface{}{"uri": uri},
		Response:          map[string]interface{}{},
	}, nil
}

func (p *intentProvider) Status(ctx context.Context, merchantTxnID string) (*StatusResult, error) {
	return nil, utils.ValidationFailedError(strings.ToLower(string(p.name))+" has no status API", nil)
}

func (p *intentProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return nil, utils.ValidationFailedError("refunds are not supported for "+strings.ToLower(string(p.name)), nil)
}

func (p *intentProvider) ParseCallback(headers http.Header, body []byte) (*Callback, error) {
	if !equalSignature(HMACSignature(body, p.creds.WebhookSecret), headers.Get(SignatureHeader)) {
		return nil, utils.SignatureError(utils.ErrInvalidSignature, nil)
	}

	var payload struct {
		EventID               string `json:"eventId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		Status                string `json:"status"`
		RRN                   string `json:"rrn"`
		Amount                string `json:"amount"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, utils.BadRequestError("UPI callback body is not JSON", err)
	}
	doc := map[string]interface{}{}
	_ = json.Unmarshal(body, &doc)

	amount, _ := decimal.NewFromString(payload.Amount)
	eventID := payload.EventID
	if eventID == "" {
		eventID = payload.MerchantTransactionID + ":" + payload.Status
	}
	return &Callback{
		EventID:       eventID,
		MerchantTxnID: payload.MerchantTransactionID,
		Code:          payload.Status,
		Status:        NormalizeCode(payload.Status),
		RRN:           payload.RRN,
		Amount:        amount,
		Raw:           doc,
	}, nil
}

package upi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

const (
	phonePeSandbox = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	phonePeLive    = "https://api.phonepe.com/apis/hermes"

	phonePePayPath    = "/pg/v1/pay"
	phonePeRefundPath = "/pg/v1/refund"
)

// phonePe speaks the PhonePe PG API: base64 JSON payloads signed with X-VERIFY.
type phonePe struct {
	creds Credentials
}

func newPhonePe(creds Credentials) (Provider, error) {
	if err := required("phonepe", map[string]string{
		"merchant_id": creds.MerchantID,
		"salt_key":    creds.SaltKey,
		"salt_index":  creds.SaltIndex,
	}); err != nil {
		return nil, err
	}
	if creds.BaseURL == "" {
		creds.BaseURL = phonePeSandbox
	}
	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")
	return &phonePe{creds: creds}, nil
}

func (p *phonePe) Name() models.GatewayType { return models.GatewayPhonePe }

func (p *phonePe) SupportsStatusQuery() bool { return true }
func (p *phonePe) SupportsRefund() bool      { return true }

// signed encodes payload and returns the request body and X-VERIFY header.
func (p *phonePe) signed(payload map[string]interface{}, path string) ([]byte, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	body, _ := json.Marshal(map[string]string{"request": encoded})
	return body, PhonePeChecksum(encoded, path, p.creds.SaltKey, p.creds.SaltIndex), nil
}

func (p *phonePe) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	instrument := map[string]interface{}{"type": "PAY_PAGE"}
	if req.PayerVPA != "" {
		instrument = map[string]interface{}{"type": "UPI_COLLECT", "vpa": req.PayerVPA}
	}
	payload := map[string]interface{}{
		"merchantId":            p.creds.MerchantID,
		"merchantTransactionId": req.MerchantTxnID,
		"merchantUserId":        "MU" + req.MerchantTxnID,
		"amount":                paise(req.Amount),
		"redirectUrl":           req.RedirectURL,
		"redirectMode":          "POST",
		"callbackUrl":           req.CallbackURL,
		"mobileNumber":          req.PayerPhone,
		"paymentInstrument":     instrument,
	}
	body, xVerify, err := p.signed(payload, phonePePayPath)
	if err != nil {
		return nil, utils.GatewayError("phonepe payload could not be encoded", err)
	}

	resp, err := sendJSON(ctx, p.creds.client(), http.MethodPost, p.creds.BaseURL+phonePePayPath, body, map[string]string{
		"X-VERIFY": xVerify,
	})
	if err != nil {
		return nil, err
	}
	if ok, _ := resp["success"].(bool); !ok {
		return nil, utils.GatewayError("phonepe rejected the payment: "+str(resp, "message"), nil)
	}

	instr := obj(resp, "data", "instrumentResponse")
	return &CollectResult{
		ProviderReference: str(obj(resp, "data"), "transactionId"),
		RedirectURL:       str(obj(instr, "redirectInfo"), "url"),
		IntentURI:         str(instr, "intentUrl"),
		Request:           payload,
		Response:          resp,
	}, nil
}

func (p *phonePe) Status(ctx context.Context, merchantTxnID string) (*StatusResult, error) {
	path := "/pg/v1/status/" + p.creds.MerchantID + "/" + merchantTxnID
	resp, err := sendJSON(ctx, p.creds.client(), http.MethodGet, p.creds.BaseURL+path, nil, map[string]string{
		"X-VERIFY":      PhonePeChecksum("", path, p.creds.SaltKey, p.creds.SaltIndex),
		"X-MERCHANT-ID": p.creds.MerchantID,
	})
	if err != nil {
		return nil, err
	}
	code := str(resp, "code")
	return &StatusResult{
		Code:   code,
		Status: NormalizeCode(code),
		RRN:    str(obj(resp, "data", "paymentInstrument"), "utr"),
		Raw:    resp,
	}, nil
}

func (p *phonePe) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"merchantId":            p.creds.MerchantID,
		"merchantUserId":        "MU" + req.MerchantTxnID,
		"originalTransactionId": req.MerchantTxnID,
		"merchantTransactionId": req.RefundMerchantTxnID,
		"amount":                paise(req.Amount),
	}
	body, xVerify, err := p.signed(payload, phonePeRefundPath)
	if err != nil {
		return nil, utils.GatewayError("phonepe payload could not be encoded", err)
	}
	resp, err := sendJSON(ctx, p.creds.client(), http.MethodPost, p.creds.BaseURL+phonePeRefundPath, body, map[string]string{
		"X-VERIFY": xVerify,
	})
	if err != nil {
		return nil, err
	}
	code := str(resp, "code")
	return &RefundResult{
		Code:     code,
		Status:   NormalizeCode(code),
		RefundID: str(obj(resp, "data"), "transactionId"),
		Raw:      resp,
	}, nil
}

// ParseCallback checks X-VERIFY = SHA256(response + saltKey) + "###" + saltIndex
// and decodes the base64 response document.
func (p *phonePe) ParseCallback(headers http.Header, body []byte) (*Callback, error) {
	var envelope struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Response == "" {
		return nil, utils.BadRequestError("phonepe callback has no response payload", err)
	}

	expected := PhonePeChecksum(envelope.Response, "", p.creds.SaltKey, p.creds.SaltIndex)
	if !equalSignature(expected, headers.Get("X-VERIFY")) {
		return nil, utils.SignatureError(utils.ErrInvalidSignature, nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Response)
	if err != nil {
		return nil, utils.BadRequestError("phonepe callback payload is not base64", err)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(decoded, &doc); err != nil {
		return nil, utils.BadRequestError("phonepe callback payload is not JSON", err)
	}

	data := obj(doc, "data")
	code := str(doc, "code")
	amount := decimal.Zero
	if v, ok := data["amount"].(float64); ok {
		amount = decimal.NewFromFloat(v).Div(decimal.NewFromInt(100))
	}
	return &Callback{
		EventID:       str(data, "transactionId") + ":" + code,
		MerchantTxnID: str(data, "merchantTransactionId"),
		Code:          code,
		Status:        NormalizeCode(code),
		RRN:           str(obj(data, "paymentInstrument"), "utr"),
		Amount:        amount,
		Raw:           doc,
	}, nil
}

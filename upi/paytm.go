package upi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

const (
	paytmSandbox = "https://securegw-stage.paytm.in"
	paytmLive    = "https://securegw.paytm.in"
)

// paytm speaks the Paytm PG v3 API; every body is signed into head.signature.
type paytm struct {
	creds Credentials
}

func newPaytm(creds Credentials) (Provider, error) {
	if err := required("paytm", map[string]string{
		"merchant_id":  creds.MerchantID,
		"merchant_key": creds.MerchantKey,
	}); err != nil {
		return nil, err
	}
	if creds.BaseURL == "" {
		creds.BaseURL = paytmSandbox
	}
	if creds.WebsiteName == "" {
		creds.WebsiteName = "WEBSTAGING"
	}
	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")
	return &paytm{creds: creds}, nil
}

func (p *paytm) Name() models.GatewayType { return models.GatewayPaytm }

func (p *paytm) SupportsStatusQuery() bool { return true }
func (p *paytm) SupportsRefund() bool      { return true }

func (p *paytm) post(ctx context.Context, path string, body map[string]interface{}) (map[string]interface{}, error) {
	signature, err := PaytmChecksum(body, p.creds.MerchantKey)
	if err != nil {
		return nil, utils.GatewayError("paytm body could not be signed", err)
	}
	raw, err := json.Marshal(map[string]interface{}{
		"body": body,
		"head": map[string]string{"signature": signature},
	})
	if err != nil {
		return nil, utils.GatewayError("paytm body could not be encoded", err)
	}
	return sendJSON(ctx, p.creds.client(), http.MethodPost, p.creds.BaseURL+path, raw, nil)
}

func resultInfo(resp map[string]interface{}) map[string]interface{} {
	return obj(resp, "body", "resultInfo")
}

func (p *paytm) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	body := map[string]interface{}{
		"requestType": "Payment",
		"mid":         p.creds.MerchantID,
		"websiteName": p.creds.WebsiteName,
		"orderId":     req.MerchantTxnID,
		"callbackUrl": req.CallbackURL,
		"txnAmount": map[string]string{
			"value":    req.Amount.StringFixed(2),
			"currency": "INR",
		},
		"userInfo": map[string]string{"custId": "CUST_" + req.MerchantTxnID},
	}
	if req.PayerVPA != "" {
		body["paymentMode"] = map[string]string{"mode": "UPI", "payerAccount": req.PayerVPA}
	}

	q := url.Values{}
	q.Set("mid", p.creds.MerchantID)
	q.Set("orderId", req.MerchantTxnID)
	resp, err := p.post(ctx, "/theia/api/v1/initiateTransaction?"+q.Encode(), body)
	if err != nil {
		return nil, err
	}
	info := resultInfo(resp)
	if str(info, "resultStatus") != "S" {
		return nil, utils.GatewayError("paytm rejected the payment: "+str(info, "resultMsg"), nil)
	}

	token := str(obj(resp, "body"), "txnToken")
	return &CollectResult{
		ProviderReference: token,
		RedirectURL:       p.creds.BaseURL + "/theia/api/v1/showPaymentPage?" + q.Encode(),
		Request:           body,
		Response:          resp,
	}, nil
}

func (p *paytm) Status(ctx context.Context, merchantTxnID string) (*StatusResult, error) {
	resp, err := p.post(ctx, "/v3/order/status", map[string]interface{}{
		"mid":     p.creds.MerchantID,
		"orderId": merchantTxnID,
	})
	if err != nil {
		return nil, err
	}
	code := str(resultInfo(resp), "resultStatus")
	return &StatusResult{
		Code:   code,
		Status: NormalizeCode(code),
		RRN:    str(obj(resp, "body"), "bankTxnId"),
		Raw:    resp,
	}, nil
}

func (p *paytm) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	status, err := p.Status(ctx, req.MerchantTxnID)
	if err != nil {
		return nil, err
	}
	txnID := str(obj(status.Raw, "body"), "txnId")
	if txnID == "" {
		return nil, utils.ValidationFailedError("paytm transaction id not found for refund", nil)
	}

	resp, err := p.post(ctx, "/refund/apply", map[string]interface{}{
		"mid":          p.creds.MerchantID,
		"txnType":      "REFUND",
		"orderId":      req.MerchantTxnID,
		"txnId":        txnID,
		"refId":        req.RefundMerchantTxnID,
		"refundAmount": req.Amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}
	code := str(resultInfo(resp), "resultStatus")
	return &RefundResult{
		Code:     code,
		Status:   NormalizeCode(code),
		RefundID: str(obj(resp, "body"), "refundId"),
		Raw:      resp,
	}, nil
}

// ParseCallback verifies head.signature over the canonical body.
func (p *paytm) ParseCallback(headers http.Header, body []byte) (*Callback, error) {
	var envelope struct {
		Head struct {
			Signature string `json:"signature"`
		} `json:"head"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Body) == 0 {
		return nil, utils.BadRequestError("paytm callback has no body", err)
	}

	expected, err := PaytmChecksum(envelope.Body, p.creds.MerchantKey)
	if err != nil || !equalSignature(expected, envelope.Head.Signature) {
		return nil, utils.SignatureError(utils.ErrInvalidSignature, err)
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(envelope.Body, &doc); err != nil {
		return nil, utils.BadRequestError("paytm callback body is not JSON", err)
	}
	code := str(resultInfo(map[string]interface{}{"body": doc}), "resultStatus")
	if code == "" {
		code = str(doc, "status")
	}
	amount, _ := decimal.NewFromString(str(obj(doc, "txnAmount"), "value"))
	if amount.IsZero() {
		amount, _ = decimal.NewFromString(str(doc, "txnAmount"))
	}
	return &Callback{
		EventID:       str(doc, "txnId") + ":" + code,
		MerchantTxnID: str(doc, "orderId"),
		Code:          code,
		Status:        NormalizeCode(code),
		RRN:           str(doc, "bankTxnId"),
		Amount:        amount,
		Raw:           doc,
	}, nil
}

package gateways

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

const (
	payuSandboxPay = "https://test.payu.in"
	payuLivePay    = "https://secure.payu.in"
	payuSandboxAPI = "https://test.payu.in"
	payuLiveAPI    = "https://info.payu.in"

	payuPostservice = "/merchant/postservice.php?form=2"
)

// PayUAdapter builds PayU hosted checkout forms and uses the merchant
// postservice for verification and refunds.
type PayUAdapter struct {
	base
	client  *restClient
	key     string
	salt    string
	payBase string
}

func NewPayUAdapter() Adapter {
	return &PayUAdapter{
		base: base{
			name:       "payu",
			methods:    []models.MethodType{models.MethodCard, models.MethodNetBanking, models.MethodUPI, models.MethodWallet},
			currencies: []string{"INR"},
		},
	}
}

func (p *PayUAdapter) Initialize(cfg Config) error {
	p.cfg = cfg
	if err := p.requireCredentials("merchant_key", "merchant_salt"); err != nil {
		return err
	}
	p.key = cfg.Credential("merchant_key")
	p.salt = cfg.Credential("merchant_salt")
	p.currencyOverride()
	p.payBase = cfg.BaseURL(payuSandboxPay, payuLivePay)
	p.client = &restClient{
		http:    cfg.httpClient(),
		baseURL: cfg.BaseURL(payuSandboxAPI, payuLiveAPI),
		name:    p.name,
	}
	utils.LogInfo("PayU gateway %d initialized (sandbox=%v)", cfg.GatewayID, cfg.IsSandbox)
	return nil
}

func sha512Hex(parts ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// requestHash signs a checkout form:
// key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt
func (p *PayUAdapter) requestHash(f url.Values) string {
	return sha512Hex(p.key, f.Get("txnid"), f.Get("amount"), f.Get("productinfo"),
		f.Get("firstname"), f.Get("email"),
		f.Get("udf1"), f.Get("udf2"), f.Get("udf3"), f.Get("udf4"), f.Get("udf5"),
		"", "", "", "", "", p.salt)
}

// responseHash is the reverse hash PayU puts on callbacks:
// [additionalCharges|]salt|status||||||udf5..udf1|email|firstname|productinfo|amount|txnid|key
func (p *PayUAdapter) responseHash(f url.Values) string {
	parts := []string{p.salt, f.Get("status"), "", "", "", "", "",
		f.Get("udf5"), f.Get("udf4"), f.Get("udf3"), f.Get("udf2"), f.Get("udf1"),
		f.Get("email"), f.Get("firstname"), f.Get("productinfo"), f.Get("amount"),
		f.Get("txnid"), p.key}
	if charges := f.Get("additionalCharges"); charges != "" {
		parts = append([]string{charges}, parts...)
	}
	return sha512Hex(parts...)
}

func (p *PayUAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	utils.LogInfo("PayU InitiatePayment called for transaction %d", req.TransactionID)

	productInfo := req.Description
	if productInfo == "" {
		productInfo = req.Reference
	}
	form := url.Values{}
	form.Set("key", p.key)
	form.Set("txnid", req.Reference)
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("productinfo", productInfo)
	form.Set("firstname", req.Customer.Name)
	form.Set("email", req.Customer.Email)
	form.Set("phone", req.Customer.Phone)
	form.Set("udf1", formatID(req.TransactionID))
	form.Set("surl", req.ReturnURL)
	form.Set("furl", req.ReturnURL)
	form.Set("hash", p.requestHash(form))

	fields := make(map[string]interface{}, len(form))
	for k := range form {
		fields[k] = form.Get(k)
	}
	return &PaymentResponse{
		Success:       true,
		TransactionID: req.Reference,
		PaymentURL:    p.payBase + "/_payment",
		Token:         form.Get("hash"),
		Raw:           map[string]interface{}{"form": fields},
	}, nil
}

// command calls the postservice. The hash is key|command|var1|salt.
func (p *PayUAdapter) command(ctx context.Context, command string, vars ...string) (map[string]interface{}, error) {
	form := url.Values{}
	form.Set("key", p.key)
	form.Set("command", command)
	for i, v := range vars {
		form.Set("var"+strconv.Itoa(i+1), v)
	}
	var1 := ""
	if len(vars) > 0 {
		var1 = vars[0]
	}
	form.Set("hash", sha512Hex(p.key, command, var1, p.salt))

	data, err := p.client.do(ctx, restCall{
		method:  http.MethodPost,
		path:    payuPostservice,
		body:    strings.NewReader(form.Encode()),
		headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	}, nil)
	if err != nil {
		return nil, err
	}
	return toMap(data), nil
}

func (p *PayUAdapter) lookup(ctx context.Context, txnid string) (map[string]interface{}, map[string]interface{}, error) {
	body, err := p.command(ctx, "verify_payment", txnid)
	if err != nil {
		return nil, nil, err
	}
	return body, nested(body, "transaction_details", txnid), nil
}

func (p *PayUAdapter) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	txnid := req.GatewayTransactionID
	if txnid == "" {
		txnid = req.Reference
	}
	body, details, err := p.lookup(ctx, txnid)
	if err != nil {
		return nil, err
	}

	resp := &VerifyResponse{GatewayTransactionID: txnid, Raw: body}
	switch str(details, "status") {
	case "success":
		resp.Success, resp.Status = true, StatusCompleted
	case "failure", "failed", "dropped", "bounced", "usercancelled":
		resp.Status = StatusFailed
		resp.Error = str(details, "error_Message")
	default:
		resp.Status = StatusPending
	}
	return resp, nil
}

// ProcessRefund resolves the PayU payment id (mihpayid) from the txnid and
// queues a refund against it. PayU acknowledges with status 1.
func (p *PayUAdapter) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	utils.LogInfo("PayU ProcessRefund called for transaction %d", req.TransactionID)

	_, details, err := p.lookup(ctx, req.GatewayTransactionID)
	if err != nil {
		return nil, err
	}
	mihpayid := str(details, "mihpayid")
	if mihpayid == "" {
		return nil, utils.ValidationFailedError("payu payment id not found for refund", nil)
	}

	body, err := p.command(ctx, "cancel_refund_transaction", mihpayid, req.Reference, req.Amount.StringFixed(2))
	if err != nil {
		return nil, err
	}

	resp := &RefundResponse{Raw: body}
	// status 1 only means PayU queued the refund; it settles later.
	if v, ok := body["status"].(float64); ok && v == 1 {
		resp.Success, resp.Status = true, StatusPending
		resp.RefundID = str(body, "request_id")
		if resp.RefundID == "" {
			resp.RefundID = req.Reference
		}
	} else {
		resp.Status = StatusFailed
		resp.Error = str(body, "msg")
	}
	return resp, nil
}

func (p *PayUAdapter) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error) {
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, utils.BadRequestError("payu callback is not form encoded", err)
	}

	expected := p.responseHash(form)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(form.Get("hash")))) != 1 {
		utils.LogError("PayU callback rejected for gateway %d", p.cfg.GatewayID)
		return nil, utils.SignatureError(utils.ErrInvalidSignature, nil)
	}

	amount, _ := decimal.NewFromString(form.Get("amount"))
	raw := make(map[string]interface{}, len(form))
	for k := range form {
		if k != "hash" {
			raw[k] = form.Get(k)
		}
	}
	evt := &WebhookEvent{
		ID:                   form.Get("mihpayid") + ":" + form.Get("status"),
		Type:                 EventUnknown,
		ProviderType:         form.Get("status"),
		TransactionID:        parseID(form.Get("udf1")),
		GatewayTransactionID: form.Get("txnid"),
		Amount:               amount,
		Raw:                  raw,
	}
	switch form.Get("status") {
	case "success":
		evt.Type = EventPaymentSuccess
	case "failure":
		evt.Type = EventPaymentFailed
		evt.FailureReason = form.Get("error_Message")
	}
	return evt, nil
}

func (p *PayUAdapter) CheckHealth(ctx context.Context) bool {
	body, err := p.command(ctx, "verify_payment", "healthcheck")
	if err != nil {
		return false
	}
	_, ok := body["status"]
	return ok
}

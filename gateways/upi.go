package gateways

import (
	"context"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/upi"
	"github.com/Govind-619/PayRoute/utils"
)

// UPIAdapter fronts one UPI provider. Provider signing lives in the upi
// package; the shared UpiTransaction record is kept by upi.Service.
type UPIAdapter struct {
	base
	kind     models.GatewayType
	provider upi.Provider
	service  *upi.Service
	ttl      time.Duration
	now      func() time.Time
}

func NewUPIAdapter(kind models.GatewayType, service *upi.Service, ttl time.Duration) Adapter {
	if ttl <= 0 {
		ttl = utils.DefaultUPIPendingTTL
	}
	return &UPIAdapter{
		base: base{
			name:       string(kind),
			methods:    []models.MethodType{models.MethodUPI},
			currencies: []string{"INR"},
		},
		kind:    kind,
		service: service,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (u *UPIAdapter) Initialize(cfg Config) error {
	u.cfg = cfg
	if u.service == nil {
		return utils.ConfigurationError("UPI service is not wired", nil)
	}

	provider, err := upi.NewProvider(u.kind, upi.Credentials{
		MerchantID:    cfg.Credential("merchant_id"),
		SaltKey:       cfg.Credential("salt_key"),
		SaltIndex:     cfg.Credential("salt_index"),
		MerchantKey:   cfg.Credential("merchant_key"),
		WebsiteName:   cfg.Setting("website_name"),
		PayeeVPA:      cfg.Credential("payee_vpa"),
		PayeeName:     cfg.Setting("payee_name"),
		WebhookSecret: cfg.Credential("webhook_secret"),
		BaseURL:       cfg.BaseURL(upi.BaseURL(u.kind, true), upi.BaseURL(u.kind, false)),
		HTTPClient:    cfg.HTTPClient,
	})
	if err != nil {
		utils.LogError("%s gateway %d failed to initialize: %v", u.kind, cfg.GatewayID, err)
		return err
	}
	u.provider = provider
	utils.LogInfo("%s UPI gateway %d initialized (sandbox=%v)", u.kind, cfg.GatewayID, cfg.IsSandbox)
	return nil
}

func (u *UPIAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	utils.LogInfo("%s InitiatePayment called for transaction %d", u.kind, req.TransactionID)
	if utils.NormalizeCurrency(req.Currency) != "INR" {
		return nil, utils.ValidationFailedError("UPI payments are INR only", nil)
	}

	paymentID := req.TransactionID
	res, err := u.service.Initiate(ctx, u.provider, upi.InitiateRequest{
		MerchantTxnID:        req.Reference,
		PaymentTransactionID: &paymentID,
		Amount:               req.Amount,
		PayerVPA:             req.Customer.VPA,
		PayerPhone:           req.Customer.Phone,
		Note:                 req.Description,
		CallbackURL:          req.CallbackURL,
		RedirectURL:          req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	expires := upi.PendingDeadline(u.now(), u.ttl)
	resp := &PaymentResponse{
		Success:       true,
		TransactionID: res.Transaction.MerchantTransactionID,
		PaymentURL:    res.RedirectURL,
		Token:         res.IntentURI,
		ExpiresAt:     &expires,
		Raw: map[string]interface{}{
			"upi_transaction_id": res.Transaction.ID,
			"provider":           string(u.kind),
			"intent_uri":         res.IntentURI,
			"redirect_url":       res.RedirectURL,
		},
	}
	if resp.PaymentURL == "" {
		resp.PaymentURL = res.IntentURI
	}
	if res.QR != nil {
		resp.QRCode = res.QR.PNGBase64
	}
	return resp, nil
}

func upiVerifyStatus(s models.UpiStatus) VerifyStatus {
	switch s {
	case models.UpiCompleted:
		return StatusCompleted
	case models.UpiFailed, models.UpiExpired:
		return StatusFailed
	}
	return StatusPending
}

func (u *UPIAdapter) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	mtid := req.GatewayTransactionID
	if mtid == "" {
		mtid = req.Reference
	}
	txn, err := u.service.RefreshStatus(ctx, u.provider, mtid)
	if err != nil {
		return nil, err
	}

	status := upiVerifyStatus(txn.Status)
	resp := &VerifyResponse{
		Success:              status == StatusCompleted,
		Status:               status,
		GatewayTransactionID: mtid,
		Raw: map[string]interface{}{
			"upi_status": string(txn.Status),
			"rrn":        txn.RRN,
		},
	}
	if status == StatusFailed {
		resp.Error = "UPI payment " + string(txn.Status)
	}
	return resp, nil
}

// SupportsRefund is false for intent-only apps (GPay, BHIM), which have no
// refund API.
func (u *UPIAdapter) SupportsRefund() bool {
	return u.provider != nil && u.provider.SupportsRefund()
}

func (u *UPIAdapter) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	utils.LogInfo("%s ProcessRefund called for transaction %d", u.kind, req.TransactionID)

	res, err := u.provider.Refund(ctx, upi.RefundRequest{
		MerchantTxnID:       req.GatewayTransactionID,
		RefundMerchantTxnID: req.Reference,
		Amount:              req.Amount,
	})
	if err != nil {
		return nil, err
	}
	status := upiVerifyStatus(res.Status)
	resp := &RefundResponse{
		Success:  status != StatusFailed,
		RefundID: res.RefundID,
		Status:   status,
		Raw:      res.Raw,
	}
	if !resp.Success {
		resp.Error = "UPI refund failed with code " + res.Code
	}
	return resp, nil
}

// ProcessWebhook verifies the provider callback and settles the UPI record
// before handing the normalized event back.
func (u *UPIAdapter) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookEvent, error) {
	cb, err := u.provider.ParseCallback(req.Headers, req.Body)
	if err != nil {
		utils.LogError("%s callback rejected for gateway %d: %v", u.kind, u.cfg.GatewayID, err)
		return nil, err
	}

	evt := &WebhookEvent{
		ID:                   cb.EventID,
		Type:                 EventUnknown,
		ProviderType:         cb.Code,
		GatewayTransactionID: cb.MerchantTxnID,
		Amount:               cb.Amount,
		Raw:                  cb.Raw,
	}
	switch cb.Status {
	case models.UpiCompleted:
		evt.Type = EventPaymentSuccess
	case models.UpiFailed:
		evt.Type = EventPaymentFailed
		evt.FailureReason = "UPI payment failed with code " + cb.Code
	}

	txn, _, err := u.service.ApplyCallback(ctx, u.kind, cb.MerchantTxnID, cb.Code, cb.RRN, cb.Raw)
	if err != nil {
		if utils.IsNotFoundError(err) {
			utils.LogError("%s callback for unknown merchant transaction %s", u.kind, cb.MerchantTxnID)
			return evt, nil
		}
		return nil, err
	}
	if txn.PaymentTransactionID != nil {
		evt.TransactionID = *txn.PaymentTransactionID
	}
	if evt.Amount.IsZero() {
		evt.Amount = txn.Amount
	}
	return evt, nil
}

func (u *UPIAdapter) CheckHealth(ctx context.Context) bool {
	if !u.provider.SupportsStatusQuery() {
		return true
	}
	_, err := u.provider.Status(ctx, "healthcheck")
	return err == nil
}
